package fileio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAppendsByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, Write(path, false, models.TextData("A")))
	require.NoError(t, Write(path, false, models.TextData("B")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AB", string(got))
}

func TestWriteTruncateOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, Write(path, false, models.TextData("AAAA")))
	require.NoError(t, Write(path, true, models.TextData("B")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "B", string(got))
}

func TestReadTextDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	data, err := Read(path, "")
	require.NoError(t, err)
	assert.Equal(t, models.DataKindText, data.Kind)
	assert.Equal(t, "hello", data.Text)
}

func TestReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":"b"}`), 0o644))

	data, err := Read(path, "json")
	require.NoError(t, err)
	assert.Equal(t, models.DataKindStructured, data.Kind)
	assert.Equal(t, "b", data.Structured["a"])
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"), "text")
	require.Error(t, err)
}
