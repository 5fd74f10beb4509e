package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/require"
)

type firedEvent struct {
	name string
	when string
}

func TestFileChangedFiresOnCreateWriteRemove(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan firedEvent, 16)

	w, err := New(func(eventName string, data models.Data, metadata map[string]string) {
		fired <- firedEvent{name: eventName, when: metadata["when"]}
	})
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, w.Start(dir, false))
	w.AddFilter("on_created", path, "created")
	w.AddFilter("on_written", path, "written")
	w.AddFilter("on_removed", path, "removed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	waitFor(t, fired, "on_created")

	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("y")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	waitFor(t, fired, "on_written")

	require.NoError(t, os.Remove(path))
	waitFor(t, fired, "on_removed")
}

func waitFor(t *testing.T, ch chan firedEvent, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got.name == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestStartIsIdempotentAndStopRemovesWatch(t *testing.T) {
	dir := t.TempDir()
	w, err := New(func(string, models.Data, map[string]string) {})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Start(dir, false))
	require.NoError(t, w.Start(dir, false))
	require.NoError(t, w.Stop(dir))

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Equal(t, 0, w.refcount[dir])
}
