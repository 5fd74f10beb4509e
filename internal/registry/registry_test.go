package registry

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInitLogger(t *testing.T) {
	t.Helper()
	settings := models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}
	err := logger.Init(settings, io.Discard)
	require.NoError(t, err, "Failed to initialize logger for test")
}

func printEvent() models.EventConfig {
	return models.EventConfig{Print: &models.PrintConfig{Stream: "stdout"}}
}

func TestLoadInlineEvents(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{
		Events: map[string]models.EventConfig{
			"greet": printEvent(),
		},
		StartWith: []string{"greet"},
	}

	r, err := Load(cfg)
	require.NoError(t, err)

	def, ok := r.Lookup("greet")
	require.True(t, ok)
	assert.Equal(t, "greet", def.Name)
	assert.Equal(t, []string{"greet"}, r.StartWith())
}

func TestLoadRejectsSelfReference(t *testing.T) {
	testInitLogger(t)
	self := printEvent()
	self.NextEvent = "loop"
	cfg := &models.Config{Events: map[string]models.EventConfig{"loop": self}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reference itself")
}

func TestLoadRejectsMultiKind(t *testing.T) {
	testInitLogger(t)
	bad := printEvent()
	bad.FileRead = &models.FileReadConfig{Path: "/tmp/x"}
	cfg := &models.Config{Events: map[string]models.EventConfig{"bad": bad}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple kinds specified")
}

func TestLoadRejectsNoKind(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{Events: map[string]models.EventConfig{"bad": {}}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kind specified")
}

func TestLoadGroupsPrefixesNames(t *testing.T) {
	testInitLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "lights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("on:\n  print:\n    stream: stdout\n"), 0o644))

	cfg := &models.Config{Groups: map[string]string{"kitchen": path}}

	r, err := Load(cfg)
	require.NoError(t, err)

	_, ok := r.Lookup("kitchen_on")
	assert.True(t, ok)
	_, ok = r.Lookup("on")
	assert.False(t, ok)
}

func TestLoadEventFilesFlatMerge(t *testing.T) {
	testInitLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("night_mode:\n  print:\n    stream: stdout\n"), 0o644))

	cfg := &models.Config{EventFiles: []string{path}}

	r, err := Load(cfg)
	require.NoError(t, err)

	_, ok := r.Lookup("night_mode")
	assert.True(t, ok)
}

func TestLoadRejectsDuplicateEventName(t *testing.T) {
	testInitLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greet:\n  file_read:\n    path: /tmp/z\n"), 0o644))

	cfg := &models.Config{
		Events:     map[string]models.EventConfig{"greet": printEvent()},
		EventFiles: []string{path},
	}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate event name")
}

func TestLoadRejectsInvalidTimeSpec(t *testing.T) {
	testInitLogger(t)
	spec := "not-a-real-time"
	cfg := &models.Config{Events: map[string]models.EventConfig{"bad": {Time: &spec}}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time:")
}

func TestLoadRejectsInvalidRepeatSpec(t *testing.T) {
	testInitLogger(t)
	spec := "not-a-real-time"
	cfg := &models.Config{Events: map[string]models.EventConfig{"bad": {Repeat: &spec}}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeat:")
}

func TestLoadRejectsInvalidPeriodSpec(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{Events: map[string]models.EventConfig{
		"bad": {Period: &models.PeriodConfig{From: "nonsense", To: "08:00"}},
	}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period:")
}

func TestLoadAcceptsValidTimeSpec(t *testing.T) {
	testInitLogger(t)
	spec := "in 5 seconds"
	cfg := &models.Config{Events: map[string]models.EventConfig{"ok": {Time: &spec}}}

	_, err := Load(cfg)
	require.NoError(t, err)
}

func TestLoadRejectsInvalidMqttTopic(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{Events: map[string]models.EventConfig{
		"bad": {MqttSubscribe: &models.MqttSubscribeConfig{Topic: "a/#/b"}},
	}}

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topic")
}

func TestLoadAcceptsTemplatedMqttTopic(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{Events: map[string]models.EventConfig{
		"ok": {MqttPublish: &models.MqttPublishConfig{Topic: "room/{{data}}/state"}},
	}}

	_, err := Load(cfg)
	require.NoError(t, err)
}

func TestNamesListsAllRegisteredEvents(t *testing.T) {
	testInitLogger(t)
	cfg := &models.Config{
		Events: map[string]models.EventConfig{
			"a": printEvent(),
			"b": printEvent(),
		},
	}
	r, err := Load(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
