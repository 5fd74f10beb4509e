package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/songokas/hvents/pkg/models"
)

var globalLogger *slog.Logger

// Init initializes the global logger based on application settings, writing
// to w (os.Stdout if w is nil). It should be called once during startup.
// An unrecognized level or format is a configuration error, not silently
// defaulted, so a typo in application.log_level fails fast at load time.
func Init(settings models.ApplicationSettings, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}

	level, err := parseLevel(settings.LogLevel)
	if err != nil {
		return err
	}

	handler, err := newHandler(settings.LogFormat, w, level)
	if err != nil {
		return err
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	globalLogger.Info("logger initialized", "level", level.String(), "format", settings.LogFormat)
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level specified: %q", name)
	}
}

func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format specified: %q", format)
	}
}

// L returns the initialized global logger instance, falling back to the
// slog default if Init has not yet run.
func L() *slog.Logger {
	if globalLogger == nil {
		slog.Error("global logger accessed before initialization, using default")
		return slog.Default()
	}
	return globalLogger
}
