// Package logging configures the process-wide structured logger. Output goes
// to stderr because stdout carries MCP stdio frames.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler created here so EnableDebug takes effect
// on loggers that were already handed out.
var level = new(slog.LevelVar)

func init() {
	level.Set(slog.LevelInfo)
}

// New returns a text logger writing to w (stderr when nil).
func New(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup installs a stderr logger as slog's default and returns it.
func Setup(levelName string) (*slog.Logger, error) {
	if err := SetLevel(levelName); err != nil {
		return nil, err
	}
	logger := New(os.Stderr)
	slog.SetDefault(logger)
	return logger, nil
}

// SetLevel parses debug|info|warn|error. Empty keeps the current level.
func SetLevel(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return nil
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", name)
	}
	return nil
}

// EnableDebug lowers the level to debug.
func EnableDebug() {
	level.Set(slog.LevelDebug)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
