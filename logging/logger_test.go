package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { level.Set(slog.LevelInfo) })

	var buf bytes.Buffer
	logger := New(&buf)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output written at info level: %q", buf.String())
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	logger.Debug("shown", "peer", "p1")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "peer=p1") {
		t.Fatalf("debug output missing: %q", buf.String())
	}

	if err := SetLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestEnableDebug(t *testing.T) {
	t.Cleanup(func() { level.Set(slog.LevelInfo) })

	var buf bytes.Buffer
	logger := New(&buf)
	EnableDebug()
	logger.Debug("after enable")
	if !strings.Contains(buf.String(), "after enable") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
