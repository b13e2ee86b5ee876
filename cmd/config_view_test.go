package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"extsock/config"
)

func TestRenderConfigYAML(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 6000
	cfg.CallTimeout = 5 * time.Second
	cfg.Journal.Enabled = true
	cfg.Journal.Path = "/tmp/calls.db"

	out, err := renderConfig(cfg, "yaml")
	if err != nil {
		t.Fatalf("renderConfig error: %v", err)
	}
	for _, want := range []string{
		"port: 6000",
		"call_timeout: 5s",
		"peer_url: ws://127.0.0.1:6000",
		"base_delay: 1s",
		"path: /tmp/calls.db",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderConfigTOML(t *testing.T) {
	out, err := renderConfig(config.Default(), "toml")
	if err != nil {
		t.Fatalf("renderConfig error: %v", err)
	}
	for _, want := range []string{`host = "127.0.0.1"`, "[reconnect]", "max_retries = 3", `call_timeout = "30s"`} {
		if !strings.Contains(out, want) {
			t.Errorf("toml output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderConfigUnsupported(t *testing.T) {
	if _, err := renderConfig(config.Default(), "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestShowSettingsReadsFile(t *testing.T) {
	t.Setenv("EXTSOCK_PORT", "")
	t.Setenv("EXTSOCK_HOST", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 7001\nhandshake: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	cli := &CLI{ConfigPath: path, Out: &buf}
	if err := (&ConfigCmd{Format: "yaml"}).Run(cli); err != nil {
		t.Fatalf("config: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "port: 7001") || !strings.Contains(out, "handshake: false") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
