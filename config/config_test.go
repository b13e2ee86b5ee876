package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EXTSOCK_HOST", "EXTSOCK_PORT", "EXTSOCK_CALL_TIMEOUT",
		"EXTSOCK_MAX_RETRIES", "EXTSOCK_JOURNAL_PATH", "EXTSOCK_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestGetConfig(t *testing.T) {
	t.Run("defaults when file is missing", func(t *testing.T) {
		clearEnv(t)
		cfg, err := GetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("GetConfig() error = %v", err)
		}
		if cfg.Port != DefaultPort {
			t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
		}
		if cfg.CallTimeout != DefaultCallTimeout {
			t.Errorf("CallTimeout = %v, want %v", cfg.CallTimeout, DefaultCallTimeout)
		}
		if cfg.Reconnect.MaxRetries != 3 || cfg.Reconnect.BaseDelay != time.Second {
			t.Errorf("Reconnect = %+v, want 3 retries with 1s base", cfg.Reconnect)
		}
		if !cfg.FreePort || !cfg.Handshake {
			t.Errorf("FreePort/Handshake should default to true: %+v", cfg)
		}
	})

	t.Run("loads from environment variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTSOCK_PORT", "6000")
		t.Setenv("EXTSOCK_CALL_TIMEOUT", "5s")
		t.Setenv("EXTSOCK_JOURNAL_PATH", "/tmp/calls.db")

		tempFile := filepath.Join(t.TempDir(), "cfg.yaml")
		if err := os.WriteFile(tempFile, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := GetConfig(tempFile)
		if err != nil {
			t.Fatalf("GetConfig() error = %v", err)
		}
		if cfg.Port != 6000 {
			t.Errorf("Port = %v, want %v", cfg.Port, 6000)
		}
		if cfg.CallTimeout != 5*time.Second {
			t.Errorf("CallTimeout = %v, want 5s", cfg.CallTimeout)
		}
		if !cfg.Journal.Enabled || cfg.Journal.Path != "/tmp/calls.db" {
			t.Errorf("Journal = %+v, want enabled at /tmp/calls.db", cfg.Journal)
		}
	})

	t.Run("loads from custom path yaml", func(t *testing.T) {
		clearEnv(t)
		customPath := filepath.Join(t.TempDir(), "custom_config.yaml")
		t.Setenv("MY_PORT", "7001")

		yamlContent := `
host: 0.0.0.0
port: ${MY_PORT}
call_timeout: 2s
handshake: false
reconnect:
  max_retries: 5
  base_delay: 250ms
mcp:
  allow_generic_calls: true
`
		if err := os.WriteFile(customPath, []byte(yamlContent), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := GetConfig(customPath)
		if err != nil {
			t.Fatalf("GetConfig() with custom path error = %v", err)
		}
		if cfg.Host != "0.0.0.0" || cfg.Port != 7001 {
			t.Errorf("Addr = %s, want 0.0.0.0:7001", cfg.Addr())
		}
		if cfg.PeerURL() != "ws://localhost:7001" {
			t.Errorf("PeerURL = %s", cfg.PeerURL())
		}
		if cfg.Handshake {
			t.Errorf("Handshake should be false")
		}
		if cfg.Reconnect.MaxRetries != 5 || cfg.Reconnect.BaseDelay != 250*time.Millisecond {
			t.Errorf("Reconnect = %+v", cfg.Reconnect)
		}
		if !cfg.MCP.AllowGenericCalls {
			t.Errorf("AllowGenericCalls should be true")
		}
	})

	t.Run("loads from toml file", func(t *testing.T) {
		clearEnv(t)
		customPath := filepath.Join(t.TempDir(), "config.toml")
		tomlContent := `
port = 7002
call_timeout = "3s"

[reconnect]
max_retries = 1
base_delay = "10ms"

[journal]
enabled = true
path = "calls.db"
`
		if err := os.WriteFile(customPath, []byte(tomlContent), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := GetConfig(customPath)
		if err != nil {
			t.Fatalf("GetConfig() toml error = %v", err)
		}
		if cfg.Port != 7002 || cfg.CallTimeout != 3*time.Second {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if cfg.Reconnect.MaxRetries != 1 || cfg.Reconnect.BaseDelay != 10*time.Millisecond {
			t.Errorf("Reconnect = %+v", cfg.Reconnect)
		}
		if !cfg.Journal.Enabled || cfg.Journal.Path != "calls.db" {
			t.Errorf("Journal = %+v", cfg.Journal)
		}
	})

	t.Run("error on invalid port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTSOCK_PORT", "70000")
		_, err := GetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrInvalidPort) {
			t.Fatalf("expected ErrInvalidPort, got %v", err)
		}
	})

	t.Run("error on malformed env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTSOCK_CALL_TIMEOUT", "soon")
		if _, err := GetConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatal("expected error for malformed EXTSOCK_CALL_TIMEOUT")
		}
	})

	t.Run("no validation on raw load", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTSOCK_PORT", "0")
		cfg, err := LoadConfigNoValidate(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadConfigNoValidate() error = %v", err)
		}
		if cfg.Port != 0 {
			t.Errorf("Port = %d, want 0", cfg.Port)
		}
	})
}
