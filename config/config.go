package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	AppName = "extsock"

	DefaultHost        = "127.0.0.1"
	DefaultPort        = 54319
	DefaultCallTimeout = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBaseDelay   = time.Second
	DefaultJournalFile = "extsock.db"
)

// ErrInvalidPort is returned when the configured port is out of range.
var ErrInvalidPort = errors.New("invalid port")

// Config holds the application configuration
type Config struct {
	Host        string        `yaml:"host" toml:"host"`
	Port        int           `yaml:"port" toml:"port"`
	CallTimeout time.Duration `yaml:"call_timeout" toml:"call_timeout"`
	FreePort    bool          `yaml:"free_port" toml:"free_port"`
	Handshake   bool          `yaml:"handshake" toml:"handshake"`
	Reconnect   Reconnect     `yaml:"reconnect" toml:"reconnect"`
	Journal     Journal       `yaml:"journal" toml:"journal"`
	MCP         MCP           `yaml:"mcp" toml:"mcp"`
	Log         Log           `yaml:"log" toml:"log"`
}

// Reconnect controls the peer's retry policy.
type Reconnect struct {
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" toml:"base_delay"`
}

// Journal controls the SQLite call journal.
type Journal struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// MCP holds permissions for the MCP server.
type MCP struct {
	AllowGenericCalls bool `yaml:"allow_generic_calls" toml:"allow_generic_calls"`
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level" toml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		CallTimeout: DefaultCallTimeout,
		FreePort:    true,
		Handshake:   true,
		Reconnect: Reconnect{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
		},
		Journal: Journal{Path: defaultJournalPath()},
		Log:     Log{Level: "info"},
	}
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PeerURL returns the WebSocket URL a peer dials.
func (c *Config) PeerURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("ws://%s:%d", host, c.Port)
}

// GetConfig loads configuration from file and environment variables
func GetConfig(customPath string) (*Config, error) {
	cfg, err := LoadConfigNoValidate(customPath)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigNoValidate loads file and environment settings without validation.
// A missing file is not an error.
func LoadConfigNoValidate(customPath string) (*Config, error) {
	cfg := Default()

	// 1. Load from YAML or TOML file
	configPath, err := ResolveConfigPath(customPath)
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err == nil {
			// Expand env vars before unmarshalling
			expanded := os.ExpandEnv(string(file))
			if err := decodeFile(configPath, expanded, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// 2. Override with environment variables
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path, content string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(content, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(content), cfg)
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("EXTSOCK_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("EXTSOCK_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid EXTSOCK_PORT: %w", err)
		}
		cfg.Port = n
	}
	if timeout := os.Getenv("EXTSOCK_CALL_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid EXTSOCK_CALL_TIMEOUT: %w", err)
		}
		cfg.CallTimeout = d
	}
	if retries := os.Getenv("EXTSOCK_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid EXTSOCK_MAX_RETRIES: %w", err)
		}
		cfg.Reconnect.MaxRetries = n
	}
	if path := os.Getenv("EXTSOCK_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
		cfg.Journal.Enabled = true
	}
	if lvl := os.Getenv("EXTSOCK_LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, cfg.Port)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("host is not set. Please set EXTSOCK_HOST or add to config file")
	}
	if cfg.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", cfg.CallTimeout)
	}
	if cfg.Reconnect.MaxRetries < 0 {
		return fmt.Errorf("reconnect.max_retries must not be negative, got %d", cfg.Reconnect.MaxRetries)
	}
	if cfg.Reconnect.BaseDelay < 0 {
		return fmt.Errorf("reconnect.base_delay must not be negative, got %s", cfg.Reconnect.BaseDelay)
	}
	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.Path) == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}

// ResolveConfigPath returns customPath or the default ~/.config/extsock/config.yaml.
func ResolveConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName, "config.yaml"), nil
}

func defaultJournalPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config", AppName, DefaultJournalFile)
	}
	return DefaultJournalFile
}
