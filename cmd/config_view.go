package cmd

import (
	"bytes"
	"fmt"

	"extsock/config"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigCmd represents the config command structure
type ConfigCmd struct {
	Format string `help:"Output format (yaml, toml)" enum:"yaml,toml" default:"yaml"`
}

// Run implements the config command execution
func (c *ConfigCmd) Run(cli *CLI) error {
	return ShowSettings(cli, c.Format)
}

// ShowSettings loads application settings and prints the effective
// configuration to stdout.
func ShowSettings(cli *CLI, format string) error {
	// Use shared loader without validation. It errors only when a custom --config is invalid.
	cfg, err := config.LoadConfigNoValidate(cli.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	out, err := renderConfig(cfg, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.stdout(), out)
	return nil
}

type settingsView struct {
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	CallTimeout string `yaml:"call_timeout" toml:"call_timeout"`
	FreePort    bool   `yaml:"free_port" toml:"free_port"`
	Handshake   bool   `yaml:"handshake" toml:"handshake"`
	PeerURL     string `yaml:"peer_url" toml:"peer_url"`
	Reconnect   struct {
		MaxRetries int    `yaml:"max_retries" toml:"max_retries"`
		BaseDelay  string `yaml:"base_delay" toml:"base_delay"`
	} `yaml:"reconnect" toml:"reconnect"`
	Journal struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Path    string `yaml:"path" toml:"path"`
	} `yaml:"journal" toml:"journal"`
	MCP struct {
		AllowGenericCalls bool `yaml:"allow_generic_calls" toml:"allow_generic_calls"`
	} `yaml:"mcp" toml:"mcp"`
	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`
}

// renderConfig returns the effective configuration with durations spelled
// out the way the config file accepts them.
func renderConfig(cfg *config.Config, format string) (string, error) {
	view := settingsView{
		Host:        cfg.Host,
		Port:        cfg.Port,
		CallTimeout: cfg.CallTimeout.String(),
		FreePort:    cfg.FreePort,
		Handshake:   cfg.Handshake,
		PeerURL:     cfg.PeerURL(),
	}
	view.Reconnect.MaxRetries = cfg.Reconnect.MaxRetries
	view.Reconnect.BaseDelay = cfg.Reconnect.BaseDelay.String()
	view.Journal.Enabled = cfg.Journal.Enabled
	view.Journal.Path = cfg.Journal.Path
	view.MCP.AllowGenericCalls = cfg.MCP.AllowGenericCalls
	view.Log.Level = cfg.Log.Level

	switch format {
	case "", "yaml":
		b, err := yaml.Marshal(&view)
		if err != nil {
			return "", fmt.Errorf("failed to marshal config: %w", err)
		}
		return string(b), nil
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(view); err != nil {
			return "", fmt.Errorf("failed to marshal config: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
