package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"extsock/config"
	"extsock/logging"

	"github.com/alecthomas/kong"
)

var (
	// Version information - set by version.go
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// CLI represents the command line interface structure using Kong
type CLI struct {
	ConfigPath string `name:"config" help:"Path to config file (default: ~/.config/extsock/config.yaml)" type:"path"`
	Debug      bool   `help:"Enable debug logging"`

	Serve   ServeCmd   `cmd:"" help:"Run the bridge and serve MCP over stdio"`
	Call    CallCmd    `cmd:"" help:"Wait for an extension peer and make one call"`
	Peer    PeerCmd    `cmd:"" help:"Run a local extension peer against a host"`
	Calls   CallsCmd   `cmd:"" help:"Show recent calls from the call journal"`
	Config  ConfigCmd  `cmd:"" help:"Show the effective configuration"`
	Version VersionCmd `cmd:"" help:"Show version information"`

	// Out receives command output; stdout when nil.
	Out io.Writer `kong:"-"`
}

// VersionCmd represents the version command structure
type VersionCmd struct{}

// Execute is the main entry point for all commands
func Execute() error {
	cli := &CLI{}

	ctx := kong.Parse(cli,
		kong.Name("extsock"),
		kong.Description("Bridge MCP clients to a browser extension over a local WebSocket"),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s, built %s)", appVersion, appCommit, appDate),
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	return ctx.Run(cli)
}

func (c *CLI) stdout() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// loadConfig reads the config file and environment, then validates.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.GetConfig(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the stderr logger at the configured level.
func (c *CLI) setupLogging(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.Setup(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if c.Debug {
		logging.EnableDebug()
	}
	return logger, nil
}

// Run implements the version command execution
func (v *VersionCmd) Run(cli *CLI) error {
	w := cli.stdout()
	fmt.Fprintf(w, "extsock version %s\n", appVersion)
	fmt.Fprintf(w, "commit: %s\n", appCommit)
	fmt.Fprintf(w, "built at: %s\n", appDate)
	return nil
}
