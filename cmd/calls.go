package cmd

import (
	"context"
	"fmt"

	"extsock/journal"
)

// CallsCmd represents the calls command structure
type CallsCmd struct {
	Limit  int    `help:"Maximum number of calls to show" default:"50"`
	Format string `help:"Output format (table, json, yaml)" default:"table"`
	Prune  int    `help:"Keep only the newest N calls before listing (-1 keeps everything)" default:"-1"`
}

// Run implements the calls command execution
func (c *CallsCmd) Run(cli *CLI) error {
	format, err := journal.ParseOutputFormat(c.Format)
	if err != nil {
		return err
	}
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to open call journal: %w", err)
	}
	defer j.Close()

	ctx := context.Background()
	if c.Prune >= 0 {
		n, err := j.Prune(ctx, c.Prune)
		if err != nil {
			return err
		}
		if format == journal.FormatTable {
			fmt.Fprintf(cli.stdout(), "Pruned %d calls.\n", n)
		}
	}

	entries, err := j.List(ctx, c.Limit)
	if err != nil {
		return err
	}
	return journal.Render(cli.stdout(), format, entries)
}
