// Package main is the extsock command: a local WebSocket bridge that lets MCP
// clients call into a browser extension.
package main

import (
	"fmt"
	"os"

	"extsock/cmd"
)

func main() {
	cmd.SetVersionInfo(Version, Commit, Date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
