package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"extsock/rpc"
	v "extsock/validate"
)

// getTarget returns the tag and member path selected by --tool or --resource.
func getTarget(tool, resource string) (rpc.Tag, string, error) {
	targets := []struct {
		value string
		tag   rpc.Tag
	}{
		{strings.TrimSpace(tool), rpc.TagTool},
		{strings.TrimSpace(resource), rpc.TagResource},
	}

	var (
		tag   rpc.Tag
		path  string
		count int
	)
	for _, t := range targets {
		if t.value != "" {
			count++
			tag, path = t.tag, t.value
		}
	}

	if count == 0 {
		return "", "", fmt.Errorf("target required: specify one of --tool, --resource")
	}
	if count > 1 {
		return "", "", fmt.Errorf("only one target can be specified at a time")
	}
	if err := v.ValidatePath(path); err != nil {
		return "", "", fmt.Errorf("invalid %s path: %w", tag, err)
	}
	return tag, path, nil
}

// parseArgs decodes each argument as JSON, falling back to the raw string.
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		var val any
		if err := json.Unmarshal([]byte(s), &val); err == nil {
			args = append(args, val)
			continue
		}
		args = append(args, s)
	}
	return args
}
