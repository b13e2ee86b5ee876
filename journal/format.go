package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the supported rendering format for journal listings.
type OutputFormat string

const (
	// FormatTable renders output as tab-separated text tables (default).
	FormatTable OutputFormat = "table"
	// FormatJSON renders output as JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML renders output as YAML.
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat converts a raw string into an OutputFormat, defaulting to table.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" {
		return FormatTable, nil
	}
	switch trimmed {
	case string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML):
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", raw)
	}
}

// Render writes entries to w in the given format.
func Render(w io.Writer, format OutputFormat, entries []Entry) error {
	tableFn := func() error {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No calls recorded.")
			return nil
		}
		printTableHeader(w, "ID", "Created At", "Method", "Status", "Duration", "Peer", "Result")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dms\t%s\t%s\n",
				e.ID,
				e.CreatedAt,
				e.Method,
				statusLabel(e),
				e.DurationMS,
				dashIfEmpty(e.PeerID),
				oneLine(e.Text, 80),
			)
		}
		return nil
	}
	return renderByFormat(w, format, tableFn, entries)
}

func statusLabel(e Entry) string {
	if !e.IsError {
		return "ok"
	}
	if e.Code != 0 {
		return fmt.Sprintf("error(%d)", e.Code)
	}
	return "error"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// oneLine flattens s and truncates it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func printTableHeader(w io.Writer, columns ...string) {
	if len(columns) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(columns, "\t"))

	under := make([]string, len(columns))
	for i, col := range columns {
		width := utf8.RuneCountInString(col)
		if width <= 0 {
			width = 1
		}
		under[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(w, strings.Join(under, "\t"))
}

func renderByFormat(w io.Writer, format OutputFormat, tableFn func() error, payload any) error {
	switch format {
	case FormatTable, "":
		if tableFn == nil {
			return nil
		}
		return tableFn()
	case FormatJSON:
		return printJSON(w, payload)
	case FormatYAML:
		return printYAML(w, payload)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printYAML(w io.Writer, payload any) error {
	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	fmt.Fprint(w, string(data))
	return nil
}
