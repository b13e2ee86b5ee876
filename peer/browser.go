package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// PageInfo seeds the browser-like scope served by the Go peer.
type PageInfo struct {
	UserAgent string
	Language  string
	Platform  string
	Href      string
	Title     string
}

// NewBrowserScope builds a scope shaped like the parts of a page's global
// object the host commonly reaches for: navigator, location, document, alert
// and console.
func NewBrowserScope(info PageInfo, logger *slog.Logger) *Object {
	if logger == nil {
		logger = slog.Default()
	}
	if info.Platform == "" {
		info.Platform = runtime.GOOS
	}
	if info.Language == "" {
		info.Language = "en-US"
	}
	if info.Href == "" {
		info.Href = "about:blank"
	}
	log := logger.With("component", "page")

	root := NewScope()

	nav := root.Object("navigator")
	nav.Set("userAgent", info.UserAgent)
	nav.Set("language", info.Language)
	nav.Set("platform", info.Platform)
	nav.Getter("onLine", func(context.Context) (any, error) { return true, nil })

	root.Object("location").Set("href", info.Href)

	doc := root.Object("document")
	doc.Set("title", info.Title)
	doc.Method("setTitle", func(_ context.Context, recv *Object, args []json.RawMessage) (any, error) {
		title, err := Arg[string](args, 0, false)
		if err != nil {
			return nil, err
		}
		recv.Set("title", title)
		return title, nil
	})

	root.Method("alert", func(_ context.Context, recv *Object, args []json.RawMessage) (any, error) {
		msg, err := Arg[string](args, 0, true)
		if err != nil {
			return nil, err
		}
		recv.Set("lastAlert", msg)
		log.Info("alert", "message", msg)
		return nil, nil
	})

	root.Object("console").Method("log", func(_ context.Context, _ *Object, args []json.RawMessage) (any, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			var s string
			if err := json.Unmarshal(a, &s); err == nil {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, string(a))
		}
		log.Info("console.log", "message", strings.Join(parts, " "))
		return nil, nil
	})

	return root
}

// DefaultUserAgent identifies the Go peer.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("extsock-peer/%s (Go; %s/%s)", version, runtime.GOOS, runtime.GOARCH)
}
