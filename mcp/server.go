// Package mcp publishes the bridge to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"extsock/bridge"
	appcfg "extsock/config"
	"extsock/journal"
	"extsock/rpc"
	v "extsock/validate"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	userAgentURI      = "useragent://chrome"
	defaultCallsLimit = 20
	maxCallsLimit     = 500
)

func intPtr(i int) *int { return &i }

// StatusReporter reports the bridge's connection state. *bridge.Manager
// implements it.
type StatusReporter interface {
	Status() bridge.Status
}

// CallLister reads recent calls. *journal.Journal implements it.
type CallLister interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options wires the MCP server to the bridge.
type Options struct {
	Sender  bridge.Sender
	Status  StatusReporter
	Calls   CallLister
	Config  *appcfg.Config
	Version string
	Logger  *slog.Logger
}

// NewServer builds the MCP server and registers every tool and resource the
// configuration allows.
func NewServer(opts Options) (*sdk.Server, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("a bridge sender is required to start the MCP server")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration is required to start MCP server")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "mcp")

	impl := &sdk.Implementation{
		Name:    "extsock",
		Title:   "Extension Socket Server",
		Version: opts.Version,
	}
	srv := sdk.NewServer(impl, &sdk.ServerOptions{HasTools: true, HasResources: true})
	registerDocsResources(srv)

	tools := bridge.NewTools(opts.Sender)
	resources := bridge.NewResources(opts.Sender)

	srv.AddResource(&sdk.Resource{
		URI:         userAgentURI,
		Name:        "userAgent",
		Title:       "Browser User Agent",
		Description: "navigator.userAgent of the connected browser.",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, _ *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
		res := resources.CallExtension(ctx, "navigator.userAgent")
		if res.IsError {
			return nil, fmt.Errorf("failed to read user agent: %s", res.Text())
		}
		return &sdk.ReadResourceResult{
			Contents: []*sdk.ResourceContents{
				{URI: userAgentURI, MIMEType: "text/plain", Text: res.Text()},
			},
		}, nil
	})

	allowed := make(map[string]bool)
	for _, name := range AllowedTools(opts.Config) {
		allowed[name] = true
	}

	// alert {message}
	if allowed[ToolAlert] {
		sdk.AddTool[AlertIn, any](srv, &sdk.Tool{
			Name:        ToolAlert,
			Title:       "Alert",
			Description: "Show an alert with the given message in the connected page. Usage: " + docsToolsURI + "#alert.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"message": {Type: "string", Description: "Text to show."},
				},
				Required: []string{"message"},
			},
		}, func(ctx context.Context, _ *sdk.CallToolRequest, in AlertIn) (*sdk.CallToolResult, any, error) {
			res := tools.CallExtension(ctx, "alert", in.Message)
			if res.IsError {
				log.Debug("alert failed", "error", res.Text())
				return toolResult(res), nil, nil
			}
			return textResult(in.Message), nil, nil
		})
	}

	// bridge_status (no input)
	if allowed[ToolBridgeStatus] {
		sdk.AddTool[struct{}, StatusOut](srv, &sdk.Tool{
			Name:        ToolBridgeStatus,
			Title:       "Bridge Status",
			Description: "Report whether an extension peer is connected and how many calls are pending.",
			InputSchema: &jsonschema.Schema{Type: "object"},
		}, func(_ context.Context, _ *sdk.CallToolRequest, _ struct{}) (*sdk.CallToolResult, StatusOut, error) {
			return nil, statusOut(opts.Status), nil
		})
	}

	// list_calls {limit}
	if allowed[ToolListCalls] {
		sdk.AddTool[ListCallsIn, ListCallsOut](srv, &sdk.Tool{
			Name:        ToolListCalls,
			Title:       "List Calls",
			Description: "List recent bridge calls from the call journal, newest first.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"limit": {
						Type:        "integer",
						Description: fmt.Sprintf("Maximum number of calls (default %d, max %d).", defaultCallsLimit, maxCallsLimit),
						Minimum:     floatPtr(1),
						Maximum:     floatPtr(maxCallsLimit),
					},
				},
			},
		}, func(ctx context.Context, _ *sdk.CallToolRequest, in ListCallsIn) (*sdk.CallToolResult, ListCallsOut, error) {
			if opts.Calls == nil {
				return nil, ListCallsOut{Enabled: false, Calls: []journal.Entry{}}, nil
			}
			limit := in.Limit
			if limit <= 0 {
				limit = defaultCallsLimit
			}
			if limit > maxCallsLimit {
				limit = maxCallsLimit
			}
			calls, err := opts.Calls.List(ctx, limit)
			if err != nil {
				return &sdk.CallToolResult{}, ListCallsOut{}, fmt.Errorf("failed to list calls: %w", err)
			}
			return nil, ListCallsOut{Enabled: true, Calls: calls}, nil
		})
	}

	pathSchema := &jsonschema.Schema{
		Type:        "string",
		Description: "Dot separated member path, e.g. navigator.userAgent.",
		MinLength:   intPtr(v.PathMin),
		MaxLength:   intPtr(v.PathMax),
		Pattern:     v.PathPattern,
	}

	// call_tool {method, params}
	if allowed[ToolCallTool] {
		sdk.AddTool[CallToolIn, any](srv, &sdk.Tool{
			Name:        ToolCallTool,
			Title:       "Call Extension Tool",
			Description: "Invoke any function path on the connected page. Usage: " + docsToolsURI + "#call_tool.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"method": pathSchema,
					"params": {
						Type:        "array",
						Description: "Positional arguments.",
					},
				},
				Required: []string{"method"},
			},
		}, func(ctx context.Context, _ *sdk.CallToolRequest, in CallToolIn) (*sdk.CallToolResult, any, error) {
			method := strings.TrimSpace(in.Method)
			if err := v.ValidatePath(method); err != nil {
				return nil, nil, err
			}
			return toolResult(tools.CallExtension(ctx, method, in.Params...)), nil, nil
		})
	}

	// read_resource {path}
	if allowed[ToolReadResource] {
		sdk.AddTool[ReadResourceIn, any](srv, &sdk.Tool{
			Name:        ToolReadResource,
			Title:       "Read Extension Resource",
			Description: "Read any value path from the connected page. Usage: " + docsToolsURI + "#read_resource.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": pathSchema,
				},
				Required: []string{"path"},
			},
		}, func(ctx context.Context, _ *sdk.CallToolRequest, in ReadResourceIn) (*sdk.CallToolResult, any, error) {
			path := strings.TrimSpace(in.Path)
			if err := v.ValidatePath(path); err != nil {
				return nil, nil, err
			}
			return toolResult(resources.CallExtension(ctx, path)), nil, nil
		})
	}

	return srv, nil
}

// Serve runs srv over stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, srv *sdk.Server) error {
	return srv.Run(ctx, &sdk.StdioTransport{})
}

func floatPtr(f float64) *float64 { return &f }

// toolResult maps a bridge result onto an MCP tool result. Remote failures
// stay tool errors so the model sees the peer's message.
func toolResult(res rpc.Result) *sdk.CallToolResult {
	out := &sdk.CallToolResult{IsError: res.IsError}
	for _, c := range res.Content {
		out.Content = append(out.Content, &sdk.TextContent{Text: c.Text})
	}
	if len(out.Content) == 0 {
		out.Content = []sdk.Content{&sdk.TextContent{Text: ""}}
	}
	return out
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: text}}}
}

func statusOut(r StatusReporter) StatusOut {
	if r == nil {
		return StatusOut{}
	}
	st := r.Status()
	out := StatusOut{
		Listening: st.Listening,
		Addr:      st.Addr,
		Connected: st.Connected,
		PeerID:    st.PeerID,
		Remote:    st.Remote,
		Pending:   st.Pending,
	}
	if !st.ConnectedAt.IsZero() {
		out.ConnectedAt = st.ConnectedAt.UTC().Format(time.RFC3339)
	}
	return out
}

type AlertIn struct {
	Message string `json:"message" jsonschema:"text to show"`
}

type StatusOut struct {
	Listening   bool   `json:"listening" jsonschema:"true when the WebSocket endpoint is bound"`
	Addr        string `json:"addr,omitempty" jsonschema:"bound host:port"`
	Connected   bool   `json:"connected" jsonschema:"true when an extension peer is active"`
	PeerID      string `json:"peer_id,omitempty" jsonschema:"id of the active peer"`
	Remote      string `json:"remote,omitempty" jsonschema:"remote address of the active peer"`
	ConnectedAt string `json:"connected_at,omitempty" jsonschema:"when the active peer connected (RFC3339)"`
	Pending     int    `json:"pending" jsonschema:"calls waiting for a response"`
}

type ListCallsIn struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of calls"`
}

type ListCallsOut struct {
	Enabled bool            `json:"enabled" jsonschema:"false when the call journal is disabled"`
	Calls   []journal.Entry `json:"calls" jsonschema:"recent calls, newest first"`
}

type CallToolIn struct {
	Method string `json:"method" jsonschema:"function path such as document.setTitle"`
	Params []any  `json:"params,omitempty" jsonschema:"positional arguments"`
}

type ReadResourceIn struct {
	Path string `json:"path" jsonschema:"value path such as navigator.userAgent"`
}
