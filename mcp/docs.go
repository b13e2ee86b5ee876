package mcp

import (
	"context"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	docsMIMEType    = "text/markdown"
	docsOverviewURI = "resource://extsock/overview"
	docsToolsURI    = "resource://extsock/tools"
)

type docsResource struct {
	uri, name, title, description, body string
}

var docsResources = []docsResource{
	{
		uri:         docsOverviewURI,
		name:        "overview",
		title:       "extsock Overview",
		description: "How the bridge reaches the browser extension and how to check that a peer is connected.",
		body:        overviewMarkdown,
	},
	{
		uri:         docsToolsURI,
		name:        "tools",
		title:       "extsock Tools",
		description: "Reference for every published tool with sample JSON inputs.",
		body:        toolsMarkdown,
	},
}

func registerDocsResources(srv *sdk.Server) {
	for _, res := range docsResources {
		srv.AddResource(&sdk.Resource{
			URI:         res.uri,
			Name:        res.name,
			Title:       res.title,
			Description: res.description,
			MIMEType:    docsMIMEType,
		}, staticMarkdownResource(res.uri, res.body))
	}
}

func staticMarkdownResource(uri, body string) sdk.ResourceHandler {
	return func(_ context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
		if req != nil && req.Params != nil {
			target := req.Params.URI
			if idx := strings.IndexByte(target, '#'); idx >= 0 {
				target = target[:idx]
			}
			if target != "" && target != uri {
				return nil, sdk.ResourceNotFoundError(target)
			}
		}
		return &sdk.ReadResourceResult{
			Contents: []*sdk.ResourceContents{
				{
					URI:      uri,
					MIMEType: docsMIMEType,
					Text:     body,
				},
			},
		}, nil
	}
}

const overviewMarkdown = `# extsock Overview

extsock bridges this MCP server to a browser extension. The extension connects to a
local WebSocket endpoint (ws://127.0.0.1:54319 by default) and answers calls against
the page's global scope.

## Launch checklist
1. Start the server with: extsock serve --config ~/.config/extsock/config.yaml.
2. Load the extension (or run extsock peer for a local test peer).
3. Call bridge_status and check connected:true before calling other tools.

## Calls
- tool.<path> invokes a function, e.g. tool.alert with ["hello"].
- resource.<path> reads a value, e.g. resource.navigator.userAgent.
- Only one extension peer is active. A new connection replaces the old one and
  calls pending on the old peer fail with PeerSuperseded (-32002).
- Calls fail with PeerUnavailable (-32003) when no peer is connected and with
  CallTimeout (-32001) when the peer does not answer within call_timeout.

## Resource catalog
| URI | Summary |
| --- | --- |
| useragent://chrome | The connected browser's navigator.userAgent. |
| resource://extsock/overview | You are here. |
| resource://extsock/tools | Tool reference with sample inputs. |

## Configuration
- mcp.allow_generic_calls:true publishes call_tool and read_resource.
- journal.enabled:true records every call in SQLite; list_calls and extsock calls read it.
`

const toolsMarkdown = `# extsock Tools

| Tool | Purpose | Sample Input | Notes |
| --- | --- | --- | --- |
| alert | Show an alert in the page | {"message":"hello"} | Returns the message on success |
| bridge_status | Connection state of the bridge | {} | connected, peer_id, pending |
| list_calls | Recent calls from the journal | {"limit":20} | enabled:false when the journal is off |
| call_tool | Invoke any tool path | {"method":"document.setTitle","params":["hi"]} | Requires mcp.allow_generic_calls |
| read_resource | Read any resource path | {"path":"location.href"} | Requires mcp.allow_generic_calls |

Paths are dot separated identifiers (letters, digits, _ or $), up to 16 segments.
Failures reported by the extension are returned as tool errors with the peer's message.
`
