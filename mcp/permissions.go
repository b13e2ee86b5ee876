package mcp

import "extsock/config"

// Tool names published by the MCP server.
const (
	ToolAlert        = "alert"
	ToolBridgeStatus = "bridge_status"
	ToolListCalls    = "list_calls"
	ToolCallTool     = "call_tool"
	ToolReadResource = "read_resource"
)

// AllowedTools returns the list of tool names that should be exposed
// by the MCP server based on configuration permissions.
//
// Policy:
// - alert, bridge_status and list_calls are always allowed
// - call_tool and read_resource are only allowed if AllowGenericCalls is true
func AllowedTools(cfg *config.Config) []string {
	tools := []string{
		ToolAlert,
		ToolBridgeStatus,
		ToolListCalls,
	}

	if cfg != nil && cfg.MCP.AllowGenericCalls {
		tools = append(tools,
			ToolCallTool,
			ToolReadResource,
		)
	}

	return tools
}
