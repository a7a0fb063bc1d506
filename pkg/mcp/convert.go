package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// convertTool converts an MCP tool declaration into the shared shape.
func convertTool(t *mcp.Tool) (chat.ToolDefinition, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return chat.ToolDefinition{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}
	return chat.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// convertResult folds an MCP call result into a ToolResult, joining the
// text content blocks.
func convertResult(callID string, result *mcp.CallToolResult) chat.ToolResult {
	var output string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if output != "" {
				output += "\n"
			}
			output += tc.Text
		}
	}
	return chat.ToolResult{
		ToolCallID: callID,
		Content:    output,
		IsError:    result.IsError,
	}
}

// errorResult builds the ToolResult shape for an invocation failure.
func errorResult(callID, format string, args ...any) chat.ToolResult {
	return chat.ToolResult{
		ToolCallID: callID,
		Content:    fmt.Sprintf(format, args...),
		IsError:    true,
	}
}
