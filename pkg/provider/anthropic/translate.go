package anthropic

import (
	"encoding/json"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// translateRequest converts the shared request shape into a Messages API
// request. System messages become the top-level system field, assistant
// tool calls become tool_use blocks, and tool results fold into user
// turns as tool_result blocks, per the Messages conversation model.
func translateRequest(req *provider.Request) *messageRequest {
	out := &messageRequest{
		Model:       req.Model,
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, toolParam{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleSystem:
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.Content

		case chat.RoleAssistant:
			var blocks []contentBlock
			if m.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: toolInput(tc.Arguments),
				})
			}
			out.Messages = append(out.Messages, messageParam{Role: "assistant", Content: blocks})

		case chat.RoleTool:
			out.Messages = append(out.Messages, messageParam{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
					IsError:   m.IsError,
				}},
			})

		default: // user
			out.Messages = append(out.Messages, messageParam{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	return out
}

// toolInput passes accumulated argument JSON through verbatim when it is
// valid, and falls back to an empty object for a model that produced no
// arguments at all.
func toolInput(arguments string) json.RawMessage {
	if json.Valid([]byte(arguments)) && arguments != "" {
		return json.RawMessage(arguments)
	}
	return json.RawMessage(`{}`)
}
