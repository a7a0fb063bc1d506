package chatcompat

import (
	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// translateRequest converts the shared request shape into a Chat
// Completions request body.
func translateRequest(req *provider.Request) *chatRequest {
	out := &chatRequest{
		Model:       req.Model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
		StreamOptions: &streamOptions{
			IncludeUsage: true,
		},
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, translateMessage(m))
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return out
}

func translateMessage(m chat.Message) chatMessage {
	wire := chatMessage{
		Role:    string(m.Role),
		Content: m.Content,
	}

	switch m.Role {
	case chat.RoleAssistant:
		for _, tc := range m.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
	case chat.RoleTool:
		wire.ToolCallID = m.ToolCallID
	}

	return wire
}
