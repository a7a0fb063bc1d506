package ollama

import (
	"encoding/json"
	"log/slog"

	"github.com/ollama/ollama/api"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// translateMessages converts conversation history into Ollama chat
// messages. Tool-call arguments round-trip through JSON because the SDK
// models them as a typed map rather than a raw string.
func translateMessages(messages []chat.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))

	for _, m := range messages {
		msg := api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		}

		if m.Role == chat.RoleAssistant {
			for _, tc := range m.ToolCalls {
				var args api.ToolCallFunctionArguments
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					slog.Warn("dropping unparseable tool arguments from history", "tool", tc.Name, "error", err)
				}
				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
		}

		if m.Role == chat.RoleTool {
			msg.ToolCallID = m.ToolCallID
		}

		out = append(out, msg)
	}

	return out
}

// translateTools converts tool definitions into the SDK's tool type via
// a JSON round-trip, which sidesteps the SDK's hand-built schema structs.
func translateTools(tools []chat.ToolDefinition) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	type wireFunc struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	}
	type wireTool struct {
		Type     string   `json:"type"`
		Function wireFunc `json:"function"`
	}

	wire := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		wire = append(wire, wireTool{
			Type: "function",
			Function: wireFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		slog.Warn("dropping tool declarations", "error", err)
		return nil
	}
	var out []api.Tool
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("dropping tool declarations", "error", err)
		return nil
	}
	return out
}

// sealToolCall converts one complete SDK tool call into the shared shape,
// minting a call ID when the model omitted one.
func sealToolCall(tc api.ToolCall) chat.ToolCall {
	args, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	buf := provider.ToolCallBuffer{ID: tc.ID, Name: tc.Function.Name, Args: args}
	return buf.Call()
}
