package gemini

import (
	"encoding/json"
	"log/slog"

	"google.golang.org/genai"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// translateMessages converts conversation history into Gemini contents.
// System messages become the system instruction, assistant turns map to
// the "model" role, and tool results ride in user turns as function
// responses. Gemini keys function responses by function name rather than
// call ID, so the name is recovered from the originating assistant turn.
func translateMessages(messages []chat.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	callNames := toolNameIndex(messages)

	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			if m.Content == "" {
				continue
			}
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})

		case chat.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					slog.Warn("dropping unparseable tool arguments from history", "tool", tc.Name, "error", err)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}

		case chat.RoleTool:
			response := map[string]any{"result": m.Content}
			if m.IsError {
				response = map[string]any{"error": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callNames[m.ToolCallID],
						Response: response,
					},
				}},
			})

		default: // user
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	return contents, system
}

// toolNameIndex maps every tool-call ID in the history to its function
// name.
func toolNameIndex(messages []chat.Message) map[string]string {
	names := make(map[string]string)
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Name
		}
	}
	return names
}

// translateTools converts tool definitions into Gemini function
// declarations, parsing each input schema into the SDK's schema type.
func translateTools(tools []chat.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.InputSchema) > 0 {
			var schema genai.Schema
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				slog.Warn("dropping unparseable tool schema", "tool", t.Name, "error", err)
			} else {
				fd.Parameters = &schema
			}
		}
		decls = append(decls, fd)
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// sealFunctionCall converts one complete Gemini function call into the
// shared shape. Gemini frequently omits call IDs, so one is minted when
// missing.
func sealFunctionCall(fc *genai.FunctionCall) chat.ToolCall {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = []byte("{}")
	}
	id := fc.ID
	if id == "" {
		id = chat.NewToolCallID()
	}
	return chat.ToolCall{ID: id, Name: fc.Name, Arguments: string(args)}
}
