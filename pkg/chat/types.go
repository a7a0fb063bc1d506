package chat

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. Ordering within a conversation
// is append-only and total: Seq is assigned by the store on append and
// never reused.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls holds the tool invocations requested by the model.
	// Only set when Role is RoleAssistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message back to the call it answers.
	// Only set when Role is RoleTool.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// IsError marks a tool-role message that carries a failed invocation.
	IsError bool `json:"is_error,omitempty"`

	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCall is a single tool invocation requested by the model.
// Arguments is the raw JSON text exactly as accumulated from the stream.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of one tool invocation. Failures are data,
// not engine errors: IsError results flow back into the conversation the
// same way successful ones do.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ToolDefinition describes one tool discovered from a tool server,
// in the shape handed to provider adapters for translation into each
// backend's tool-declaration format.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Usage reports token accounting for one provider turn, when the backend
// supplies it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
	u.TotalTokens += u2.TotalTokens
}

// NewUserMessage builds an unsequenced user message.
func NewUserMessage(content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSystemMessage builds an unsequenced system message.
func NewSystemMessage(content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage builds an unsequenced assistant message carrying
// the streamed text and any tool calls collected during the turn.
func NewAssistantMessage(content string, calls []ToolCall) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: calls,
		CreatedAt: time.Now().UTC(),
	}
}

// NewToolMessage folds a ToolResult into a tool-role message tagged with
// its originating tool_call_id.
func NewToolMessage(res ToolResult) Message {
	return Message{
		ID:         NewMessageID(),
		Role:       RoleTool,
		Content:    res.Content,
		ToolCallID: res.ToolCallID,
		IsError:    res.IsError,
		CreatedAt:  time.Now().UTC(),
	}
}
