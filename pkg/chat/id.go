package chat

import "github.com/google/uuid"

const (
	messageIDPrefix      = "msg_"
	toolCallIDPrefix     = "call_"
	turnIDPrefix         = "turn_"
	conversationIDPrefix = "conv_"
)

// NewMessageID returns a new "msg_"-prefixed identifier.
func NewMessageID() string {
	return messageIDPrefix + uuid.NewString()
}

// NewToolCallID returns a new "call_"-prefixed identifier. Used when a
// backend omits the call id from its stream (Gemini does this).
func NewToolCallID() string {
	return toolCallIDPrefix + uuid.NewString()
}

// NewTurnID returns a new "turn_"-prefixed identifier for one
// orchestrator turn.
func NewTurnID() string {
	return turnIDPrefix + uuid.NewString()
}

// NewConversationID returns a new "conv_"-prefixed identifier.
func NewConversationID() string {
	return conversationIDPrefix + uuid.NewString()
}
