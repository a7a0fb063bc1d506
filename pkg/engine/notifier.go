package engine

import "github.com/famulus-ai/famulus/pkg/chat"

// Notifier receives incremental turn progress for presentation. All
// notifications are append-only: text already delivered is never
// retracted, even when the turn later fails or is cancelled.
//
// Implementations must not block; the orchestrator calls them inline
// between stream events.
type Notifier interface {
	// TextDelta delivers one increment of assistant text.
	TextDelta(delta string)

	// ToolCallPlanned announces a tool call the model has requested,
	// before it is dispatched.
	ToolCallPlanned(call chat.ToolCall)

	// ToolCallDone delivers the result of one dispatched tool call.
	ToolCallDone(call chat.ToolCall, result chat.ToolResult)

	// TurnCompleted marks a successful turn with its token accounting.
	TurnCompleted(usage chat.Usage)

	// TurnFailed marks a failed or cancelled turn.
	TurnFailed(err error)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) TextDelta(string)                            {}
func (NopNotifier) ToolCallPlanned(chat.ToolCall)               {}
func (NopNotifier) ToolCallDone(chat.ToolCall, chat.ToolResult) {}
func (NopNotifier) TurnCompleted(chat.Usage)                    {}
func (NopNotifier) TurnFailed(error)                            {}
