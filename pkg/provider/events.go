package provider

import "github.com/famulus-ai/famulus/pkg/chat"

// EventType classifies a streaming event from the backend.
type EventType int

const (
	// EventTextDelta carries incremental assistant text.
	EventTextDelta EventType = iota

	// EventToolCallDelta carries an incremental tool-call argument
	// fragment. The first delta for a slot carries the tool name.
	EventToolCallDelta

	// EventToolCallDone seals one tool call: Call holds the complete
	// name and accumulated argument JSON.
	EventToolCallDone

	// EventDone terminates a successful stream. Usage is set when the
	// backend reported token accounting.
	EventDone

	// EventError terminates a failed stream. Err is always set.
	EventError
)

// String returns the metric label for the event type.
func (t EventType) String() string {
	switch t {
	case EventTextDelta:
		return "text_delta"
	case EventToolCallDelta:
		return "tool_call_delta"
	case EventToolCallDone:
		return "tool_call_done"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single streaming event from the backend. Exactly one of the
// payload fields is meaningful per type.
type Event struct {
	Type EventType

	// Delta holds incremental text or argument data.
	Delta string

	// Index identifies which tool-call slot a delta belongs to.
	Index int

	// ToolCallID and Name are populated on the first delta for a slot.
	ToolCallID string
	Name       string

	// Call is the sealed tool call, set on EventToolCallDone.
	Call *chat.ToolCall

	// Usage is set on EventDone when the backend reported it.
	Usage *chat.Usage

	// Err is set on EventError.
	Err error
}
