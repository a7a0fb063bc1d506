package engine

// TurnState tracks where a turn is in its lifecycle. Transitions are
// driven solely by the orchestrator; the presentation layer only
// observes them.
type TurnState int

const (
	StateIdle TurnState = iota
	StateAwaitingModel
	StateStreamingText
	StateToolCallDetected
	StateExecutingTool
	StateInjectingResult
	StateCompleted
	StateFailed
)

// String returns the lower-case state name used in logs.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateStreamingText:
		return "streaming_text"
	case StateToolCallDetected:
		return "tool_call_detected"
	case StateExecutingTool:
		return "executing_tool"
	case StateInjectingResult:
		return "injecting_result"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
