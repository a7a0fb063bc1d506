package mcp

// ServerState tracks one tool server's lifecycle.
type ServerState int

const (
	// StateStopped: not running; the initial and post-shutdown state.
	StateStopped ServerState = iota

	// StateStarting: subprocess spawned, transport connecting.
	StateStarting

	// StateHandshaking: protocol handshake and tool discovery underway.
	StateHandshaking

	// StateReady: handshake complete, tools discovered, accepting calls.
	StateReady

	// StateStopping: graceful shutdown requested.
	StateStopping

	// StateFailed: spawn, handshake, or runtime failure. Terminal until
	// an explicit restart.
	StateFailed
)

// String returns the lower-case state name used in logs and metrics.
func (s ServerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
