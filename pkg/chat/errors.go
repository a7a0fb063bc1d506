package chat

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine error. The set is closed: every failure
// surfaced by the engine carries exactly one of these kinds.
type ErrorKind string

const (
	// ErrKindConfig: malformed or missing profile/server configuration,
	// unresolved env placeholder. Fatal at load time.
	ErrKindConfig ErrorKind = "config"

	// ErrKindBackend: auth failure, rate limit, network failure, or a
	// malformed stream from a completion backend. Terminates the turn.
	ErrKindBackend ErrorKind = "backend"

	// ErrKindToolServer: spawn failure, handshake timeout, or crash of a
	// tool server. Isolated to that server.
	ErrKindToolServer ErrorKind = "tool_server"

	// ErrKindToolInvocation: timeout, malformed response, or unknown
	// tool. Always converted to an error ToolResult, never turn-fatal.
	ErrKindToolInvocation ErrorKind = "tool_invocation"

	// ErrKindLoopBound: the tool-call round limit was exceeded.
	ErrKindLoopBound ErrorKind = "loop_bound"

	// ErrKindCancelled: the turn was cancelled by the user.
	ErrKindCancelled ErrorKind = "cancelled"
)

// BackendErrorCode refines ErrKindBackend.
type BackendErrorCode string

const (
	BackendAuth            BackendErrorCode = "auth"
	BackendRateLimited     BackendErrorCode = "rate_limited"
	BackendNetwork         BackendErrorCode = "network"
	BackendMalformedStream BackendErrorCode = "malformed_stream"
)

// EngineError is the structured error surfaced by the engine and its
// components.
type EngineError struct {
	Kind    ErrorKind
	Code    BackendErrorCode // set only for ErrKindBackend
	Message string
	Err     error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *EngineError) Unwrap() error { return e.Err }

// NewConfigError builds a load-time configuration error.
func NewConfigError(format string, args ...any) *EngineError {
	return &EngineError{Kind: ErrKindConfig, Message: fmt.Sprintf(format, args...)}
}

// NewBackendError builds a backend error with the given sub-code,
// wrapping cause (which may be nil).
func NewBackendError(code BackendErrorCode, cause error, format string, args ...any) *EngineError {
	return &EngineError{
		Kind:    ErrKindBackend,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// NewToolServerError builds a tool-server lifecycle error.
func NewToolServerError(cause error, format string, args ...any) *EngineError {
	return &EngineError{Kind: ErrKindToolServer, Message: fmt.Sprintf(format, args...), Err: cause}
}

// NewLoopBoundError reports that the tool-call round limit was hit.
func NewLoopBoundError(limit int) *EngineError {
	return &EngineError{
		Kind:    ErrKindLoopBound,
		Message: fmt.Sprintf("tool-call round limit of %d exceeded", limit),
	}
}

// NewCancelledError reports user-initiated cancellation.
func NewCancelledError() *EngineError {
	return &EngineError{Kind: ErrKindCancelled, Message: "turn cancelled"}
}

// KindOf returns the ErrorKind of err if it is (or wraps) an EngineError,
// or an empty kind otherwise.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
