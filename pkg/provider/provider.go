package provider

import (
	"context"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Provider abstracts an LLM completion backend. The interface is
// protocol-agnostic: each adapter translates between the shared request
// shape and its backend's own protocol (Chat Completions, Messages,
// Responses, etc.) internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the backend kind this adapter serves (e.g., "openai").
	Name() string

	// Stream starts a streaming completion and returns a Session the
	// caller consumes events from. Stream itself fails only on request
	// construction or connection errors; errors that occur mid-stream
	// are delivered through the Session.
	Stream(ctx context.Context, req *Request) (*Session, error)

	// Close releases adapter resources (HTTP clients, connections).
	Close() error
}

// ClientConfig carries the resolved credentials and endpoint an adapter
// needs. Model and sampling parameters travel per-request instead, so one
// adapter instance can serve several profiles against the same backend.
type ClientConfig struct {
	APIKey   string
	Endpoint string
}

// Request is the backend-facing completion request. It contains only what
// the adapter needs, stripped of storage and orchestration concerns.
type Request struct {
	Model    string
	Messages []chat.Message
	Tools    []chat.ToolDefinition

	Temperature *float64
	MaxTokens   *int
}

// ToolCallBuffer tracks incremental tool-call argument assembly across
// stream chunks for a single tool-call slot. Adapters key buffers by
// whatever their protocol indexes calls with (array index, item ID).
type ToolCallBuffer struct {
	ID   string
	Name string
	Args []byte
}

// Append accumulates an arguments fragment.
func (b *ToolCallBuffer) Append(fragment string) {
	b.Args = append(b.Args, fragment...)
}

// Call seals the buffer into a ToolCall, minting an ID if the backend
// never supplied one.
func (b *ToolCallBuffer) Call() chat.ToolCall {
	id := b.ID
	if id == "" {
		id = chat.NewToolCallID()
	}
	return chat.ToolCall{ID: id, Name: b.Name, Arguments: string(b.Args)}
}
