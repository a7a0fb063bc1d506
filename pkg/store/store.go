// Package store defines the conversation persistence interface shared by
// the storage adapters (memory, postgres). Conversations are append-only
// message logs ordered by a store-assigned sequence number; truncation
// exists solely to roll back a cancelled turn.
package store

import (
	"context"
	"errors"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
)

// Store persists conversation history. Implementations must be safe for
// concurrent use; callers serialize appends within one conversation (the
// orchestrator runs one turn at a time per conversation).
type Store interface {
	// Append persists a message at the end of the conversation and
	// returns it with its assigned sequence number. Sequence numbers
	// within a conversation start at 1 and increase by 1 per append.
	Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error)

	// Messages returns the conversation's messages in sequence order.
	// An unknown conversation yields an empty slice, not an error.
	Messages(ctx context.Context, conversationID string) ([]chat.Message, error)

	// Truncate removes every message with a sequence number greater
	// than seq, rolling the conversation back to that point.
	Truncate(ctx context.Context, conversationID string, seq int) error

	// Close releases storage resources.
	Close() error
}
