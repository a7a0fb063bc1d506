// Package memory provides an in-memory Store for tests and lightweight
// deployments. Conversations are lost when the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/store"
)

// Store keeps conversations in a map guarded by a mutex.
type Store struct {
	mu            sync.RWMutex
	conversations map[string][]chat.Message
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{conversations: make(map[string][]chat.Message)}
}

// Append implements store.Store.
func (s *Store) Append(_ context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[conversationID]
	msg.Seq = len(msgs) + 1
	s.conversations[conversationID] = append(msgs, msg)
	return msg, nil
}

// Messages implements store.Store.
func (s *Store) Messages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversations[conversationID]
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Truncate implements store.Store.
func (s *Store) Truncate(_ context.Context, conversationID string, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	if seq < 0 {
		seq = 0
	}
	if seq < len(msgs) {
		s.conversations[conversationID] = msgs[:seq]
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }
