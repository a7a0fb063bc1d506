package provider

import (
	"context"
	"sync/atomic"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Session is one in-flight streaming completion. Events arrive in stream
// order through Recv; Cancel aborts the underlying request. A Session is
// single-consumer: Recv must not be called concurrently.
type Session struct {
	events <-chan Event
	cancel context.CancelFunc

	cancelled atomic.Bool
	done      bool
}

// NewSession wraps an adapter's event channel. cancel must abort the
// underlying request; adapters close the channel when their stream
// goroutine exits.
func NewSession(events <-chan Event, cancel context.CancelFunc) *Session {
	return &Session{events: events, cancel: cancel}
}

// Recv returns the next stream event. It blocks until an event arrives,
// the stream ends, or ctx is done.
//
// A stream that ends without a terminal event (EventDone or EventError)
// was cut off by the backend and surfaces as a malformed-stream error,
// unless the session was cancelled, in which case Recv reports
// cancellation.
func (s *Session) Recv(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, chat.NewBackendError(chat.BackendNetwork, ctx.Err(), "stream interrupted")
	case ev, ok := <-s.events:
		if !ok {
			if s.cancelled.Load() {
				return Event{}, chat.NewCancelledError()
			}
			if s.done {
				return Event{}, chat.NewBackendError(chat.BackendMalformedStream, nil, "receive on finished stream")
			}
			return Event{}, chat.NewBackendError(chat.BackendMalformedStream, nil, "stream ended without a terminal event")
		}
		if ev.Type == EventDone || ev.Type == EventError {
			s.done = true
		}
		return ev, nil
	}
}

// Emit delivers one event on an adapter's channel unless ctx is done,
// reporting whether the send happened. Adapters route every channel
// send through it so a consumer that stopped receiving never strands
// the stream goroutine on a full channel.
func Emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}

// Cancel aborts the stream. Safe to call from any goroutine and more
// than once; a subsequent Recv reports cancellation once the adapter's
// stream goroutine has wound down.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}
