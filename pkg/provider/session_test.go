package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/famulus-ai/famulus/pkg/chat"
)

func TestSessionRecv_EventOrder(t *testing.T) {
	events := make(chan Event, 4)
	events <- Event{Type: EventTextDelta, Delta: "hel"}
	events <- Event{Type: EventTextDelta, Delta: "lo"}
	events <- Event{Type: EventDone, Usage: &chat.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}}
	close(events)

	s := NewSession(events, func() {})
	ctx := context.Background()

	var text string
	for {
		ev, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if ev.Type == EventDone {
			if ev.Usage == nil || ev.Usage.TotalTokens != 5 {
				t.Errorf("Done usage = %+v, want 5 total tokens", ev.Usage)
			}
			break
		}
		text += ev.Delta
	}
	if text != "hello" {
		t.Errorf("accumulated text = %q, want %q", text, "hello")
	}
}

func TestSessionRecv_TruncatedStream(t *testing.T) {
	events := make(chan Event, 1)
	events <- Event{Type: EventTextDelta, Delta: "par"}
	close(events)

	s := NewSession(events, func() {})
	ctx := context.Background()

	if _, err := s.Recv(ctx); err != nil {
		t.Fatalf("first Recv failed: %v", err)
	}
	_, err := s.Recv(ctx)
	if err == nil {
		t.Fatal("expected error on truncated stream")
	}
	var ee *chat.EngineError
	if !errors.As(err, &ee) || ee.Code != chat.BackendMalformedStream {
		t.Errorf("error = %v, want malformed_stream backend error", err)
	}
}

func TestSessionRecv_Cancelled(t *testing.T) {
	events := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(events, cancel)

	go func() {
		// The adapter goroutine observes the cancelled context and
		// closes its channel without a terminal event.
		<-ctx.Done()
		close(events)
	}()

	s.Cancel()

	_, err := s.Recv(context.Background())
	if chat.KindOf(err) != chat.ErrKindCancelled {
		t.Errorf("error kind = %q, want cancelled", chat.KindOf(err))
	}
	if !s.Cancelled() {
		t.Error("Cancelled() = false after Cancel")
	}
}

func TestSessionRecv_ContextDone(t *testing.T) {
	events := make(chan Event)
	s := NewSession(events, func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Recv(ctx)
	if chat.KindOf(err) != chat.ErrKindBackend {
		t.Errorf("error kind = %q, want backend", chat.KindOf(err))
	}
}

func TestEmit_ReleasesBlockedProducer(t *testing.T) {
	// A full channel with no consumer must not strand the sender once
	// the stream context is cancelled.
	ch := make(chan Event, 1)
	ch <- Event{Type: EventTextDelta, Delta: "queued"}

	ctx, cancel := context.WithCancel(context.Background())

	released := make(chan bool, 1)
	go func() {
		released <- Emit(ctx, ch, Event{Type: EventTextDelta, Delta: "blocked"})
	}()

	cancel()
	select {
	case sent := <-released:
		if sent {
			t.Error("Emit reported a send on a cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Emit stayed blocked after cancellation")
	}
}

func TestEmit_DeliversWhileLive(t *testing.T) {
	ch := make(chan Event, 1)
	if !Emit(context.Background(), ch, Event{Type: EventDone}) {
		t.Fatal("Emit failed with channel capacity available")
	}
	if ev := <-ch; ev.Type != EventDone {
		t.Errorf("event type = %q, want done", ev.Type)
	}
}

func TestToolCallBuffer(t *testing.T) {
	buf := &ToolCallBuffer{ID: "call_1", Name: "add"}
	buf.Append(`{"a":`)
	buf.Append(`2,"b":2}`)

	call := buf.Call()
	if call.ID != "call_1" || call.Name != "add" {
		t.Errorf("call = %+v, want id call_1 name add", call)
	}
	if call.Arguments != `{"a":2,"b":2}` {
		t.Errorf("arguments = %q", call.Arguments)
	}
}

func TestToolCallBuffer_MintsID(t *testing.T) {
	buf := &ToolCallBuffer{Name: "get_time"}
	call := buf.Call()
	if call.ID == "" {
		t.Error("expected a minted call ID for a backend that omits them")
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	_, err := New("no-such-backend", ClientConfig{})
	if chat.KindOf(err) != chat.ErrKindConfig {
		t.Errorf("error kind = %q, want config", chat.KindOf(err))
	}
}
