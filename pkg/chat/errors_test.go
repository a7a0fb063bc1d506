package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	e := NewBackendError(BackendRateLimited, nil, "backend returned 429")
	want := "backend/rate_limited: backend returned 429"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	c := NewConfigError("profile %q not found", "work")
	want = `config: profile "work" not found`
	if c.Error() != want {
		t.Errorf("Error() = %q, want %q", c.Error(), want)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewBackendError(BackendNetwork, cause, "dialing backend")
	wrapped := fmt.Errorf("turn failed: %w", e)

	if got := KindOf(wrapped); got != ErrKindBackend {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, ErrKindBackend)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to the original cause")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestLoopBoundError(t *testing.T) {
	e := NewLoopBoundError(8)
	if e.Kind != ErrKindLoopBound {
		t.Errorf("Kind = %q, want %q", e.Kind, ErrKindLoopBound)
	}
}
