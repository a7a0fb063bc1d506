package chatcompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// sseHandler writes the given SSE lines and closes the connection.
func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}
}

// drain consumes a session until its terminal event, returning collected
// text, sealed tool calls, and the usage from the done event.
func drain(t *testing.T, s *provider.Session) (string, []chat.ToolCall, *chat.Usage) {
	t.Helper()
	var text string
	var calls []chat.ToolCall
	for {
		ev, err := s.Recv(context.Background())
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		switch ev.Type {
		case provider.EventTextDelta:
			text += ev.Delta
		case provider.EventToolCallDone:
			calls = append(calls, *ev.Call)
		case provider.EventDone:
			return text, calls, ev.Usage
		case provider.EventError:
			t.Fatalf("stream error: %v", ev.Err)
		}
	}
}

func TestStream_TextAndUsage(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"index":0,"delta":{"content":" there"}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL, APIKey: "k"})
	session, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	text, calls, usage := drain(t, session)
	if text != "Hello there" {
		t.Errorf("text = %q, want %q", text, "Hello there")
	}
	if len(calls) != 0 {
		t.Errorf("unexpected tool calls: %v", calls)
	}
	if usage == nil || usage.TotalTokens != 14 {
		t.Errorf("usage = %+v, want total 14", usage)
	}
}

func TestStream_FragmentedToolCall(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","function":{"name":"add","arguments":""}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"a\":2,"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"b\":2}"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL})
	session, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	_, calls, _ := drain(t, session)
	if len(calls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(calls))
	}
	if calls[0].ID != "call_abc" || calls[0].Name != "add" {
		t.Errorf("call = %+v", calls[0])
	}
	if calls[0].Arguments != `{"a":2,"b":2}` {
		t.Errorf("arguments = %q", calls[0].Arguments)
	}
}

func TestStream_SparseToolCallIndexes(t *testing.T) {
	// Slot indexes come from the wire and are not guaranteed to be a
	// dense range from zero: a negative or sparse index must still seal
	// in order and terminate the stream.
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":-1,"id":"call_neg","function":{"name":"first","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":7,"id":"call_seven","function":{"name":"second","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL})
	session, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	// Bound the whole drain so a sealing stall fails instead of hanging.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var calls []chat.ToolCall
	for {
		ev, err := session.Recv(ctx)
		if err != nil {
			t.Fatalf("stream did not terminate cleanly: %v", err)
		}
		if ev.Type == provider.EventToolCallDone {
			calls = append(calls, *ev.Call)
		}
		if ev.Type == provider.EventDone {
			break
		}
	}

	if len(calls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(calls))
	}
	if calls[0].ID != "call_neg" || calls[1].ID != "call_seven" {
		t.Errorf("calls sealed out of order: %+v", calls)
	}
}

func TestStream_TruncatedMidToolCall(t *testing.T) {
	// The backend dies before sending a finish_reason: the session must
	// surface a malformed-stream error rather than a partial tool call.
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_x","function":{"name":"add","arguments":"{\"a\":"}}]}}]}`,
	}))
	defer srv.Close()

	c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL})
	session, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var lastErr error
	for {
		ev, err := session.Recv(context.Background())
		if err != nil {
			lastErr = err
			break
		}
		if ev.Type == provider.EventDone {
			t.Fatal("truncated stream produced a done event")
		}
	}

	var ee *chat.EngineError
	if !errors.As(lastErr, &ee) || ee.Code != chat.BackendMalformedStream {
		t.Errorf("error = %v, want malformed_stream", lastErr)
	}
}

func TestStream_HTTPErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   chat.BackendErrorCode
	}{
		{http.StatusUnauthorized, chat.BackendAuth},
		{http.StatusForbidden, chat.BackendAuth},
		{http.StatusTooManyRequests, chat.BackendRateLimited},
		{http.StatusInternalServerError, chat.BackendNetwork},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL})
			_, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
			var ee *chat.EngineError
			if !errors.As(err, &ee) || ee.Code != tt.want {
				t.Errorf("error = %v, want code %q", err, tt.want)
			}
		})
	}
}

func TestRequestURL(t *testing.T) {
	azure := newClient("azure", provider.ClientConfig{Endpoint: "https://res.openai.azure.com/"})
	got := azure.requestURL("gpt-4o-deploy")
	want := "https://res.openai.azure.com/openai/deployments/gpt-4o-deploy/chat/completions?api-version=" + azureAPIVersion
	if got != want {
		t.Errorf("azure URL = %q, want %q", got, want)
	}

	custom := newClient("custom", provider.ClientConfig{Endpoint: "http://localhost:8000/v1"})
	if got := custom.requestURL("m"); got != "http://localhost:8000/v1/chat/completions" {
		t.Errorf("custom URL = %q", got)
	}
}

func TestSetAuth(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://x", nil)
	newClient("azure", provider.ClientConfig{APIKey: "k1"}).setAuth(req)
	if req.Header.Get("api-key") != "k1" {
		t.Errorf("azure auth header = %q, want api-key k1", req.Header.Get("api-key"))
	}

	req2, _ := http.NewRequest(http.MethodPost, "http://x", nil)
	newClient("custom", provider.ClientConfig{APIKey: "k2"}).setAuth(req2)
	if req2.Header.Get("Authorization") != "Bearer k2" {
		t.Errorf("custom auth header = %q", req2.Header.Get("Authorization"))
	}
}

func TestStream_Cancel(t *testing.T) {
	// A server that never finishes the stream.
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := newClient("custom", provider.ClientConfig{Endpoint: srv.URL})
	session, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if _, err := session.Recv(context.Background()); err != nil {
		t.Fatalf("first Recv failed: %v", err)
	}

	session.Cancel()

	_, err = session.Recv(context.Background())
	if chat.KindOf(err) != chat.ErrKindCancelled {
		t.Errorf("error kind = %q, want cancelled", chat.KindOf(err))
	}
}
