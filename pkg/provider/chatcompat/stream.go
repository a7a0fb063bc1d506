package chatcompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// parseSSE reads Chat Completions SSE chunks from body, translates them
// to provider events, and sends them on ch. The channel is NOT closed
// here; the caller closes it after parseSSE returns.
//
// Expected format:
//
//	data: {"choices":[...]}\n
//	\n
//	data: [DONE]\n
//
// Tool-call arguments arrive fragmented across chunks and are assembled
// per choice index; the assembled calls are sealed when the backend
// reports a finish reason. A terminal done event is emitted only when a
// finish reason was seen, so a connection cut mid-stream leaves the
// session without a terminal event.
func parseSSE(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	buffers := make(map[int]*provider.ToolCallBuffer)
	var usage *chat.Usage
	finished := false

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		if payload == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed stream chunk", "error", err)
			continue
		}

		// Usage-only chunks (stream_options.include_usage) have no
		// choices and arrive after the finish chunk.
		if chunk.Usage != nil {
			usage = &chat.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]

		for _, tc := range choice.Delta.ToolCalls {
			buf, ok := buffers[tc.Index]
			if !ok {
				buf = &provider.ToolCallBuffer{ID: tc.ID, Name: tc.Function.Name}
				buffers[tc.Index] = buf
			}
			buf.Append(tc.Function.Arguments)
			ok = provider.Emit(ctx, ch, provider.Event{
				Type:       provider.EventToolCallDelta,
				Index:      tc.Index,
				ToolCallID: buf.ID,
				Name:       buf.Name,
				Delta:      tc.Function.Arguments,
			})
			if !ok {
				return
			}
		}

		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			if !provider.Emit(ctx, ch, provider.Event{Type: provider.EventTextDelta, Delta: *choice.Delta.Content}) {
				return
			}
		}

		if choice.FinishReason != nil {
			if !flushToolCalls(ctx, buffers, ch) {
				return
			}
			finished = true
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		provider.Emit(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  chat.NewBackendError(chat.BackendNetwork, err, "stream read failed"),
		})
		return
	}

	if finished {
		provider.Emit(ctx, ch, provider.Event{Type: provider.EventDone, Usage: usage})
	}
	// No finish reason: fall through without a terminal event and let
	// the session report the truncation.
}

// flushToolCalls seals every buffered tool call in index order. Indexes
// come from the wire, so they are walked as found rather than assumed
// to be a dense range from zero.
func flushToolCalls(ctx context.Context, buffers map[int]*provider.ToolCallBuffer, ch chan<- provider.Event) bool {
	indexes := make([]int, 0, len(buffers))
	for idx := range buffers {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		buf := buffers[idx]
		delete(buffers, idx)
		call := buf.Call()
		ok := provider.Emit(ctx, ch, provider.Event{
			Type:       provider.EventToolCallDone,
			Index:      idx,
			ToolCallID: call.ID,
			Name:       call.Name,
			Call:       &call,
		})
		if !ok {
			return false
		}
	}
	return true
}
