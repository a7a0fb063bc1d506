package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// consumeSSE parses a Server-Sent Events stream, invoking fn for each
// complete event. Comment lines are skipped; multi-line data payloads are
// joined with newlines per the SSE framing rules.
func consumeSSE(ctx context.Context, r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var dataBuf strings.Builder

	flush := func() error {
		if dataBuf.Len() == 0 {
			eventName = ""
			return nil
		}
		payload := dataBuf.String()
		dataBuf.Reset()
		return fn(eventName, payload)
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
			eventName = ""
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimSpace(line[5:]))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// parseStream translates Messages API SSE events into provider events on
// ch. The channel is NOT closed here; the caller closes it afterwards.
//
// Content arrives as indexed blocks: text blocks yield text deltas,
// tool_use blocks open a buffer on content_block_start, accumulate
// input_json_delta fragments, and seal on content_block_stop. The
// terminal done event is emitted only on message_stop, so a connection
// cut mid-message leaves the session without one.
func parseStream(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	buffers := make(map[int]*provider.ToolCallBuffer)
	var usage chat.Usage
	stopped := false

	err := consumeSSE(ctx, body, func(event, data string) error {
		switch event {
		case "message_start":
			var ev messageStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed message_start", "error", err)
				return nil
			}
			usage.InputTokens = ev.Message.Usage.InputTokens

		case "content_block_start":
			var ev contentBlockStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed content_block_start", "error", err)
				return nil
			}
			if ev.ContentBlock.Type == "tool_use" {
				buffers[ev.Index] = &provider.ToolCallBuffer{
					ID:   ev.ContentBlock.ID,
					Name: ev.ContentBlock.Name,
				}
				ok := provider.Emit(ctx, ch, provider.Event{
					Type:       provider.EventToolCallDelta,
					Index:      ev.Index,
					ToolCallID: ev.ContentBlock.ID,
					Name:       ev.ContentBlock.Name,
				})
				if !ok {
					return ctx.Err()
				}
			}

		case "content_block_delta":
			var ev contentBlockDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed content_block_delta", "error", err)
				return nil
			}
			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" {
					if !provider.Emit(ctx, ch, provider.Event{Type: provider.EventTextDelta, Delta: ev.Delta.Text}) {
						return ctx.Err()
					}
				}
			case "input_json_delta":
				if buf, ok := buffers[ev.Index]; ok {
					buf.Append(ev.Delta.PartialJSON)
					sent := provider.Emit(ctx, ch, provider.Event{
						Type:       provider.EventToolCallDelta,
						Index:      ev.Index,
						ToolCallID: buf.ID,
						Name:       buf.Name,
						Delta:      ev.Delta.PartialJSON,
					})
					if !sent {
						return ctx.Err()
					}
				}
			}

		case "content_block_stop":
			var ev contentBlockStopEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed content_block_stop", "error", err)
				return nil
			}
			if buf, ok := buffers[ev.Index]; ok {
				delete(buffers, ev.Index)
				call := buf.Call()
				sent := provider.Emit(ctx, ch, provider.Event{
					Type:       provider.EventToolCallDone,
					Index:      ev.Index,
					ToolCallID: call.ID,
					Name:       call.Name,
					Call:       &call,
				})
				if !sent {
					return ctx.Err()
				}
			}

		case "message_delta":
			var ev messageDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed message_delta", "error", err)
				return nil
			}
			usage.OutputTokens = ev.Usage.OutputTokens

		case "message_stop":
			stopped = true

		case "error":
			var ev errorResponse
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Warn("skipping malformed error event", "error", err)
				return nil
			}
			provider.Emit(ctx, ch, provider.Event{
				Type: provider.EventError,
				Err:  mapStreamError(ev.Error.Type, ev.Error.Message),
			})
			return errStreamFailed
		}
		return nil
	})

	if err != nil {
		if ctx.Err() != nil || err == errStreamFailed {
			return
		}
		provider.Emit(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  chat.NewBackendError(chat.BackendNetwork, err, "stream read failed"),
		})
		return
	}

	if stopped {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		u := usage
		provider.Emit(ctx, ch, provider.Event{Type: provider.EventDone, Usage: &u})
	}
}
