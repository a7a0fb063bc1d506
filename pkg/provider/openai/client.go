// Package openai implements the provider interface against the OpenAI
// Responses API using the official Go SDK.
package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

func init() {
	provider.Register("openai", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return NewClient(cfg), nil
	})
}

// Client wraps the official OpenAI SDK's Responses streaming.
type Client struct {
	client openaisdk.Client
}

// NewClient builds a Responses API client. An empty endpoint targets the
// public API.
func NewClient(cfg provider.ClientConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &Client{client: openaisdk.NewClient(opts...)}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "openai" }

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (*provider.Session, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		c.run(streamCtx, translateRequest(req), ch)
	}()

	return provider.NewSession(ch, cancel), nil
}

// callState tracks one in-flight function call by its output item ID.
type callState struct {
	buf   *provider.ToolCallBuffer
	index int
}

// run drives the SDK stream and translates Responses events. Function
// calls arrive as output items: item added opens a buffer, argument
// deltas accumulate into it, item done seals it. The terminal done event
// is emitted only when the response completes.
func (c *Client) run(ctx context.Context, params responses.ResponseNewParams, ch chan<- provider.Event) {
	stream := c.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	calls := make(map[string]*callState)
	nextIndex := 0
	var usage *chat.Usage
	completed := false

	for stream.Next() {
		switch variant := stream.Current().AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			if variant.Delta != "" {
				if !provider.Emit(ctx, ch, provider.Event{Type: provider.EventTextDelta, Delta: variant.Delta}) {
					return
				}
			}

		case responses.ResponseOutputItemAddedEvent:
			if variant.Item.Type != "function_call" {
				continue
			}
			id := variant.Item.CallID
			if id == "" {
				id = variant.Item.ID
			}
			state := &callState{
				buf:   &provider.ToolCallBuffer{ID: id, Name: variant.Item.Name},
				index: nextIndex,
			}
			nextIndex++
			calls[variant.Item.ID] = state
			ok := provider.Emit(ctx, ch, provider.Event{
				Type:       provider.EventToolCallDelta,
				Index:      state.index,
				ToolCallID: id,
				Name:       variant.Item.Name,
			})
			if !ok {
				return
			}

		case responses.ResponseFunctionCallArgumentsDeltaEvent:
			state, ok := calls[variant.ItemID]
			if !ok {
				continue
			}
			state.buf.Append(variant.Delta)
			ok = provider.Emit(ctx, ch, provider.Event{
				Type:       provider.EventToolCallDelta,
				Index:      state.index,
				ToolCallID: state.buf.ID,
				Name:       state.buf.Name,
				Delta:      variant.Delta,
			})
			if !ok {
				return
			}

		case responses.ResponseOutputItemDoneEvent:
			if variant.Item.Type != "function_call" {
				continue
			}
			state, ok := calls[variant.Item.ID]
			if !ok {
				continue
			}
			delete(calls, variant.Item.ID)
			if variant.Item.Name != "" {
				state.buf.Name = variant.Item.Name
			}
			call := state.buf.Call()
			ok = provider.Emit(ctx, ch, provider.Event{
				Type:       provider.EventToolCallDone,
				Index:      state.index,
				ToolCallID: call.ID,
				Name:       call.Name,
				Call:       &call,
			})
			if !ok {
				return
			}

		case responses.ResponseCompletedEvent:
			completed = true
			if variant.Response.Usage.TotalTokens > 0 {
				usage = &chat.Usage{
					InputTokens:  int(variant.Response.Usage.InputTokens),
					OutputTokens: int(variant.Response.Usage.OutputTokens),
					TotalTokens:  int(variant.Response.Usage.TotalTokens),
				}
			}

		case responses.ResponseErrorEvent:
			provider.Emit(ctx, ch, provider.Event{
				Type: provider.EventError,
				Err:  chat.NewBackendError(chat.BackendNetwork, nil, "backend reported: %s", variant.Message),
			})
			return

		case responses.ResponseFailedEvent:
			provider.Emit(ctx, ch, provider.Event{
				Type: provider.EventError,
				Err:  chat.NewBackendError(chat.BackendNetwork, nil, "response failed"),
			})
			return
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		provider.Emit(ctx, ch, provider.Event{Type: provider.EventError, Err: mapSDKError(err)})
		return
	}

	if completed {
		provider.Emit(ctx, ch, provider.Event{Type: provider.EventDone, Usage: usage})
	}
}

// Close implements provider.Provider.
func (c *Client) Close() error { return nil }

// mapSDKError classifies SDK-level failures by HTTP status where one is
// attached.
func mapSDKError(err error) error {
	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
			return chat.NewBackendError(chat.BackendAuth, err, "backend rejected credentials (HTTP %d)", apierr.StatusCode)
		case apierr.StatusCode == http.StatusTooManyRequests:
			return chat.NewBackendError(chat.BackendRateLimited, err, "backend rate limited (HTTP %d)", apierr.StatusCode)
		default:
			return chat.NewBackendError(chat.BackendNetwork, err, "backend request failed (HTTP %d)", apierr.StatusCode)
		}
	}
	return chat.NewBackendError(chat.BackendNetwork, err, "stream failed")
}
