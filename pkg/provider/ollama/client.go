// Package ollama implements the provider interface against a local
// Ollama server using the official API client.
package ollama

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

func init() {
	provider.Register("ollama", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return NewClient(cfg)
	})
}

// Client wraps the Ollama API client. Ollama streams whole tool calls in
// single chunks, so no argument reassembly is needed.
type Client struct {
	client *api.Client
}

// NewClient builds an Ollama client for the configured endpoint.
func NewClient(cfg provider.ClientConfig) (*Client, error) {
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, chat.NewConfigError("invalid ollama endpoint %q: %v", cfg.Endpoint, err)
	}
	// No HTTP timeout: model loading alone can take minutes, and the
	// request context governs stream lifetime.
	return &Client{client: api.NewClient(base, &http.Client{})}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "ollama" }

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (*provider.Session, error) {
	stream := true
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: translateMessages(req.Messages),
		Tools:    translateTools(req.Tools),
		Stream:   &stream,
	}

	opts := make(map[string]any)
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		opts["num_predict"] = *req.MaxTokens
	}
	if len(opts) > 0 {
		chatReq.Options = opts
	}

	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)

		var usage chat.Usage
		done := false

		err := c.client.Chat(streamCtx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !provider.Emit(streamCtx, ch, provider.Event{Type: provider.EventTextDelta, Delta: resp.Message.Content}) {
					return streamCtx.Err()
				}
			}
			for i, tc := range resp.Message.ToolCalls {
				call := sealToolCall(tc)
				ok := provider.Emit(streamCtx, ch, provider.Event{
					Type:       provider.EventToolCallDone,
					Index:      i,
					ToolCallID: call.ID,
					Name:       call.Name,
					Call:       &call,
				})
				if !ok {
					return streamCtx.Err()
				}
			}
			if resp.Done {
				done = true
				usage = chat.Usage{
					InputTokens:  resp.PromptEvalCount,
					OutputTokens: resp.EvalCount,
					TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
				}
			}
			return nil
		})

		if err != nil {
			if streamCtx.Err() != nil {
				return
			}
			provider.Emit(streamCtx, ch, provider.Event{
				Type: provider.EventError,
				Err:  chat.NewBackendError(chat.BackendNetwork, err, "ollama request failed"),
			})
			return
		}
		if done {
			u := usage
			provider.Emit(streamCtx, ch, provider.Event{Type: provider.EventDone, Usage: &u})
		}
	}()

	return provider.NewSession(ch, cancel), nil
}

// Close implements provider.Provider.
func (c *Client) Close() error { return nil }
