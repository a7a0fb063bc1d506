// Package gemini implements the provider interface against the Gemini
// API using the official Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

func init() {
	provider.Register("gemini", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return NewClient(cfg)
	})
}

// Client wraps the GenAI SDK's streaming generation. Gemini delivers
// whole function calls per chunk, so no argument reassembly is needed.
type Client struct {
	client *genai.Client
}

// NewClient builds a Gemini API client. An empty endpoint targets the
// public API.
func NewClient(cfg provider.ClientConfig) (*Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.Endpoint
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, chat.NewConfigError("creating gemini client: %v", err)
	}
	return &Client{client: client}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "gemini" }

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (*provider.Session, error) {
	contents, system := translateMessages(req.Messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             translateTools(req.Tools),
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)

		var usage *chat.Usage
		finished := false
		callIndex := 0

		for resp, err := range c.client.Models.GenerateContentStream(streamCtx, req.Model, contents, config) {
			if err != nil {
				if streamCtx.Err() != nil {
					return
				}
				provider.Emit(streamCtx, ch, provider.Event{Type: provider.EventError, Err: mapSDKError(err)})
				return
			}

			if resp.UsageMetadata != nil {
				usage = &chat.Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
				}
			}

			for _, candidate := range resp.Candidates {
				if candidate.FinishReason != "" {
					finished = true
				}
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" && !part.Thought {
						if !provider.Emit(streamCtx, ch, provider.Event{Type: provider.EventTextDelta, Delta: part.Text}) {
							return
						}
					}
					if part.FunctionCall != nil {
						call := sealFunctionCall(part.FunctionCall)
						ok := provider.Emit(streamCtx, ch, provider.Event{
							Type:       provider.EventToolCallDone,
							Index:      callIndex,
							ToolCallID: call.ID,
							Name:       call.Name,
							Call:       &call,
						})
						if !ok {
							return
						}
						callIndex++
					}
				}
			}
		}

		if finished {
			provider.Emit(streamCtx, ch, provider.Event{Type: provider.EventDone, Usage: usage})
		}
	}()

	return provider.NewSession(ch, cancel), nil
}

// Close implements provider.Provider.
func (c *Client) Close() error { return nil }

// mapSDKError classifies GenAI SDK failures by the HTTP status attached
// to API errors.
func mapSDKError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return chat.NewBackendError(chat.BackendAuth, err, "backend rejected credentials (HTTP %d)", apiErr.Code)
		case apiErr.Code == http.StatusTooManyRequests:
			return chat.NewBackendError(chat.BackendRateLimited, err, "backend rate limited (HTTP %d)", apiErr.Code)
		default:
			return chat.NewBackendError(chat.BackendNetwork, err, "backend request failed (HTTP %d)", apiErr.Code)
		}
	}
	return chat.NewBackendError(chat.BackendNetwork, err, "stream failed")
}
