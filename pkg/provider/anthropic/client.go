// Package anthropic implements the provider interface against the
// Anthropic Messages API, parsing its SSE event stream directly.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// errStreamFailed aborts SSE consumption after an in-band error event has
// already been delivered to the session.
var errStreamFailed = errors.New("stream failed")

func init() {
	provider.Register("anthropic", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return NewClient(cfg), nil
	})
}

// Client speaks the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a Messages API client. An empty endpoint targets the
// public API.
func NewClient(cfg provider.ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "anthropic" }

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (*provider.Session, error) {
	body, err := json.Marshal(translateRequest(req))
	if err != nil {
		return nil, chat.NewBackendError(chat.BackendNetwork, err, "encoding request")
	}

	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, chat.NewBackendError(chat.BackendNetwork, err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) {
			return nil, chat.NewCancelledError()
		}
		return nil, chat.NewBackendError(chat.BackendNetwork, err, "backend unreachable")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		return nil, mapHTTPError(resp)
	}

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		parseStream(streamCtx, resp.Body, ch)
	}()

	return provider.NewSession(ch, cancel), nil
}

// Close implements provider.Provider.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// mapHTTPError converts a non-2xx Messages API response into a backend
// error with the matching sub-code.
func mapHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := http.StatusText(resp.StatusCode)
	errType := ""
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		errType = envelope.Error.Type
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return chat.NewBackendError(chat.BackendAuth, nil, "backend rejected credentials (HTTP %d): %s", resp.StatusCode, message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return chat.NewBackendError(chat.BackendRateLimited, nil, "backend rate limited (HTTP %d): %s", resp.StatusCode, message)
	default:
		return chat.NewBackendError(chat.BackendNetwork, nil, "backend request failed (HTTP %d, %s): %s", resp.StatusCode, errType, message)
	}
}

// mapStreamError classifies an in-band error event.
func mapStreamError(errType, message string) error {
	switch errType {
	case "authentication_error", "permission_error":
		return chat.NewBackendError(chat.BackendAuth, nil, "%s", message)
	case "rate_limit_error", "overloaded_error":
		return chat.NewBackendError(chat.BackendRateLimited, nil, "%s", message)
	default:
		return chat.NewBackendError(chat.BackendNetwork, nil, "%s", message)
	}
}
