package chatcompat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/provider"
)

// azureAPIVersion pins the Azure OpenAI data-plane version the adapter
// speaks. Bump deliberately; Azure gates request fields by version.
const azureAPIVersion = "2024-10-21"

func init() {
	provider.Register("azure", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return newClient("azure", cfg), nil
	})
	provider.Register("custom", func(cfg provider.ClientConfig) (provider.Provider, error) {
		return newClient("custom", cfg), nil
	})
}

// Client speaks the Chat Completions protocol over SSE. The kind decides
// URL shape and auth header: Azure routes per deployment and expects an
// api-key header, everything else gets {endpoint}/chat/completions with
// bearer auth.
type Client struct {
	kind       string
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

func newClient(kind string, cfg provider.ClientConfig) *Client {
	return &Client{
		kind: kind,
		// No client timeout: a stream legitimately outlives any fixed
		// bound, and the request context controls its lifetime.
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return c.kind }

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (*provider.Session, error) {
	body, err := json.Marshal(translateRequest(req))
	if err != nil {
		return nil, chat.NewBackendError(chat.BackendNetwork, err, "encoding request")
	}

	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.requestURL(req.Model), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, chat.NewBackendError(chat.BackendNetwork, err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, mapNetworkError(err)
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
		parseSSE(streamCtx, resp.Body, ch)
	}()

	return provider.NewSession(ch, cancel), nil
}

// Close implements provider.Provider.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) requestURL(model string) string {
	if c.kind == "azure" {
		return c.endpoint + "/openai/deployments/" + model + "/chat/completions?api-version=" + azureAPIVersion
	}
	return c.endpoint + "/chat/completions"
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	if c.kind == "azure" {
		req.Header.Set("api-key", c.apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
