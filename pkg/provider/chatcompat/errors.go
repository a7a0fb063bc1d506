package chatcompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// mapHTTPError converts a non-2xx backend response into a backend error
// with the matching sub-code. The body is consumed for the error message.
func mapHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := http.StatusText(resp.StatusCode)
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return chat.NewBackendError(chat.BackendAuth, nil, "backend rejected credentials (HTTP %d): %s", resp.StatusCode, message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return chat.NewBackendError(chat.BackendRateLimited, nil, "backend rate limited (HTTP %d): %s", resp.StatusCode, message)
	default:
		return chat.NewBackendError(chat.BackendNetwork, nil, "backend request failed (HTTP %d): %s", resp.StatusCode, message)
	}
}

// mapNetworkError converts transport-level failures into backend errors.
func mapNetworkError(err error) error {
	if errors.Is(err, context.Canceled) {
		return chat.NewCancelledError()
	}
	return chat.NewBackendError(chat.BackendNetwork, err, "backend unreachable")
}
