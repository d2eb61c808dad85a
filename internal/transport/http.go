// Package transport opens the outbound frame stream for a send.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

// ChatPath is the assistant endpoint relative to the upstream base URL.
const ChatPath = "/api/aura/chat"

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// HTTPTransport posts the user message and hands back the raw event stream.
type HTTPTransport struct {
	client *resty.Client
}

// NewHTTPTransport builds a transport against baseURL. The client carries no
// timeout; a send ends through its context.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream")
	return &HTTPTransport{client: client}
}

// NewHTTPTransportWithClient wraps an existing resty client.
func NewHTTPTransportWithClient(client *resty.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Open sends req and returns the unread response body. The caller closes it.
func (t *HTTPTransport) Open(ctx context.Context, req chat.StreamRequest) (io.ReadCloser, error) {
	if req.Attachments == nil {
		req.Attachments = []string{}
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(ChatPath)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", ChatPath, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return nil, fmt.Errorf("post %s: unexpected status %d: %s", ChatPath, resp.StatusCode(), strings.TrimSpace(string(snippet)))
	}
	return body, nil
}
