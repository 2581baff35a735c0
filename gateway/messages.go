package gateway

import (
	"context"
	"net/http"
	"time"
)

// SendRequest is the body of POST /v2/send.
type SendRequest struct {
	Number            string   `json:"number,omitempty"`
	Recipients        []string `json:"recipients"`
	Message           string   `json:"message"`
	Base64Attachments []string `json:"base64_attachments,omitempty"`
	QuoteTimestamp    int64    `json:"quote_timestamp,omitempty"`
	QuoteAuthor       string   `json:"quote_author,omitempty"`
	QuoteMessage      string   `json:"quote_message,omitempty"`
	Mentions          []string `json:"mentions,omitempty"`
	EditTimestamp     int64    `json:"edit_timestamp,omitempty"`
	ViewOnce          bool     `json:"view_once,omitempty"`
}

// SendResponse is the gateway's acknowledgement of a send.
type SendResponse struct {
	Timestamp int64 `json:"timestamp"`
}

// TypingRequest addresses a typing indicator.
type TypingRequest struct {
	Recipient string `json:"recipient"`
}

// RemoteDeleteRequest addresses a remote delete.
type RemoteDeleteRequest struct {
	Recipient string `json:"recipient,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MessagesClient sends, edits, and deletes messages.
type MessagesClient struct {
	client *Client
}

// Send delivers a message and returns the gateway timestamp.
func (m *MessagesClient) Send(ctx context.Context, req *SendRequest, opts ...RequestOption) (*SendResponse, error) {
	o := buildOptions(opts)
	o.Body = req
	resp, err := m.client.Request(ctx, http.MethodPost, "/v2/send", o)
	if err != nil {
		return nil, err
	}
	var out SendResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoteDelete deletes a previously sent message for all recipients.
func (m *MessagesClient) RemoteDelete(ctx context.Context, number string, req *RemoteDeleteRequest) error {
	_, err := m.client.Request(ctx, http.MethodDelete, "/v1/remote-delete/"+number, RequestOptions{Body: req})
	return err
}

// StartTyping shows the typing indicator in the given conversation.
func (m *MessagesClient) StartTyping(ctx context.Context, number, recipient string) error {
	_, err := m.client.Request(ctx, http.MethodPut, "/v1/typing-indicator/"+number,
		RequestOptions{Body: &TypingRequest{Recipient: recipient}})
	return err
}

// StopTyping hides the typing indicator in the given conversation.
func (m *MessagesClient) StopTyping(ctx context.Context, number, recipient string) error {
	_, err := m.client.Request(ctx, http.MethodDelete, "/v1/typing-indicator/"+number,
		RequestOptions{Body: &TypingRequest{Recipient: recipient}})
	return err
}

// RequestOption tweaks a single resource-client call.
type RequestOption func(*RequestOptions)

// WithIdempotencyKey attaches an idempotency key so the gateway can
// deduplicate a retried request.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *RequestOptions) { o.IdempotencyKey = key }
}

// WithTimeout overrides the endpoint timeout for this call.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *RequestOptions) { o.Timeout = d }
}

func buildOptions(opts []RequestOption) RequestOptions {
	var o RequestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
