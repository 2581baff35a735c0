package gateway

import (
	"context"
	"net/http"
)

// ReactionRequest is the body of the reaction endpoints.
type ReactionRequest struct {
	Recipient       string `json:"recipient,omitempty"`
	Group           string `json:"group,omitempty"`
	Emoji           string `json:"reaction"`
	TargetAuthor    string `json:"target_author"`
	TargetTimestamp int64  `json:"timestamp"`
}

// ReactionsClient adds and removes emoji reactions.
type ReactionsClient struct {
	client *Client
}

// Send adds a reaction to an earlier message.
func (r *ReactionsClient) Send(ctx context.Context, number string, req *ReactionRequest) error {
	_, err := r.client.Request(ctx, http.MethodPost, "/v1/reactions/"+number, RequestOptions{Body: req})
	return err
}

// Remove deletes a previously sent reaction.
func (r *ReactionsClient) Remove(ctx context.Context, number string, req *ReactionRequest) error {
	_, err := r.client.Request(ctx, http.MethodDelete, "/v1/reactions/"+number, RequestOptions{Body: req})
	return err
}
