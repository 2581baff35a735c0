package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultMaxAttachmentSize bounds attachment downloads (50 MiB).
const DefaultMaxAttachmentSize = 50 * 1024 * 1024

// AttachmentDownloadError reports a download that failed or exceeded
// the configured size bound.
type AttachmentDownloadError struct {
	ID     string
	Reason string
	Err    error
}

func (e *AttachmentDownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: attachment %s: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway: attachment %s: %s", e.ID, e.Reason)
}

func (e *AttachmentDownloadError) Unwrap() error { return e.Err }

// AttachmentsClient lists and fetches attachment blobs.
type AttachmentsClient struct {
	client *Client
}

// List returns the stored attachment IDs.
func (a *AttachmentsClient) List(ctx context.Context) ([]string, error) {
	resp, err := a.client.Request(ctx, http.MethodGet, "/v1/attachments", RequestOptions{})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := resp.Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Download fetches one attachment, bounded by maxBytes (0 uses
// DefaultMaxAttachmentSize). The read is capped at the bound, so an
// oversized blob is rejected without being buffered whole.
func (a *AttachmentsClient) Download(ctx context.Context, id string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentSize
	}
	resp, err := a.client.Request(ctx, http.MethodGet, "/v1/attachments/"+id, RequestOptions{
		MaxBodyBytes: maxBytes,
	})
	if err != nil {
		return nil, &AttachmentDownloadError{ID: id, Reason: "fetch failed", Err: err}
	}
	if int64(len(resp.Body)) > maxBytes {
		return nil, &AttachmentDownloadError{
			ID:     id,
			Reason: fmt.Sprintf("exceeds size limit %d bytes", maxBytes),
		}
	}
	return resp.Body, nil
}

// Remove deletes a stored attachment.
func (a *AttachmentsClient) Remove(ctx context.Context, id string) error {
	_, err := a.client.Request(ctx, http.MethodDelete, "/v1/attachments/"+id, RequestOptions{})
	return err
}
