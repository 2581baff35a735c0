package bot

import (
	"context"

	"github.com/google/uuid"

	"github.com/AltairaLabs/chatkit/gateway"
	"github.com/AltairaLabs/chatkit/locks"
	"github.com/AltairaLabs/chatkit/types"
)

// Context is the per-dispatch view handed to command handlers. It
// references the immutable message, the gateway resource clients, the
// lock manager, and the bot's own identity.
type Context struct {
	// Message is the message that triggered dispatch.
	Message *types.Message

	// Clients are the gateway resource clients.
	Clients *gateway.Clients

	// Locks is the per-recipient lock manager, for handlers that touch
	// shared conversation state.
	Locks *locks.Manager

	// Self is the bot's own phone number.
	Self string
}

// Reply sends text back to the conversation the message came from. The
// send carries a fresh idempotency key so gateway-side retries stay
// deduplicated.
func (c *Context) Reply(ctx context.Context, text string) error {
	return c.Send(ctx, c.Message.Recipient(), text)
}

// Send delivers text to an arbitrary recipient (number or group ID).
func (c *Context) Send(ctx context.Context, recipient, text string) error {
	_, err := c.Clients.Messages.Send(ctx, &gateway.SendRequest{
		Number:     c.Self,
		Recipients: []string{recipient},
		Message:    text,
	}, gateway.WithIdempotencyKey(uuid.NewString()))
	return err
}

// React adds an emoji reaction to the triggering message.
func (c *Context) React(ctx context.Context, emoji string) error {
	req := &gateway.ReactionRequest{
		Emoji:           emoji,
		TargetAuthor:    c.Message.Source,
		TargetTimestamp: c.Message.Timestamp,
	}
	if c.Message.IsGroup() {
		req.Group = c.Message.GroupID
	} else {
		req.Recipient = c.Message.Source
	}
	return c.Clients.Reactions.Send(ctx, c.Self, req)
}

// MarkRead sends a read receipt for the triggering message.
func (c *Context) MarkRead(ctx context.Context) error {
	return c.Clients.Receipts.Send(ctx, c.Self, &gateway.ReceiptRequest{
		Recipient:   c.Message.Source,
		ReceiptType: "read",
		Timestamp:   c.Message.Timestamp,
	})
}

// StartTyping shows the typing indicator in the conversation.
func (c *Context) StartTyping(ctx context.Context) error {
	return c.Clients.Messages.StartTyping(ctx, c.Self, c.Message.Recipient())
}

// StopTyping hides the typing indicator in the conversation.
func (c *Context) StopTyping(ctx context.Context) error {
	return c.Clients.Messages.StopTyping(ctx, c.Self, c.Message.Recipient())
}
