package types

import "time"

// QueuedMessage wraps a raw frame while it moves through the ingress and
// shard queues. The distributor fills Recipient and Message once known;
// Ack is invoked exactly once when the item leaves the system.
type QueuedMessage struct {
	Raw        []byte
	EnqueuedAt time.Time
	Recipient  string
	Message    *Message
	Ack        func()
}

// Acknowledge runs the ack callback if one is set and clears it so a
// second call is a no-op.
func (q *QueuedMessage) Acknowledge() {
	if q.Ack == nil {
		return
	}
	ack := q.Ack
	q.Ack = nil
	ack()
}
