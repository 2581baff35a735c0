// Package types defines the message model shared by the parser, worker
// pool, and gateway clients.
package types

import (
	"github.com/google/uuid"
)

// MessageType classifies a parsed gateway envelope.
type MessageType string

const (
	// TypeData is a regular message received on the primary device.
	TypeData MessageType = "DATA"
	// TypeSync is a message echoed from one of the account's linked devices.
	TypeSync MessageType = "SYNC"
	// TypeEdit is an edit of a previously sent message.
	TypeEdit MessageType = "EDIT"
	// TypeDelete is a remote delete of a previously sent message.
	TypeDelete MessageType = "DELETE"
)

// Mention is a reference to an account inside the message text.
type Mention struct {
	Name   string `json:"name,omitempty"`
	Number string `json:"number,omitempty"`
	UUID   string `json:"uuid,omitempty"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
}

// Attachment describes an attachment pointer delivered with a message.
// The blob itself is fetched separately through the attachments client.
type Attachment struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Quote references the message being replied to.
type Quote struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text,omitempty"`
}

// Reaction is an emoji reaction to an earlier message.
type Reaction struct {
	Emoji           string `json:"emoji"`
	TargetAuthor    string `json:"targetAuthor"`
	TargetTimestamp int64  `json:"targetSentTimestamp"`
	IsRemove        bool   `json:"isRemove,omitempty"`
}

// Message is the typed form of one gateway envelope. It is immutable
// once produced by the parser; (Source, Timestamp) uniquely identifies
// it on the wire and drives deduplication.
type Message struct {
	ID           uuid.UUID
	Source       string
	SourceNumber string
	SourceUUID   string
	Timestamp    int64
	Type         MessageType

	Text     string
	GroupID  string
	ViewOnce bool

	Mentions    []Mention
	Attachments []Attachment
	Quote       *Quote
	Reaction    *Reaction

	// EditTarget is the timestamp of the message being edited (TypeEdit).
	EditTarget int64
	// DeleteTarget is the timestamp of the message being deleted (TypeDelete).
	DeleteTarget int64
}

// Recipient returns the conversation key for routing: the group ID for
// group messages, otherwise the source. This value is the shard key.
func (m *Message) Recipient() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.Source
}

// IsGroup reports whether the message was delivered to a group chat.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// IsPrivate reports whether the message was delivered to a 1:1 chat.
func (m *Message) IsPrivate() bool {
	return m.GroupID == ""
}
