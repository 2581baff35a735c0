// Package envelope turns raw gateway WebSocket frames into typed
// messages.
//
// The gateway wraps every event in an outer envelope carrying either a
// dataMessage (primary device) or a syncMessage.sentMessage (echo from
// a linked device). Frames that carry neither — receipts, typing
// notifications, keep-alives — are reported as ErrUnsupported so the
// caller can drop them silently. Malformed frames surface as
// *ParseError and belong in the dead-letter queue instead.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AltairaLabs/chatkit/types"
)

// ErrUnsupported marks frames that are valid JSON but carry no
// dispatchable payload. They are dropped, not dead-lettered.
var ErrUnsupported = errors.New("envelope: unsupported message")

// ParseError reports a frame that could not be turned into a Message.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("envelope: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("envelope: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Wire schema. Only the fields we consume are declared; everything else
// in the frame is ignored.
type frame struct {
	Envelope *wireEnvelope `json:"envelope"`
}

type wireEnvelope struct {
	Source       string           `json:"source"`
	SourceNumber string           `json:"sourceNumber"`
	SourceUUID   string           `json:"sourceUuid"`
	Timestamp    int64            `json:"timestamp"`
	DataMessage  *wireDataMessage `json:"dataMessage"`
	SyncMessage  *wireSyncMessage `json:"syncMessage"`
}

type wireSyncMessage struct {
	SentMessage *wireDataMessage `json:"sentMessage"`
}

type wireDataMessage struct {
	Message             string             `json:"message"`
	GroupInfo           *wireGroupInfo     `json:"groupInfo"`
	Mentions            []types.Mention    `json:"mentions"`
	Attachments         []types.Attachment `json:"attachments"`
	Quote               *types.Quote       `json:"quote"`
	Reaction            *types.Reaction    `json:"reaction"`
	RemoteDelete        *wireRemoteDelete  `json:"remoteDelete"`
	EditTimestamp       int64              `json:"editTimestamp"`
	TargetSentTimestamp int64              `json:"targetSentTimestamp"`
	ViewOnce            bool               `json:"viewOnce"`
}

type wireGroupInfo struct {
	GroupID string `json:"groupId"`
}

type wireRemoteDelete struct {
	Timestamp int64 `json:"timestamp"`
}

// Parser maps JSON frames to typed messages.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse decodes one frame. It returns ErrUnsupported for frames without
// a dispatchable payload and *ParseError for malformed frames.
func (p *Parser) Parse(raw []byte) (*types.Message, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if f.Envelope == nil {
		return nil, &ParseError{Reason: "missing envelope"}
	}
	env := f.Envelope

	var (
		data *wireDataMessage
		kind types.MessageType
	)
	switch {
	case env.DataMessage != nil:
		data = env.DataMessage
		kind = types.TypeData
	case env.SyncMessage != nil && env.SyncMessage.SentMessage != nil:
		data = env.SyncMessage.SentMessage
		kind = types.TypeSync
	default:
		return nil, ErrUnsupported
	}

	source := CanonicalizeIdentifier(env.Source)
	if source == "" {
		source = CanonicalizeIdentifier(env.SourceNumber)
	}
	if source == "" {
		source = env.SourceUUID
	}
	if source == "" {
		return nil, &ParseError{Reason: "missing source"}
	}
	if env.Timestamp == 0 {
		return nil, &ParseError{Reason: "missing timestamp"}
	}

	msg := &types.Message{
		ID:           uuid.New(),
		Source:       source,
		SourceNumber: CanonicalizeIdentifier(env.SourceNumber),
		SourceUUID:   env.SourceUUID,
		Timestamp:    env.Timestamp,
		Type:         kind,
		Text:         data.Message,
		ViewOnce:     data.ViewOnce,
		Mentions:     data.Mentions,
		Attachments:  data.Attachments,
		Quote:        data.Quote,
		Reaction:     data.Reaction,
	}
	if data.GroupInfo != nil {
		msg.GroupID = data.GroupInfo.GroupID
	}

	switch {
	case data.EditTimestamp != 0 || data.TargetSentTimestamp != 0:
		if kind == types.TypeData {
			msg.Type = types.TypeEdit
		}
		msg.EditTarget = data.EditTimestamp
		if msg.EditTarget == 0 {
			msg.EditTarget = data.TargetSentTimestamp
		}
	case data.RemoteDelete != nil:
		if data.RemoteDelete.Timestamp == 0 {
			return nil, &ParseError{Reason: "remote delete without target timestamp"}
		}
		if kind == types.TypeData {
			msg.Type = types.TypeDelete
		}
		msg.DeleteTarget = data.RemoteDelete.Timestamp
	case data.Reaction != nil:
		if data.Reaction.TargetTimestamp == 0 {
			return nil, &ParseError{Reason: "reaction without target timestamp"}
		}
	}

	return msg, nil
}

// RecipientFromRaw extracts the shard key from an unparsed frame on a
// best-effort basis. It returns "" when nothing usable is present.
func (p *Parser) RecipientFromRaw(raw []byte) string {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Envelope == nil {
		return ""
	}
	env := f.Envelope
	data := env.DataMessage
	if data == nil && env.SyncMessage != nil {
		data = env.SyncMessage.SentMessage
	}
	if data != nil && data.GroupInfo != nil && data.GroupInfo.GroupID != "" {
		return data.GroupInfo.GroupID
	}
	if env.Source != "" {
		return CanonicalizeIdentifier(env.Source)
	}
	return CanonicalizeIdentifier(env.SourceNumber)
}

// CanonicalizeIdentifier normalizes sender identifiers: a purely digit
// string gains a "+" prefix, everything else (already-prefixed numbers,
// account UUIDs, group IDs) passes through unchanged.
func CanonicalizeIdentifier(id string) string {
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return "+" + id
}
