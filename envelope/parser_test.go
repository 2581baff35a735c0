package envelope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/chatkit/types"
)

func TestParseDataMessage(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"sourceNumber": "+4912345678901",
			"sourceUuid": "aabbccdd-0011-2233-4455-667788990011",
			"timestamp": 1700000000000,
			"dataMessage": {
				"message": "!ping",
				"viewOnce": false
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "+4912345678901", msg.Source)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
	assert.Equal(t, types.TypeData, msg.Type)
	assert.Equal(t, "!ping", msg.Text)
	assert.NotEqual(t, "", msg.ID.String())
	assert.True(t, msg.IsPrivate())
	assert.Equal(t, "+4912345678901", msg.Recipient())
}

func TestParseGroupMessage(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000001,
			"dataMessage": {
				"message": "hello",
				"groupInfo": {"groupId": "group.abc123"}
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.True(t, msg.IsGroup())
	assert.Equal(t, "group.abc123", msg.GroupID)
	assert.Equal(t, "group.abc123", msg.Recipient())
}

func TestParseSyncMessage(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000002,
			"syncMessage": {
				"sentMessage": {"message": "echoed"}
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, types.TypeSync, msg.Type)
	assert.Equal(t, "echoed", msg.Text)
}

func TestParseEditMessage(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000003,
			"dataMessage": {
				"message": "fixed typo",
				"editTimestamp": 1699999999999
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, types.TypeEdit, msg.Type)
	assert.Equal(t, int64(1699999999999), msg.EditTarget)
}

func TestParseRemoteDelete(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000004,
			"dataMessage": {
				"remoteDelete": {"timestamp": 1699999999998}
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, types.TypeDelete, msg.Type)
	assert.Equal(t, int64(1699999999998), msg.DeleteTarget)
}

func TestParseRemoteDeleteWithoutTarget(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000004,
			"dataMessage": {
				"remoteDelete": {}
			}
		}
	}`)

	_, err := NewParser().Parse(raw)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseReaction(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000005,
			"dataMessage": {
				"reaction": {
					"emoji": "👍",
					"targetAuthor": "+4900000000000",
					"targetSentTimestamp": 1699999999997
				}
			}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)

	require.NotNil(t, msg.Reaction)
	assert.Equal(t, "👍", msg.Reaction.Emoji)
	assert.Equal(t, types.TypeData, msg.Type)
}

func TestParseReactionWithoutTargetTimestamp(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"source": "+4912345678901",
			"timestamp": 1700000000005,
			"dataMessage": {
				"reaction": {"emoji": "👍", "targetAuthor": "+4900000000000"}
			}
		}
	}`)

	_, err := NewParser().Parse(raw)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseUnsupportedFrames(t *testing.T) {
	frames := map[string][]byte{
		"receipt": []byte(`{
			"envelope": {
				"source": "+4912345678901",
				"timestamp": 1700000000006,
				"receiptMessage": {"isDelivery": true}
			}
		}`),
		"typing": []byte(`{
			"envelope": {
				"source": "+4912345678901",
				"timestamp": 1700000000007,
				"typingMessage": {"action": "STARTED"}
			}
		}`),
		"sync without sent": []byte(`{
			"envelope": {
				"source": "+4912345678901",
				"timestamp": 1700000000008,
				"syncMessage": {}
			}
		}`),
	}

	for name, raw := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser().Parse(raw)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestParseMalformedFrames(t *testing.T) {
	frames := map[string][]byte{
		"invalid json":      []byte(`{not json`),
		"missing envelope":  []byte(`{"other": 1}`),
		"missing source":    []byte(`{"envelope": {"timestamp": 1, "dataMessage": {"message": "x"}}}`),
		"missing timestamp": []byte(`{"envelope": {"source": "+49123", "dataMessage": {"message": "x"}}}`),
	}

	for name, raw := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser().Parse(raw)
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "expected *ParseError, got %v", err)
		})
	}
}

func TestParseSourceFallback(t *testing.T) {
	raw := []byte(`{
		"envelope": {
			"sourceUuid": "aabbccdd-0011-2233-4455-667788990011",
			"timestamp": 1700000000009,
			"dataMessage": {"message": "x"}
		}
	}`)

	msg, err := NewParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "aabbccdd-0011-2233-4455-667788990011", msg.Source)
}

func TestRecipientFromRaw(t *testing.T) {
	p := NewParser()

	group := []byte(`{"envelope": {"source": "+49123", "timestamp": 1,
		"dataMessage": {"groupInfo": {"groupId": "g1"}}}}`)
	assert.Equal(t, "g1", p.RecipientFromRaw(group))

	private := []byte(`{"envelope": {"source": "4912345", "timestamp": 1,
		"dataMessage": {"message": "x"}}}`)
	assert.Equal(t, "+4912345", p.RecipientFromRaw(private))

	assert.Equal(t, "", p.RecipientFromRaw([]byte(`garbage`)))
	assert.Equal(t, "", p.RecipientFromRaw([]byte(`{}`)))
}

func TestCanonicalizeIdentifier(t *testing.T) {
	assert.Equal(t, "+4912345", CanonicalizeIdentifier("4912345"))
	assert.Equal(t, "+4912345", CanonicalizeIdentifier("+4912345"))
	assert.Equal(t, "group.abc", CanonicalizeIdentifier("group.abc"))
	assert.Equal(t, "", CanonicalizeIdentifier(""))
}
