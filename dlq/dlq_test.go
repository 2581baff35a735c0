package dlq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(reason string) Entry {
	return Entry{
		Raw:    json.RawMessage(`{"envelope": {"source": "+49123"}}`),
		Reason: reason,
		Metadata: map[string]any{
			"command": "ping",
			"source":  "+49123",
		},
	}
}

// queueUnderTest runs the shared Queue contract checks.
func queueUnderTest(t *testing.T, q Queue) {
	t.Helper()
	ctx := context.Background()

	entries, err := q.Inspect(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, q.Send(ctx, sampleEntry("command_failed")))
	require.NoError(t, q.Send(ctx, sampleEntry("parse_failed")))

	entries, err = q.Inspect(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "command_failed", entries[0].Reason)
	assert.Equal(t, "parse_failed", entries[1].Reason)
	assert.JSONEq(t, `{"envelope": {"source": "+49123"}}`, string(entries[0].Raw))
	assert.Equal(t, "ping", entries[0].Metadata["command"])
	assert.False(t, entries[0].InsertedAt.IsZero())
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	queueUnderTest(t, q)
}

func TestFileQueue(t *testing.T) {
	q, err := NewFileQueue(filepath.Join(t.TempDir(), "dlq", "dead-letters.jsonl"))
	require.NoError(t, err)
	defer q.Close()
	queueUnderTest(t, q)
}

func TestFileQueueSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead-letters.jsonl")

	q, err := NewFileQueue(path)
	require.NoError(t, err)
	require.NoError(t, q.Send(context.Background(), sampleEntry("command_failed")))
	require.NoError(t, q.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{corrupt\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	q, err = NewFileQueue(path)
	require.NoError(t, err)
	defer q.Close()

	entries, err := q.Inspect(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteQueue(t *testing.T) {
	q, err := NewSQLiteQueue(filepath.Join(t.TempDir(), "dlq.db"))
	require.NoError(t, err)
	defer q.Close()
	queueUnderTest(t, q)
}

func TestSQLiteQueuePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.db")

	q, err := NewSQLiteQueue(path)
	require.NoError(t, err)
	entry := sampleEntry("command_failed")
	entry.InsertedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, q.Send(context.Background(), entry))
	require.NoError(t, q.Close())

	q, err = NewSQLiteQueue(path)
	require.NoError(t, err)
	defer q.Close()

	entries, err := q.Inspect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.InsertedAt, entries[0].InsertedAt)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	q := NewRedisQueue(client, WithPrefix("test"))
	queueUnderTest(t, q)
}
