package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestRedactSensitiveData(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"bearer token": {
			in:   "Authorization: Bearer abc.def-123",
			want: "Authorization: Bearer [REDACTED]",
		},
		"basic auth": {
			in:   "Authorization: Basic dXNlcjpwYXNz",
			want: "Authorization: Basic [REDACTED]",
		},
		"phone number keeps country prefix": {
			in:   "sending to +4915112345678",
			want: "sending to +491[REDACTED]",
		},
		"clean text untouched": {
			in:   "nothing sensitive here",
			want: "nothing sensitive here",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, RedactSensitiveData(tc.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	Debug("debug line")
	Info("info line")
	Warn("warn line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
}

func TestContextValuesAppearInOutput(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewContextHandler(slog.NewTextHandler(&buf, nil)))
	defer SetLevel(slog.LevelInfo)

	ctx := WithMessageID(context.Background(), "msg-1")
	ctx = WithCommand(ctx, "ping")
	InfoContext(ctx, "dispatching")

	out := buf.String()
	assert.Contains(t, out, "message_id=msg-1")
	assert.Contains(t, out, "command=ping")
}

func TestAPIRequestRedactsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(slog.LevelDebug)
	defer SetLevel(slog.LevelInfo)

	APIRequest("POST", "http://gw/v1/receipts/+4915112345678",
		map[string]string{"Authorization": "Bearer secret-token"},
		map[string]string{"recipient": "+4915112345678"},
	)

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "15112345678")
	assert.Contains(t, out, "+491[REDACTED]")
}
