package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/about", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version": "1.0"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	resp, err := client.Request(context.Background(), http.MethodGet, "/v1/about", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.JSON())

	var out struct {
		Version string `json:"version"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "1.0", out.Version)
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		Retries:       3,
		BackoffFactor: time.Millisecond,
	})

	resp, err := client.Request(context.Background(), http.MethodGet, "/v1/health", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "gone"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		Retries:       3,
		BackoffFactor: time.Millisecond,
	})

	_, err := client.Request(context.Background(), http.MethodGet, "/v1/groups/x", RequestOptions{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestRequestBackoffTiming(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	const backoff = 20 * time.Millisecond
	client := NewClient(Config{
		BaseURL:       srv.URL,
		Retries:       3,
		BackoffFactor: backoff,
	})

	start := time.Now()
	_, err := client.Request(context.Background(), http.MethodGet, "/v1/health", RequestOptions{})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load(), "initial attempt plus three retries")
	// Sleeps are backoff, 2*backoff, 4*backoff.
	assert.GreaterOrEqual(t, elapsed, 7*backoff)
}

func TestRequestIdempotencyHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, IdempotencyHeader: "X-Request-Token"})

	_, err := client.Request(context.Background(), http.MethodPost, "/v2/send", RequestOptions{
		IdempotencyKey: "key-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "key-123", got)
}

func TestRequestHeaderLayering(t *testing.T) {
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL: srv.URL,
		DefaultHeaders: map[string]string{
			"X-Layer": "default",
			"X-Base":  "default",
		},
		HeaderProvider: func(_ context.Context, _, _ string) (map[string]string, error) {
			return map[string]string{"X-Layer": "provider", "X-Dyn": "provider"}, nil
		},
	})

	_, err := client.Request(context.Background(), http.MethodGet, "/v1/about", RequestOptions{
		Headers: map[string]string{"X-Layer": "request"},
	})
	require.NoError(t, err)

	assert.Equal(t, "request", headers.Get("X-Layer"), "request-scoped wins")
	assert.Equal(t, "provider", headers.Get("X-Dyn"))
	assert.Equal(t, "default", headers.Get("X-Base"))
}

func TestResolveTimeoutLongestPrefix(t *testing.T) {
	client := NewClient(Config{
		BaseURL: "http://gw",
		Timeout: 30 * time.Second,
		EndpointTimeouts: map[string]time.Duration{
			"/v1":             10 * time.Second,
			"/v1/attachments": 2 * time.Minute,
		},
	})

	assert.Equal(t, 2*time.Minute, client.resolveTimeout("/v1/attachments/abc", 0))
	assert.Equal(t, 10*time.Second, client.resolveTimeout("/v1/groups", 0))
	assert.Equal(t, 30*time.Second, client.resolveTimeout("/v2/send", 0))
	assert.Equal(t, time.Second, client.resolveTimeout("/v1/attachments/abc", time.Second),
		"request override wins over the table")
}

func TestRequestEndpointTimeoutEnforced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		Retries:       0,
		BackoffFactor: time.Millisecond,
		EndpointTimeouts: map[string]time.Duration{
			"/v1/slow": 30 * time.Millisecond,
		},
	})

	start := time.Now()
	_, err := client.Request(context.Background(), http.MethodGet, "/v1/slow", RequestOptions{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequestBreakerOpensAndRejects(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		Retries:       0,
		BackoffFactor: time.Millisecond,
		Breaker:       NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute}),
	})

	for i := 0; i < 2; i++ {
		_, err := client.Request(context.Background(), http.MethodGet, "/v1/health", RequestOptions{})
		require.Error(t, err)
	}
	require.Equal(t, int32(2), calls.Load())

	_, err := client.Request(context.Background(), http.MethodGet, "/v1/health", RequestOptions{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not touch the network")
}

func TestMessagesSend(t *testing.T) {
	var body SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timestamp": 1700000000123}`))
	}))
	defer srv.Close()

	clients := NewClients(NewClient(Config{BaseURL: srv.URL}))

	resp, err := clients.Messages.Send(context.Background(), &SendRequest{
		Number:     "+490000000000",
		Recipients: []string{"+491111111111"},
		Message:    "hello",
	}, WithIdempotencyKey("abc"))
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000123), resp.Timestamp)
	assert.Equal(t, "+490000000000", body.Number)
	assert.Equal(t, []string{"+491111111111"}, body.Recipients)
	assert.Equal(t, "hello", body.Message)
}

func TestAttachmentDownloadBound(t *testing.T) {
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	clients := NewClients(NewClient(Config{BaseURL: srv.URL}))

	got, err := clients.Attachments.Download(context.Background(), "blob-1", 2048)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = clients.Attachments.Download(context.Background(), "blob-1", 64)
	var dlErr *AttachmentDownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "blob-1", dlErr.ID)
	assert.Contains(t, dlErr.Reason, "size limit")
}

func TestRequestCapsBufferedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	resp, err := client.Request(context.Background(), http.MethodGet, "/v1/attachments/blob-1", RequestOptions{
		MaxBodyBytes: 100,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 101, "one byte past the cap marks the body as oversized")
}
