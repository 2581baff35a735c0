package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
phone_number: "+490000000000"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "+490000000000", settings.PhoneNumber)
	assert.Equal(t, "localhost:8080", settings.SignalService)
	assert.Equal(t, 4, settings.WorkerPoolSize)
	assert.Equal(t, 4, settings.ShardCount)
	assert.Equal(t, 100, settings.QueueSize)
	assert.Equal(t, "DROP_NEWEST", settings.Backpressure)
	assert.Equal(t, StorageMemory, settings.Storage.Type)
	assert.Equal(t, 3, settings.HTTP.Retries)
	assert.Equal(t, Duration(500*time.Millisecond), settings.HTTP.BackoffFactor)
	assert.Equal(t, Duration(30*time.Second), settings.HTTP.Timeout)
	assert.Equal(t, 5, settings.HTTP.CircuitBreaker.FailureThreshold)
	assert.Equal(t, Duration(30*time.Second), settings.HTTP.CircuitBreaker.Cooldown)
	assert.Equal(t, "Idempotency-Key", settings.HTTP.IdempotencyHeaderName)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
phone_number: "+490000000000"
signal_service: "signal:9922"
base_url: "http://signal:9922"
worker_pool_size: 8
shard_count: 6
queue_size: 500
backpressure: BLOCK
dispatch_sync_messages: true
storage:
  type: sqlite
  sqlite_db: /var/lib/chatkit/state.db
http:
  retries: 5
  backoff_factor: 250ms
  timeout: 10s
  endpoint_timeouts:
    /v1/attachments: 2m
    /v2/send: 45s
  rate_limit:
    rate: 20
    burst: 5
  circuit_breaker:
    failure_threshold: 3
    cooldown: 1m
  idempotency_header_name: X-Request-Token
metrics_addr: ":9090"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "signal:9922", settings.SignalService)
	assert.Equal(t, 8, settings.WorkerPoolSize)
	assert.Equal(t, 6, settings.ShardCount)
	assert.Equal(t, 500, settings.QueueSize)
	assert.Equal(t, "BLOCK", settings.Backpressure)
	assert.True(t, settings.DispatchSyncMessages)
	assert.Equal(t, StorageSQLite, settings.Storage.Type)
	assert.Equal(t, "/var/lib/chatkit/state.db", settings.Storage.SQLiteDB)
	assert.Equal(t, 5, settings.HTTP.Retries)
	assert.Equal(t, Duration(250*time.Millisecond), settings.HTTP.BackoffFactor)
	assert.Equal(t, Duration(2*time.Minute), settings.HTTP.EndpointTimeouts["/v1/attachments"])
	assert.Equal(t, Duration(45*time.Second), settings.HTTP.EndpointTimeouts["/v2/send"])
	assert.Equal(t, 20.0, settings.HTTP.RateLimit.Rate)
	assert.Equal(t, 5, settings.HTTP.RateLimit.Burst)
	assert.Equal(t, 3, settings.HTTP.CircuitBreaker.FailureThreshold)
	assert.Equal(t, Duration(time.Minute), settings.HTTP.CircuitBreaker.Cooldown)
	assert.Equal(t, "X-Request-Token", settings.HTTP.IdempotencyHeaderName)
	assert.Equal(t, ":9090", settings.MetricsAddr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
phone_number: "+490000000000"
worker_poolsize: 8
`)

	_, err := Load(path)
	assert.Error(t, err, "typos must fail instead of silently using defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Settings {
		s := Default()
		s.PhoneNumber = "+490000000000"
		return s
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing phone number", func(t *testing.T) {
		s := Default()
		assert.Error(t, s.Validate())
	})

	t.Run("bad pool size", func(t *testing.T) {
		s := base()
		s.WorkerPoolSize = 0
		assert.Error(t, s.Validate())
	})

	t.Run("more shards than workers", func(t *testing.T) {
		s := base()
		s.WorkerPoolSize = 2
		s.ShardCount = 3
		assert.Error(t, s.Validate())
	})

	t.Run("bad backpressure", func(t *testing.T) {
		s := base()
		s.Backpressure = "SOMETIMES"
		assert.Error(t, s.Validate())
	})

	t.Run("sqlite without path", func(t *testing.T) {
		s := base()
		s.Storage.Type = StorageSQLite
		assert.Error(t, s.Validate())
	})

	t.Run("redis without host", func(t *testing.T) {
		s := base()
		s.Storage.Type = StorageRedis
		s.Storage.RedisHost = ""
		assert.Error(t, s.Validate())
	})

	t.Run("in-memory storage", func(t *testing.T) {
		s := base()
		s.Storage.Type = "in-memory"
		assert.NoError(t, s.Validate())
	})

	t.Run("memory storage alias", func(t *testing.T) {
		s := base()
		s.Storage.Type = "memory"
		assert.NoError(t, s.Validate())
	})

	t.Run("unknown storage", func(t *testing.T) {
		s := base()
		s.Storage.Type = "dynamodb"
		assert.Error(t, s.Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		s := base()
		s.HTTP.Retries = -1
		assert.Error(t, s.Validate())
	})
}

func TestRedisAddr(t *testing.T) {
	s := StorageSettings{RedisHost: "cache", RedisPort: 6380}
	assert.Equal(t, "cache:6380", s.RedisAddr())
}
