// Package config loads and validates the runtime settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings like
// "250ms" or "1m30s". Bare integers are read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	return fmt.Errorf("config: invalid duration %q", value.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Storage backend names accepted by storage.type. "memory" is accepted
// as an alias of "in-memory".
const (
	StorageMemory = "in-memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Settings is the complete runtime configuration.
type Settings struct {
	// PhoneNumber is the bot's registered number, E.164.
	PhoneNumber string `yaml:"phone_number"`

	// SignalService is the gateway host:port for the receive socket.
	SignalService string `yaml:"signal_service"`

	// BaseURL is the gateway REST base, e.g. "http://localhost:8080".
	BaseURL string `yaml:"base_url"`

	WorkerPoolSize int `yaml:"worker_pool_size"`
	ShardCount     int `yaml:"shard_count"`
	QueueSize      int `yaml:"queue_size"`

	// Backpressure selects the full-queue policy: DROP_NEWEST, BLOCK or
	// DROP_OLDEST.
	Backpressure string `yaml:"backpressure"`

	// DispatchSyncMessages routes linked-device echoes to handlers.
	DispatchSyncMessages bool `yaml:"dispatch_sync_messages"`

	Storage StorageSettings `yaml:"storage"`
	HTTP    HTTPSettings    `yaml:"http"`

	// MetricsAddr, when set, serves Prometheus metrics, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel overrides the LOG_LEVEL environment variable.
	LogLevel string `yaml:"log_level"`
}

// StorageSettings selects and configures the checkpoint and DLQ backend.
type StorageSettings struct {
	Type      string `yaml:"type"`
	SQLiteDB  string `yaml:"sqlite_db"`
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`
}

// RedisAddr returns host:port for the Redis client.
func (s StorageSettings) RedisAddr() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// Memory reports whether the in-memory backend is selected, under
// either spelling.
func (s StorageSettings) Memory() bool {
	return s.Type == StorageMemory || s.Type == "memory"
}

// HTTPSettings tunes the gateway REST client.
type HTTPSettings struct {
	Retries       int      `yaml:"retries"`
	BackoffFactor Duration `yaml:"backoff_factor"`
	Timeout       Duration `yaml:"timeout"`

	// EndpointTimeouts maps path prefixes to per-endpoint timeouts, e.g.
	// "/v1/attachments": 2m.
	EndpointTimeouts map[string]Duration `yaml:"endpoint_timeouts"`

	RateLimit      RateLimitSettings `yaml:"rate_limit"`
	CircuitBreaker BreakerSettings   `yaml:"circuit_breaker"`

	// IdempotencyHeaderName overrides the default "Idempotency-Key".
	IdempotencyHeaderName string `yaml:"idempotency_header_name"`
}

// RateLimitSettings bounds outbound request rate. Zero rate disables
// limiting.
type RateLimitSettings struct {
	// Rate is requests per second.
	Rate float64 `yaml:"rate"`
	// Burst is the bucket size. Defaults to 1 when Rate is set.
	Burst int `yaml:"burst"`
}

// BreakerSettings tunes the outbound circuit breaker.
type BreakerSettings struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
}

// Default returns Settings with every tunable at its documented default.
func Default() Settings {
	return Settings{
		SignalService:  "localhost:8080",
		BaseURL:        "http://localhost:8080",
		WorkerPoolSize: 4,
		ShardCount:     4,
		QueueSize:      100,
		Backpressure:   "DROP_NEWEST",
		Storage: StorageSettings{
			Type:      StorageMemory,
			RedisHost: "localhost",
			RedisPort: 6379,
		},
		HTTP: HTTPSettings{
			Retries:       3,
			BackoffFactor: Duration(500 * time.Millisecond),
			Timeout:       Duration(30 * time.Second),
			CircuitBreaker: BreakerSettings{
				FailureThreshold: 5,
				Cooldown:         Duration(30 * time.Second),
			},
			IdempotencyHeaderName: "Idempotency-Key",
		},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// an error so typos fail fast instead of silently running defaults.
func Load(path string) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("config: reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil {
		return settings, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks cross-field constraints.
func (s Settings) Validate() error {
	if s.PhoneNumber == "" {
		return errors.New("config: phone_number is required")
	}
	if s.SignalService == "" {
		return errors.New("config: signal_service is required")
	}
	if s.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if s.WorkerPoolSize <= 0 {
		return errors.New("config: worker_pool_size must be positive")
	}
	if s.ShardCount <= 0 {
		return errors.New("config: shard_count must be positive")
	}
	if s.ShardCount > s.WorkerPoolSize {
		return errors.New("config: shard_count must not exceed worker_pool_size")
	}
	if s.QueueSize <= 0 {
		return errors.New("config: queue_size must be positive")
	}
	switch s.Backpressure {
	case "", "DROP_NEWEST", "BLOCK", "DROP_OLDEST":
	default:
		return fmt.Errorf("config: unknown backpressure policy %q", s.Backpressure)
	}
	switch {
	case s.Storage.Memory():
	case s.Storage.Type == StorageSQLite:
		if s.Storage.SQLiteDB == "" {
			return errors.New("config: storage.sqlite_db is required for sqlite storage")
		}
	case s.Storage.Type == StorageRedis:
		if s.Storage.RedisHost == "" {
			return errors.New("config: storage.redis_host is required for redis storage")
		}
	default:
		return fmt.Errorf("config: unknown storage type %q", s.Storage.Type)
	}
	if s.HTTP.Retries < 0 {
		return errors.New("config: http.retries must not be negative")
	}
	if s.HTTP.RateLimit.Rate < 0 {
		return errors.New("config: http.rate_limit.rate must not be negative")
	}
	return nil
}
