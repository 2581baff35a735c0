// Package chatkit assembles the message runtime: a WebSocket listener
// feeding a sharded worker pool that routes gateway messages to
// registered commands, with checkpointing, dead-lettering and a typed
// REST client for replies.
package chatkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/chatkit/bot"
	"github.com/AltairaLabs/chatkit/checkpoint"
	"github.com/AltairaLabs/chatkit/config"
	"github.com/AltairaLabs/chatkit/dlq"
	"github.com/AltairaLabs/chatkit/envelope"
	"github.com/AltairaLabs/chatkit/gateway"
	"github.com/AltairaLabs/chatkit/listener"
	"github.com/AltairaLabs/chatkit/locks"
	"github.com/AltairaLabs/chatkit/logger"
	"github.com/AltairaLabs/chatkit/metrics/prometheus"
	"github.com/AltairaLabs/chatkit/router"
	"github.com/AltairaLabs/chatkit/types"
	"github.com/AltairaLabs/chatkit/worker"
)

// Bot is the assembled runtime. Register commands and middleware, then
// call Run.
type Bot struct {
	settings config.Settings

	clients  *gateway.Clients
	router   *router.Router
	pool     *worker.Pool
	listener *listener.Service
	store    checkpoint.Store
	queue    dlq.Queue
	exporter *prometheus.Exporter

	closers []func() error
}

// New builds a Bot from settings. Settings should come from
// config.Load or config.Default plus explicit field edits.
func New(settings config.Settings) (*Bot, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.LogLevel != "" {
		logger.SetLevel(logger.ParseLevel(settings.LogLevel))
	}

	b := &Bot{settings: settings, router: router.New()}

	var limiter *rate.Limiter
	if settings.HTTP.RateLimit.Rate > 0 {
		burst := settings.HTTP.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(settings.HTTP.RateLimit.Rate), burst)
	}

	endpointTimeouts := make(map[string]time.Duration, len(settings.HTTP.EndpointTimeouts))
	for prefix, d := range settings.HTTP.EndpointTimeouts {
		endpointTimeouts[prefix] = d.Std()
	}
	core := gateway.NewClient(gateway.Config{
		BaseURL:           settings.BaseURL,
		Retries:           settings.HTTP.Retries,
		BackoffFactor:     settings.HTTP.BackoffFactor.Std(),
		Timeout:           settings.HTTP.Timeout.Std(),
		EndpointTimeouts:  endpointTimeouts,
		IdempotencyHeader: settings.HTTP.IdempotencyHeaderName,
		Limiter:           limiter,
		Breaker: gateway.NewBreaker(gateway.BreakerConfig{
			FailureThreshold: settings.HTTP.CircuitBreaker.FailureThreshold,
			Cooldown:         settings.HTTP.CircuitBreaker.Cooldown.Std(),
		}),
	})
	b.clients = gateway.NewClients(core)

	if err := b.openStorage(); err != nil {
		return nil, err
	}

	ingress := make(chan *types.QueuedMessage, settings.QueueSize)

	policy, err := listener.ParseBackpressure(settings.Backpressure)
	if err != nil {
		return nil, err
	}
	b.listener = listener.New(listener.Config{
		ServiceAddr: settings.SignalService,
		PhoneNumber: settings.PhoneNumber,
		Policy:      policy,
	}, ingress)

	b.pool, err = worker.New(worker.Config{
		Ingress:      ingress,
		PoolSize:     settings.WorkerPoolSize,
		ShardCount:   settings.ShardCount,
		Parser:       envelope.NewParser(),
		Router:       b.router,
		Checkpoint:   b.store,
		DLQ:          b.queue,
		Clients:      b.clients,
		Locks:        locks.NewManager(),
		Self:         settings.PhoneNumber,
		DispatchSync: settings.DispatchSyncMessages,
	})
	if err != nil {
		return nil, err
	}

	if settings.MetricsAddr != "" {
		b.exporter = prometheus.NewExporter(settings.MetricsAddr)
	}

	return b, nil
}

// openStorage wires the checkpoint store and dead-letter queue from
// storage.type. SQLite shares one file; Redis shares one client.
func (b *Bot) openStorage() error {
	switch b.settings.Storage.Type {
	case config.StorageSQLite:
		store, err := checkpoint.NewSQLiteStore(b.settings.Storage.SQLiteDB)
		if err != nil {
			return err
		}
		queue, err := dlq.NewSQLiteQueue(b.settings.Storage.SQLiteDB)
		if err != nil {
			_ = store.Close()
			return err
		}
		b.store, b.queue = store, queue
		b.closers = append(b.closers, store.Close, queue.Close)

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: b.settings.Storage.RedisAddr()})
		b.store = checkpoint.NewRedisStore(client)
		b.queue = dlq.NewRedisQueue(client)
		// One closer: the store and queue share the client.
		b.closers = append(b.closers, client.Close)

	default:
		b.store = checkpoint.NewMemoryStore()
		b.queue = dlq.NewMemoryQueue()
	}
	return nil
}

// Register adds a command to the router.
func (b *Bot) Register(cmd *bot.Command) {
	b.router.Register(cmd)
}

// Use adds a dispatch middleware. The first registered middleware is
// the outermost.
func (b *Bot) Use(mw worker.Middleware) {
	b.pool.Use(mw)
}

// Clients exposes the gateway resource clients for use outside command
// handlers.
func (b *Bot) Clients() *gateway.Clients { return b.clients }

// DLQ exposes the dead-letter queue, for inspection tooling.
func (b *Bot) DLQ() dlq.Queue { return b.queue }

// Run starts the listener, the worker pool and (when configured) the
// metrics exporter, and blocks until ctx is canceled. Cancellation is
// a clean shutdown: queues are drained before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	logger.InfoContext(ctx, "starting runtime",
		"number", logger.RedactSensitiveData(b.settings.PhoneNumber),
		"pool_size", b.settings.WorkerPoolSize,
		"shards", b.settings.ShardCount,
		"storage", b.settings.Storage.Type)

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := b.listener.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return b.pool.Run(runCtx)
	})

	if b.exporter != nil {
		g.Go(func() error {
			if err := b.exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics exporter: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			return b.exporter.Shutdown(context.Background())
		})
	}

	err := g.Wait()
	logger.Info("runtime stopped")
	return err
}

// Close releases storage resources. Call after Run has returned.
func (b *Bot) Close() error {
	var errs []error
	for _, close := range b.closers {
		if err := close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
