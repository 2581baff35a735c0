// Package worker dispatches queued messages to command handlers through
// a sharded pool. Frames for the same conversation land on the same
// shard, so replies within a conversation keep their order while
// unrelated conversations proceed in parallel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/chatkit/bot"
	"github.com/AltairaLabs/chatkit/checkpoint"
	"github.com/AltairaLabs/chatkit/dlq"
	"github.com/AltairaLabs/chatkit/envelope"
	"github.com/AltairaLabs/chatkit/gateway"
	"github.com/AltairaLabs/chatkit/locks"
	"github.com/AltairaLabs/chatkit/logger"
	"github.com/AltairaLabs/chatkit/metrics/prometheus"
	"github.com/AltairaLabs/chatkit/router"
	"github.com/AltairaLabs/chatkit/types"
)

// Default pool sizing.
const (
	DefaultPoolSize = 4
)

// DLQ reasons emitted by the pool.
const (
	ReasonParseFailed   = "parse_failed"
	ReasonCommandFailed = "command_failed"
)

// Config assembles the pool's collaborators.
type Config struct {
	// Ingress is the queue the listener feeds. Its capacity bounds the
	// whole pipeline.
	Ingress chan *types.QueuedMessage

	// PoolSize is the number of worker goroutines. Defaults to
	// DefaultPoolSize.
	PoolSize int

	// ShardCount is the number of shard queues. Defaults to PoolSize.
	// Worker w drains shard w mod ShardCount.
	ShardCount int

	// Parser decodes raw frames.
	Parser *envelope.Parser

	// Router matches message text to commands.
	Router *router.Router

	// Checkpoint suppresses duplicates. Optional; nil disables dedup.
	Checkpoint checkpoint.Store

	// DLQ receives failed payloads. Optional; nil discards them.
	DLQ dlq.Queue

	// Clients are the gateway resource clients handed to handlers.
	Clients *gateway.Clients

	// Locks serializes handlers per conversation.
	Locks *locks.Manager

	// Self is the bot's own phone number.
	Self string

	// DispatchSync routes sync messages (the bot's own sends echoed from
	// linked devices) to handlers. Off by default to keep the bot from
	// reacting to itself.
	DispatchSync bool
}

// Pool runs a distributor goroutine plus PoolSize workers over
// ShardCount shard queues.
type Pool struct {
	cfg    Config
	shards []chan *types.QueuedMessage

	mwMu       sync.Mutex
	middleware []Middleware
	mwSeen     map[uintptr]struct{}
}

// New creates a Pool. The shard queues are sized so the shards together
// hold as much as the ingress queue.
func New(cfg Config) (*Pool, error) {
	if cfg.Ingress == nil {
		return nil, errors.New("worker: ingress queue is required")
	}
	if cfg.Parser == nil || cfg.Router == nil {
		return nil, errors.New("worker: parser and router are required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = cfg.PoolSize
	}
	if cfg.ShardCount > cfg.PoolSize {
		return nil, fmt.Errorf("worker: shard count %d exceeds pool size %d: shards above the pool size are never drained", cfg.ShardCount, cfg.PoolSize)
	}
	if cfg.Locks == nil {
		cfg.Locks = locks.NewManager()
	}

	shardCap := (cap(cfg.Ingress) + cfg.ShardCount - 1) / cfg.ShardCount
	if shardCap < 1 {
		shardCap = 1
	}
	shards := make([]chan *types.QueuedMessage, cfg.ShardCount)
	for i := range shards {
		shards[i] = make(chan *types.QueuedMessage, shardCap)
	}

	return &Pool{
		cfg:    cfg,
		shards: shards,
		mwSeen: make(map[uintptr]struct{}),
	}, nil
}

// Use appends a middleware. Registration is idempotent on function
// identity: adding the same middleware twice is a no-op.
func (p *Pool) Use(mw Middleware) {
	if mw == nil {
		return
	}
	p.mwMu.Lock()
	defer p.mwMu.Unlock()
	key := reflect.ValueOf(mw).Pointer()
	if _, ok := p.mwSeen[key]; ok {
		return
	}
	p.mwSeen[key] = struct{}{}
	p.middleware = append(p.middleware, mw)
}

// Run processes messages until ctx is canceled, then drains the queues
// and returns. Queued items are dispatched during the drain; new items
// are no longer accepted.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)

	g.Go(func() error {
		p.distribute(ctx)
		return nil
	})
	for w := 0; w < p.cfg.PoolSize; w++ {
		workerID := w
		g.Go(func() error {
			p.work(ctx, workerID)
			return nil
		})
	}

	return g.Wait()
}

// distribute routes ingress items onto shard queues by conversation.
// It blocks when a shard is full: backpressure propagates to the
// ingress queue and from there to the listener's policy.
func (p *Pool) distribute(ctx context.Context) {
	defer func() {
		for _, shard := range p.shards {
			close(shard)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.drainIngress(ctx)
			return
		case item, ok := <-p.cfg.Ingress:
			if !ok {
				return
			}
			p.route(ctx, item)
		}
	}
}

// drainIngress forwards items already buffered at shutdown so workers
// can finish them before the shard channels close.
func (p *Pool) drainIngress(ctx context.Context) {
	for {
		select {
		case item, ok := <-p.cfg.Ingress:
			if !ok {
				return
			}
			p.route(ctx, item)
		default:
			return
		}
	}
}

func (p *Pool) route(ctx context.Context, item *types.QueuedMessage) {
	if item.Recipient == "" {
		item.Recipient = p.cfg.Parser.RecipientFromRaw(item.Raw)
	}
	shard := p.shardFor(item.Recipient)
	p.shards[shard] <- item
	prometheus.SetQueueDepth(p.depth())
	logger.DebugContext(ctx, "routed message to shard",
		"recipient", logger.RedactSensitiveData(item.Recipient), "shard_id", shard)
}

// shardFor maps a conversation key to a shard. The empty key lands on
// shard 0 so unattributable frames still have a stable home.
func (p *Pool) shardFor(recipient string) int {
	if recipient == "" {
		return 0
	}
	return int(crc32.ChecksumIEEE([]byte(recipient)) % uint32(len(p.shards)))
}

func (p *Pool) depth() int {
	total := len(p.cfg.Ingress)
	for _, shard := range p.shards {
		total += len(shard)
	}
	return total
}

// work drains one shard until it closes. Items buffered at shutdown are
// dispatched with a detached context so in-flight handlers are not cut
// off mid-send.
func (p *Pool) work(ctx context.Context, workerID int) {
	shardID := workerID % len(p.shards)
	shard := p.shards[shardID]

	base := logger.WithWorkerID(ctx, strconv.Itoa(workerID))
	base = logger.WithShardID(base, strconv.Itoa(shardID))

	for item := range shard {
		dispatchCtx := base
		if ctx.Err() != nil {
			dispatchCtx = context.WithoutCancel(base)
		}
		p.dispatch(dispatchCtx, workerID, shardID, item)
	}
}

// dispatch runs the full handling sequence for one queued item. The
// item is acknowledged exactly once no matter which branch it exits
// through.
func (p *Pool) dispatch(ctx context.Context, workerID, shardID int, item *types.QueuedMessage) {
	defer item.Acknowledge()

	if !item.EnqueuedAt.IsZero() {
		prometheus.ObserveQueueLatency(time.Since(item.EnqueuedAt).Seconds())
	}

	msg := item.Message
	if msg == nil {
		parsed, err := p.cfg.Parser.Parse(item.Raw)
		if err != nil {
			p.handleParseFailure(ctx, item, err)
			return
		}
		msg = parsed
		item.Message = parsed
	}

	ctx = logger.WithMessageID(ctx, msg.ID.String())
	ctx = logger.WithSource(ctx, msg.Source)
	ctx = logger.WithRecipient(ctx, msg.Recipient())

	if msg.Type == types.TypeSync && !p.cfg.DispatchSync {
		logger.DebugContext(ctx, "skipping sync message")
		return
	}

	if p.isDuplicate(ctx, msg) {
		prometheus.RecordDuplicate()
		logger.InfoContext(ctx, "duplicate message suppressed")
		return
	}

	unlock := p.cfg.Locks.Lock(msg.Recipient())
	defer unlock()

	cmd, trigger, ok := p.cfg.Router.Match(msg.Text)
	if !ok {
		p.markProcessed(ctx, msg, item.EnqueuedAt)
		return
	}
	ctx = logger.WithCommand(ctx, cmd.Name)

	if !cmd.Authorized(msg.Source) {
		logger.InfoContext(ctx, "sender not in command whitelist")
		p.markProcessed(ctx, msg, item.EnqueuedAt)
		return
	}

	if err := p.invoke(ctx, cmd, msg); err != nil {
		prometheus.RecordError("handler")
		logger.ErrorContext(ctx, "command handler failed", "error", err)
		p.deadLetter(ctx, item.Raw, ReasonCommandFailed, map[string]any{
			"command":    cmd.Name,
			"trigger":    trigger,
			"worker_id":  workerID,
			"shard_id":   shardID,
			"message_id": msg.ID.String(),
			"source":     msg.Source,
			"timestamp":  msg.Timestamp,
		})
		return
	}

	p.markProcessed(ctx, msg, item.EnqueuedAt)
	prometheus.RecordMessageProcessed()
	logger.InfoContext(ctx, "command completed", "command", cmd.Name)
}

func (p *Pool) invoke(ctx context.Context, cmd *bot.Command, msg *types.Message) error {
	handler := cmd.Handle
	if handler == nil {
		return bot.ErrNoHandler
	}

	p.mwMu.Lock()
	middlewares := make([]Middleware, len(p.middleware))
	copy(middlewares, p.middleware)
	p.mwMu.Unlock()

	c := &bot.Context{
		Message: msg,
		Clients: p.cfg.Clients,
		Locks:   p.cfg.Locks,
		Self:    p.cfg.Self,
	}
	return Chain(handler, middlewares...)(ctx, c)
}

func (p *Pool) handleParseFailure(ctx context.Context, item *types.QueuedMessage, err error) {
	if errors.Is(err, envelope.ErrUnsupported) {
		prometheus.RecordDrop("unsupported")
		logger.DebugContext(ctx, "dropping unsupported frame")
		return
	}
	prometheus.RecordError("parse")
	logger.WarnContext(ctx, "frame parse failed", "error", err)
	p.deadLetter(ctx, item.Raw, ReasonParseFailed, map[string]any{
		"error": err.Error(),
	})
}

// isDuplicate consults the checkpoint store. Lookup errors degrade to
// "not duplicate": a broken store must not stop dispatch.
func (p *Pool) isDuplicate(ctx context.Context, msg *types.Message) bool {
	if p.cfg.Checkpoint == nil {
		return false
	}
	dup, err := p.cfg.Checkpoint.IsDuplicate(ctx, msg.Source, msg.Timestamp)
	if err != nil {
		prometheus.RecordError("checkpoint")
		logger.WarnContext(ctx, "checkpoint lookup failed", "error", err)
		return false
	}
	return dup
}

// markProcessed checkpoints terminal outcomes: success, no match, and
// unauthorized sender. Failed handlers are deliberately not
// checkpointed so a redelivered frame gets another attempt.
func (p *Pool) markProcessed(ctx context.Context, msg *types.Message, enqueuedAt time.Time) {
	if p.cfg.Checkpoint == nil {
		return
	}
	if err := p.cfg.Checkpoint.MarkProcessed(ctx, msg.Source, msg.Timestamp, enqueuedAt); err != nil {
		prometheus.RecordError("checkpoint")
		logger.WarnContext(ctx, "checkpoint write failed", "error", err)
	}
}

// deadLetter is best effort: a DLQ failure is logged and dropped so it
// cannot wedge the worker.
func (p *Pool) deadLetter(ctx context.Context, raw []byte, reason string, metadata map[string]any) {
	prometheus.RecordDeadLetter(reason)
	if p.cfg.DLQ == nil {
		return
	}
	entry := dlq.Entry{
		Raw:      append([]byte(nil), raw...),
		Reason:   reason,
		Metadata: metadata,
	}
	if err := p.cfg.DLQ.Send(ctx, entry); err != nil {
		prometheus.RecordError("dlq")
		logger.ErrorContext(ctx, "dead letter write failed",
			"reason", reason, "error", fmt.Errorf("dlq send: %w", err))
	}
}
