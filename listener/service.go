package listener

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AltairaLabs/chatkit/logger"
	"github.com/AltairaLabs/chatkit/metrics/prometheus"
	"github.com/AltairaLabs/chatkit/types"
)

// Backpressure selects what happens when the ingress queue is full.
type Backpressure string

const (
	// DropNewest discards the incoming frame. This is the default: under
	// sustained overload the freshest traffic is the most replaceable,
	// and the socket keeps draining so the gateway does not buffer.
	DropNewest Backpressure = "DROP_NEWEST"

	// Block stops reading from the socket until the queue has room,
	// pushing backpressure onto the gateway.
	Block Backpressure = "BLOCK"

	// DropOldest evicts the oldest queued frame to make room.
	DropOldest Backpressure = "DROP_OLDEST"
)

// ParseBackpressure maps a config string to a Backpressure policy.
func ParseBackpressure(s string) (Backpressure, error) {
	switch Backpressure(strings.ToUpper(strings.TrimSpace(s))) {
	case DropNewest, "":
		return DropNewest, nil
	case Block:
		return Block, nil
	case DropOldest:
		return DropOldest, nil
	default:
		return "", fmt.Errorf("listener: unknown backpressure policy %q", s)
	}
}

// reconnectDelay is the fixed pause between reconnect attempts. The
// gateway socket drops regularly in normal operation, so the listener
// retries forever at a steady cadence instead of backing off.
const reconnectDelay = 1 * time.Second

// Config configures the listener service.
type Config struct {
	// ServiceAddr is the gateway host:port, e.g. "localhost:8080".
	ServiceAddr string

	// PhoneNumber is the bot's registered number.
	PhoneNumber string

	// UseTLS switches the socket scheme from ws to wss.
	UseTLS bool

	// Headers are sent during the WebSocket handshake. Optional.
	Headers http.Header

	// Policy selects the full-queue behavior. Defaults to DropNewest.
	Policy Backpressure
}

// Service owns the receive socket lifecycle: connect, read frames into
// the ingress queue, reconnect forever on failure.
type Service struct {
	cfg  Config
	conn *Conn
	out  chan *types.QueuedMessage
	cap  int
}

// New creates a listener that feeds out. The channel's capacity is the
// ingress bound the backpressure policy protects. The channel stays
// bidirectional because DropOldest evicts from the head.
func New(cfg Config, out chan *types.QueuedMessage) *Service {
	if cfg.Policy == "" {
		cfg.Policy = DropNewest
	}
	return &Service{
		cfg:  cfg,
		conn: NewConn(&ConnConfig{URL: receiveURL(cfg), Headers: cfg.Headers}),
		out:  out,
		cap:  cap(out),
	}
}

func receiveURL(cfg Config) string {
	scheme := "ws"
	if cfg.UseTLS {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   cfg.ServiceAddr,
		Path:   "/v1/receive/" + cfg.PhoneNumber,
	}
	return u.String()
}

// Run reads frames until ctx is canceled. Connection failures are not
// fatal: the service reconnects after a fixed delay, forever.
func (s *Service) Run(ctx context.Context) error {
	defer s.conn.Close()

	for {
		if err := s.conn.Connect(ctx); err != nil {
			logger.WarnContext(ctx, "gateway connect failed, retrying",
				"error", err, "delay", reconnectDelay)
			if err := s.pause(ctx); err != nil {
				return err
			}
			continue
		}

		err := s.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.WarnContext(ctx, "gateway socket lost, reconnecting",
			"error", err, "delay", reconnectDelay)
		prometheus.RecordReconnect()
		s.conn.Reset()
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
}

func (s *Service) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(reconnectDelay):
		return nil
	}
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		data, err := s.conn.Receive(ctx)
		if err != nil {
			return err
		}
		s.enqueue(ctx, &types.QueuedMessage{Raw: data, EnqueuedAt: time.Now()})
	}
}

// enqueue applies the configured backpressure policy. The listener
// never parses frames; a frame it cannot queue is counted and dropped
// whole.
func (s *Service) enqueue(ctx context.Context, item *types.QueuedMessage) {
	switch s.cfg.Policy {
	case Block:
		select {
		case s.out <- item:
		case <-ctx.Done():
			return
		}

	case DropOldest:
		for {
			select {
			case s.out <- item:
			case <-ctx.Done():
				return
			default:
				select {
				case evicted := <-s.out:
					evicted.Acknowledge()
					prometheus.RecordDrop("evicted")
				default:
				}
				continue
			}
			break
		}

	default: // DropNewest
		select {
		case s.out <- item:
		default:
			prometheus.RecordDrop("queue_full")
			logger.WarnContext(ctx, "ingress queue full, dropping frame",
				"policy", string(s.cfg.Policy), "capacity", s.cap)
			return
		}
	}
	prometheus.SetQueueDepth(len(s.out))
}
