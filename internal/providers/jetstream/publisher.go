package jetstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
)

// EventIDHeader carries the unique id assigned to a published event
const EventIDHeader = "Ledger-Event-Id"

// SubjectPrefix is the root of every ledger event subject
const SubjectPrefix = "ledger"

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// DuplicateWindow bounds the stream's message id de-duplication
	DuplicateWindow time.Duration
	// EnsureStream creates or updates the stream on connect
	EnsureStream bool
}

type publisher struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	streamName string
	json       adapter.JSON
	clock      adapter.Clock
	closeCh    chan struct{}
	closeOnce  sync.Once
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON, clock adapter.Clock) (messaging.Publisher, error) {
	p := &publisher{
		streamName: cfg.StreamName,
		json:       jsonAdapter,
		clock:      clock,
		closeCh:    make(chan struct{}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, connectOptions(cfg, p.markClosed)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}
	p.nc = nc
	p.js = js

	if cfg.EnsureStream {
		if err := EnsureStream(ctx, js, cfg); err != nil {
			nc.Close()
			return nil, err
		}
	}

	return p, nil
}

// EnsureStream creates the ledger event stream or updates its configuration
func EnsureStream(ctx context.Context, js adapter.JetStream, cfg Config) error {
	window := cfg.DuplicateWindow
	if window <= 0 {
		window = 2 * time.Minute
	}

	info, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: window,
	})
	if err != nil {
		return fmt.Errorf("failed to create or update stream %s: %w", cfg.StreamName, err)
	}

	logger.Info("Stream ready",
		zap.String("stream", cfg.StreamName),
		zap.Uint64("messages", info.State.Msgs))
	return nil
}

func connectOptions(cfg Config, onClosed func()) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
			if onClosed != nil {
				onClosed()
			}
		}),
	}
}

// PublishEvent publishes a ledger event to NATS JetStream
func (p *publisher) PublishEvent(ctx context.Context, event *domain.LedgerEvent) error {
	logger.DebugCtx(ctx, "Publishing ledger event", zap.Any("event", event))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(BuildSubject(event))
	msg.Data = data
	msg.Header.Set(EventIDHeader, ulid.MustNewDefault(p.clock.Now()).String())

	// a replayed log maps to the same message id and is dropped by the stream
	_, err = p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(DedupKey(event)))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// BuildSubject constructs the NATS subject of an event
// Format: ledger.{chainRef}.{event_type}, e.g. ledger.31337.batch_created
func BuildSubject(event *domain.LedgerEvent) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, event.Chain.Reference(), event.EventType)
}

// DedupKey identifies the log an event was decoded from
func DedupKey(event *domain.LedgerEvent) string {
	return fmt.Sprintf("%s:%s:%d", event.Chain, event.TxHash, event.LogIndex)
}

func (p *publisher) markClosed() {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
	p.markClosed()
}

// CloseChan returns a channel closed once the connection is gone
func (p *publisher) CloseChan() <-chan struct{} {
	return p.closeCh
}
