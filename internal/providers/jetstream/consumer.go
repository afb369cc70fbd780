package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
)

// ConsumerConfig holds the configuration for consuming ledger events
type ConsumerConfig struct {
	Config
	// ConsumerName makes the consumer durable when set
	ConsumerName   string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	// FilterSubject defaults to every ledger event subject
	FilterSubject string
}

// Consumer delivers ledger events from the stream to a handler
//
//go:generate mockgen -source=consumer.go -destination=../../mocks/jetstream_consumer.go -package=mocks -mock_names=Consumer=MockEventConsumer
type Consumer interface {
	// Run consumes events until the context is cancelled
	Run(ctx context.Context, handler messaging.EventHandler) error
	// Close closes the connection
	Close()
}

type consumer struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	json   adapter.JSON
	config ConsumerConfig
}

// NewConsumer connects to NATS for consuming ledger events
func NewConsumer(cfg ConsumerConfig, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (Consumer, error) {
	nc, js, err := natsJS.Connect(cfg.URL, connectOptions(cfg.Config, nil)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return newConsumer(nc, js, jsonAdapter, cfg), nil
}

func newConsumer(nc adapter.NatsConn, js adapter.JetStream, jsonAdapter adapter.JSON, cfg ConsumerConfig) *consumer {
	if cfg.FilterSubject == "" {
		cfg.FilterSubject = SubjectPrefix + ".>"
	}
	if cfg.AckWaitTimeout <= 0 {
		cfg.AckWaitTimeout = 30 * time.Second
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}

	return &consumer{
		nc:     nc,
		js:     js,
		json:   jsonAdapter,
		config: cfg,
	}
}

// Run consumes ledger events in stream order
func (c *consumer) Run(ctx context.Context, handler messaging.EventHandler) error {
	logger.InfoCtx(ctx, "Starting ledger event consumer",
		zap.String("stream", c.config.StreamName),
		zap.String("consumer", c.config.ConsumerName),
		zap.String("subject", c.config.FilterSubject))

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.config.StreamName, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWaitTimeout,
		MaxDeliver:    c.config.MaxDeliver,
		FilterSubject: c.config.FilterSubject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	info, err := cons.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", info.Name),
		zap.Uint64("pending", info.NumPending))

	msgCh := make(chan adapter.Message, 100)
	sub, err := cons.Consume(func(msg adapter.Message) {
		select {
		case msgCh <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down ledger event consumer")
			return ctx.Err()
		case <-sub.Closed():
			return errors.New("consumer subscription closed")
		case msg := <-msgCh:
			c.handleMessage(ctx, msg, handler)
		}
	}
}

// handleMessage acknowledges a message once the handler accepted its event
func (c *consumer) handleMessage(ctx context.Context, msg adapter.Message, handler messaging.EventHandler) {
	var event domain.LedgerEvent
	if err := c.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to unmarshal event"))
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	fields := []zap.Field{
		zap.String("chain", string(event.Chain)),
		zap.String("eventType", string(event.EventType)),
		zap.Uint64("batchId", event.BatchID),
		zap.String("txHash", event.TxHash),
	}
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		fields = append(fields, zap.Uint64("deliveryCount", metadata.NumDelivered))
	}
	logger.DebugCtx(ctx, "Received ledger event", fields...)

	if err := handler(&event); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to handle ledger event"))
		if err := msg.Nak(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if err := msg.Ack(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
	}
}

// Close closes the NATS connection
func (c *consumer) Close() {
	if c.nc == nil {
		return
	}

	c.nc.Close()
}
