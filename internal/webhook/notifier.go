package webhook

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
)

// Delivery headers
const (
	SignatureHeader = "X-Webhook-Signature"
	EventIDHeader   = "X-Webhook-Event-ID"
	EventTypeHeader = "X-Webhook-Event-Type"
	TimestampHeader = "X-Webhook-Timestamp"
)

// maxConcurrentDeliveries bounds the in-flight requests of one event
const maxConcurrentDeliveries = 8

// Notifier delivers ledger events to webhook endpoints
//
//go:generate mockgen -source=notifier.go -destination=../mocks/notifier.go -package=mocks -mock_names=Notifier=MockNotifier
type Notifier interface {
	// Notify delivers event to every subscribed endpoint.
	// It fails when any delivery failed so the event is redelivered.
	Notify(ctx context.Context, event *domain.LedgerEvent) ([]DeliveryResult, error)
}

type notifier struct {
	endpoints []Endpoint
	http      adapter.HTTPClient
	clock     adapter.Clock
}

// NewNotifier creates a notifier for endpoints
func NewNotifier(endpoints []Endpoint, httpClient adapter.HTTPClient, clock adapter.Clock) Notifier {
	return &notifier{
		endpoints: endpoints,
		http:      httpClient,
		clock:     clock,
	}
}

// NewEvent converts a ledger event to its webhook form
func NewEvent(event *domain.LedgerEvent) (WebhookEvent, error) {
	eventType, ok := eventTypes[event.EventType]
	if !ok {
		return WebhookEvent{}, fmt.Errorf("unsupported event type %q", event.EventType)
	}

	return WebhookEvent{
		EventID:   EventID(event),
		EventType: eventType,
		Timestamp: event.Timestamp.UTC(),
		Data: EventData{
			Chain:          string(event.Chain),
			Contract:       event.ContractAddress,
			BatchID:        event.BatchID,
			From:           event.FromAddress,
			To:             event.ToAddress,
			OldMetadataRef: event.OldMetadataRef,
			MetadataRef:    event.MetadataRef,
			TxHash:         event.TxHash,
			BlockNumber:    event.BlockNumber,
		},
	}, nil
}

// EventID derives a ULID from the log an event was decoded from.
// The timestamp part is the ledger time and the entropy is a hash of chain, tx and log index.
func EventID(event *domain.LedgerEvent) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", event.Chain, event.TxHash, event.LogIndex))
	var entropy [10]byte
	copy(entropy[:], sum[:])

	var id ulid.ULID
	_ = id.SetTime(ulid.Timestamp(event.Timestamp))
	_ = id.SetEntropy(entropy[:])
	return id.String()
}

func (n *notifier) Notify(ctx context.Context, event *domain.LedgerEvent) ([]DeliveryResult, error) {
	whEvent, err := NewEvent(event)
	if err != nil {
		return nil, err
	}

	var targets []Endpoint
	for _, e := range n.endpoints {
		if e.Accepts(whEvent.EventType) {
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	pool := pond.NewPool(min(len(targets), maxConcurrentDeliveries))
	defer pool.StopAndWait()

	var (
		mu      sync.Mutex
		results = make([]DeliveryResult, len(targets))
		errs    []error
	)
	group := pool.NewGroup()
	for i, endpoint := range targets {
		group.Submit(func() {
			result := n.deliver(ctx, endpoint, whEvent)
			results[i] = result
			if !result.Success {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %s", endpoint.URL, result.Error))
				mu.Unlock()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}

	return results, errors.Join(errs...)
}

// deliver posts a signed event to one endpoint
func (n *notifier) deliver(ctx context.Context, endpoint Endpoint, event WebhookEvent) DeliveryResult {
	payload, signature, timestamp, err := GenerateSignedPayload(endpoint.Secret, event, n.clock.Now())
	if err != nil {
		return DeliveryResult{URL: endpoint.URL, Error: err.Error()}
	}

	headers := map[string]string{
		SignatureHeader: signature,
		EventIDHeader:   event.EventID,
		EventTypeHeader: event.EventType,
		TimestampHeader: fmt.Sprintf("%d", timestamp),
	}

	if _, err := n.http.Post(ctx, endpoint.URL, "application/json", payload, headers); err != nil {
		logger.WarnCtx(ctx, "Webhook delivery failed",
			zap.String("url", endpoint.URL),
			zap.String("eventID", event.EventID),
			zap.Error(err))
		return DeliveryResult{URL: endpoint.URL, Error: err.Error()}
	}

	logger.DebugCtx(ctx, "Webhook delivered",
		zap.String("url", endpoint.URL),
		zap.String("eventID", event.EventID),
		zap.String("eventType", event.EventType))
	return DeliveryResult{URL: endpoint.URL, Success: true}
}

// Handler adapts a notifier to the event handler of a stream consumer
func Handler(ctx context.Context, n Notifier) messaging.EventHandler {
	return func(event *domain.LedgerEvent) error {
		results, err := n.Notify(ctx, event)
		if err != nil {
			logger.WarnCtx(ctx, "Event not delivered to every endpoint, it will be redelivered",
				zap.Uint64("batchID", event.BatchID),
				zap.String("eventType", string(event.EventType)),
				zap.String("txHash", event.TxHash),
				zap.Error(err))
			return err
		}

		logger.InfoCtx(ctx, "Event delivered",
			zap.Uint64("batchID", event.BatchID),
			zap.String("eventType", string(event.EventType)),
			zap.Int("endpoints", len(results)))
		return nil
	}
}
