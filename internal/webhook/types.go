package webhook

import (
	"time"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// Event type constants
const (
	// EventTypeBatchCreated is fired when a new batch is recorded
	EventTypeBatchCreated = "batch.created"

	// EventTypeBatchTransferred is fired when a batch changes owner
	EventTypeBatchTransferred = "batch.transferred"

	// EventTypeMetadataUpdated is fired when a batch points at a new metadata document
	EventTypeMetadataUpdated = "batch.metadata_updated"

	// EventTypeWildcard is a special filter that matches all event types
	EventTypeWildcard = "*"
)

// eventTypes maps ledger event types to webhook event types
var eventTypes = map[domain.EventType]string{
	domain.EventTypeBatchCreated:     EventTypeBatchCreated,
	domain.EventTypeBatchTransferred: EventTypeBatchTransferred,
	domain.EventTypeMetadataUpdated:  EventTypeMetadataUpdated,
}

// WebhookEvent represents a webhook event to be delivered to clients
type WebhookEvent struct {
	// EventID is stable across redeliveries of the same ledger log (ULID)
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData contains the webhook event payload
type EventData struct {
	Chain          string  `json:"chain"`
	Contract       string  `json:"contract"`
	BatchID        uint64  `json:"batch_id"`
	From           *string `json:"from,omitempty"`
	To             *string `json:"to,omitempty"`
	OldMetadataRef *string `json:"old_metadata_ref,omitempty"`
	MetadataRef    *string `json:"metadata_ref,omitempty"`
	TxHash         string  `json:"tx_hash"`
	BlockNumber    uint64  `json:"block_number"`
}

// Endpoint is a webhook receiver
type Endpoint struct {
	URL        string
	Secret     string
	EventTypes []string
}

// Accepts reports whether the endpoint subscribed to eventType
func (e Endpoint) Accepts(eventType string) bool {
	if len(e.EventTypes) == 0 {
		return true
	}
	for _, t := range e.EventTypes {
		if t == EventTypeWildcard || t == eventType {
			return true
		}
	}
	return false
}

// DeliveryResult represents the result of a webhook delivery attempt
type DeliveryResult struct {
	URL     string
	Success bool
	Error   string
}
