package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/webhook"
)

func testEvent(id string) webhook.WebhookEvent {
	to := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	return webhook.WebhookEvent{
		EventID:   id,
		EventType: webhook.EventTypeBatchTransferred,
		Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Data: webhook.EventData{
			Chain:       "eip155:31337",
			Contract:    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			BatchID:     1,
			To:          &to,
			TxHash:      "0xabc",
			BlockNumber: 12,
		},
	}
}

func TestGenerateSignedPayload(t *testing.T) {
	secret := "test-secret-key"
	now := time.Date(2024, 1, 15, 10, 0, 5, 0, time.UTC)

	t.Run("generates valid payload and signature", func(t *testing.T) {
		event := testEvent("01JG8XAMPLE1234567890123456")

		payload, signature, timestamp, err := webhook.GenerateSignedPayload(secret, event, now)
		require.NoError(t, err)
		assert.Equal(t, now.Unix(), timestamp)

		var parsed webhook.WebhookEvent
		require.NoError(t, json.Unmarshal(payload, &parsed))
		assert.Equal(t, event.EventID, parsed.EventID)
		assert.Equal(t, event.EventType, parsed.EventType)
		assert.Equal(t, event.Data.BatchID, parsed.Data.BatchID)

		h := hmac.New(sha256.New, []byte(secret))
		h.Write([]byte(fmt.Sprintf("%d.%s.%s", timestamp, event.EventID, string(payload))))
		assert.Equal(t, "sha256="+hex.EncodeToString(h.Sum(nil)), signature)
		assert.True(t, webhook.Verify(secret, timestamp, event.EventID, payload, signature))
	})

	t.Run("different events produce different signatures", func(t *testing.T) {
		_, sig1, _, err := webhook.GenerateSignedPayload(secret, testEvent("01JG8XAMPLE1111111111111111"), now)
		require.NoError(t, err)
		_, sig2, _, err := webhook.GenerateSignedPayload(secret, testEvent("01JG8XAMPLE2222222222222222"), now)
		require.NoError(t, err)

		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("different secrets produce different signatures", func(t *testing.T) {
		event := testEvent("01JG8XAMPLE1234567890123456")
		_, sig1, _, err := webhook.GenerateSignedPayload("secret-one", event, now)
		require.NoError(t, err)
		_, sig2, _, err := webhook.GenerateSignedPayload("secret-two", event, now)
		require.NoError(t, err)

		assert.NotEqual(t, sig1, sig2)
	})
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event_id":"01JG8XAMPLE1234567890123456"}`)
	signature := webhook.Sign("secret", 1700000000, "01JG8XAMPLE1234567890123456", payload)

	tests := []struct {
		name      string
		secret    string
		timestamp int64
		payload   []byte
		want      bool
	}{
		{name: "valid", secret: "secret", timestamp: 1700000000, payload: payload, want: true},
		{name: "wrong secret", secret: "other", timestamp: 1700000000, payload: payload},
		{name: "replayed timestamp", secret: "secret", timestamp: 1700000001, payload: payload},
		{name: "tampered body", secret: "secret", timestamp: 1700000000, payload: []byte(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := webhook.Verify(tt.secret, tt.timestamp, "01JG8XAMPLE1234567890123456", tt.payload, signature)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpoint_Accepts(t *testing.T) {
	tests := []struct {
		name     string
		types    []string
		accepted []string
		rejected []string
	}{
		{
			name:     "no filter",
			accepted: []string{webhook.EventTypeBatchCreated, webhook.EventTypeBatchTransferred},
		},
		{
			name:     "wildcard",
			types:    []string{webhook.EventTypeWildcard},
			accepted: []string{webhook.EventTypeMetadataUpdated},
		},
		{
			name:     "transfers only",
			types:    []string{webhook.EventTypeBatchTransferred},
			accepted: []string{webhook.EventTypeBatchTransferred},
			rejected: []string{webhook.EventTypeBatchCreated, webhook.EventTypeMetadataUpdated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := webhook.Endpoint{URL: "https://example.com/hook", EventTypes: tt.types}
			for _, et := range tt.accepted {
				assert.True(t, e.Accepts(et), et)
			}
			for _, et := range tt.rejected {
				assert.False(t, e.Accepts(et), et)
			}
		})
	}
}
