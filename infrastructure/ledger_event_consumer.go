package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// EnvelopeHandler receives a decoded envelope
type EnvelopeHandler func(ctx context.Context, envelope EventEnvelope) error

// LedgerEventConsumer tails the ledger stream with a durable consumer
type LedgerEventConsumer struct {
	natsClient *NATSClient
	consumer   string
	stream     string
}

// NewLedgerEventConsumer creates a consumer named consumer on stream
func NewLedgerEventConsumer(natsClient *NATSClient, stream, consumer string) *LedgerEventConsumer {
	return &LedgerEventConsumer{
		natsClient: natsClient,
		consumer:   consumer,
		stream:     stream,
	}
}

// Start subscribes handler to every ledger subject
func (c *LedgerEventConsumer) Start(ctx context.Context, handler EnvelopeHandler) error {
	if err := EnsureLedgerStream(c.natsClient, c.stream); err != nil {
		return fmt.Errorf("failed to ensure ledger stream: %w", err)
	}

	return c.natsClient.Subscribe(c.consumer, LedgerSubjects, func(data []byte) error {
		envelope, err := DecodeEnvelope(data)
		if err != nil {
			// Malformed messages are acknowledged; redelivery cannot fix them
			log.WithError(err).Warn("Dropping undecodable ledger event")
			return nil
		}
		return handler(ctx, envelope)
	})
}

// DecodeEnvelope parses an EventEnvelope off the wire
func DecodeEnvelope(data []byte) (EventEnvelope, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	if envelope.EventType == "" {
		return EventEnvelope{}, fmt.Errorf("event envelope has no event type")
	}
	return envelope, nil
}
