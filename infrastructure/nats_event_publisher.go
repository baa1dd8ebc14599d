package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lootledger/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// EventEnvelope is the wire format of every event published to NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// MessagePublisher is the transport the publisher writes envelopes to.
// NATSClient implements it.
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PublishRecorder counts messages handed to the bus
type PublishRecorder interface {
	RecordNATSMessagePublished(eventType string)
}

// NATSEventPublisher delivers events to in-process subscribers and then to NATS
type NATSEventPublisher struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	localBus      *events.Bus
	recorder      PublishRecorder
}

// NewNATSEventPublisher creates a new NATS event publisher. localBus may be nil.
func NewNATSEventPublisher(publisher MessagePublisher, subjectMapper *EventSubjectMapper, localBus *events.Bus) *NATSEventPublisher {
	return &NATSEventPublisher{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		localBus:      localBus,
	}
}

// WithRecorder sets the metrics sink for published messages
func (p *NATSEventPublisher) WithRecorder(recorder PublishRecorder) *NATSEventPublisher {
	p.recorder = recorder
	return p
}

// Publish publishes an event to NATS using the appropriate subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()

	if p.localBus != nil {
		p.localBus.Emit(ctx, event)
	}

	subject := p.subjectMapper.MapEventToSubject(event)

	envelopeData, err := NewEnvelope(event)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, subject, envelopeData); err != nil {
		// No stream captures the subject; the event is dropped rather than failing the caller
		if errors.Is(err, nats.ErrNoStreamResponse) {
			log.WithField("subject", subject).Warn("No JetStream stream for subject, event dropped")
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	if p.recorder != nil {
		p.recorder.RecordNATSMessagePublished(string(event.Type()))
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// NewEnvelope wraps an event's JSON payload in an EventEnvelope
func NewEnvelope(event events.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "lootledger",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// EnsureLedgerStream ensures the ledger stream exists and captures every published subject
func EnsureLedgerStream(client *NATSClient, streamName string) error {
	return client.EnsureStream(streamName, []string{LedgerSubjects})
}
