package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"lootledger/domain/interfaces"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

// TransactionalPublisher buffers the events of one unit of work. They reach the
// downstream publisher in emission order after commit, or never.
type TransactionalPublisher struct {
	downstream interfaces.EventPublisher
	pending    []events.Event
}

// NewTransactionalPublisher creates a buffer in front of downstream
func NewTransactionalPublisher(downstream interfaces.EventPublisher) *TransactionalPublisher {
	return &TransactionalPublisher{downstream: downstream}
}

// Publish buffers event until Flush or Discard
func (p *TransactionalPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

// Pending returns the number of buffered events
func (p *TransactionalPublisher) Pending() int {
	return len(p.pending)
}

// Flush hands every buffered event downstream. A failing event does not stop the
// rest; the ledger change is already durable. The failures are returned joined.
func (p *TransactionalPublisher) Flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}
	log.WithField("count", len(p.pending)).Debug("Flushing committed events")

	var errs []error
	for _, event := range p.pending {
		if err := p.downstream.Publish(event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.Type(), err))
		}
	}
	p.pending = p.pending[:0]

	return errors.Join(errs...)
}

// Discard drops every buffered event
func (p *TransactionalPublisher) Discard() {
	if len(p.pending) > 0 {
		log.WithField("count", len(p.pending)).Debug("Discarding events of rolled back unit of work")
	}
	p.pending = p.pending[:0]
}
