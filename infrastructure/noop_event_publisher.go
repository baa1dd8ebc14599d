package infrastructure

import (
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher drops every event. The read-only CLI tools wire it so they
// never need a NATS connection.
type NoopEventPublisher struct{}

func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

func (n *NoopEventPublisher) Publish(event events.Event) error {
	log.WithField("event_type", event.Type()).Debug("Dropping event, publishing disabled")
	return nil
}
