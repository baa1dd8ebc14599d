package infrastructure

import (
	"fmt"

	"lootledger/events"
)

const (
	// LedgerSubjects matches every subject this service publishes
	LedgerSubjects = "ledger.>"

	SubjectBalanceChanged     = "ledger.balance.changed"
	SubjectWagerCommitted     = "ledger.wager.committed"
	SubjectWagerAborted       = "ledger.wager.aborted"
	SubjectWagerResold        = "ledger.wager.resold"
	SubjectTransactionDeleted = "ledger.transaction.deleted"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeBalanceChanged:
		return SubjectBalanceChanged
	case events.EventTypeWagerCommitted:
		return SubjectWagerCommitted
	case events.EventTypeWagerAborted:
		return SubjectWagerAborted
	case events.EventTypeWagerResold:
		return SubjectWagerResold
	case events.EventTypeTransactionDeleted:
		return SubjectTransactionDeleted
	default:
		return fmt.Sprintf("ledger.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case SubjectBalanceChanged:
		return events.EventTypeBalanceChanged
	case SubjectWagerCommitted:
		return events.EventTypeWagerCommitted
	case SubjectWagerAborted:
		return events.EventTypeWagerAborted
	case SubjectWagerResold:
		return events.EventTypeWagerResold
	case SubjectTransactionDeleted:
		return events.EventTypeTransactionDeleted
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectBalanceChanged,
		SubjectWagerCommitted,
		SubjectWagerAborted,
		SubjectWagerResold,
		SubjectTransactionDeleted,
	}
}
