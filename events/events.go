package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChanged     EventType = "balance_changed"
	EventTypeWagerCommitted     EventType = "wager_committed"
	EventTypeWagerAborted       EventType = "wager_aborted"
	EventTypeWagerResold        EventType = "wager_resold"
	EventTypeTransactionDeleted EventType = "transaction_deleted"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangedEvent is emitted for every committed transaction record
type BalanceChangedEvent struct {
	UserID           int64  `json:"user_id"`
	ReferenceID      string `json:"reference_id"`
	Direction        string `json:"direction"`
	Bucket           string `json:"bucket"`
	Category         string `json:"category"`
	Amount           int64  `json:"amount"`
	AvailableBefore  int64  `json:"available_before"`
	PendingBefore    int64  `json:"pending_before"`
	AvailableAfter   int64  `json:"available_after"`
	PendingAfter     int64  `json:"pending_after"`
	RelatedReference string `json:"related_reference,omitempty"`
}

func (e BalanceChangedEvent) Type() EventType {
	return EventTypeBalanceChanged
}

// WagerCommittedEvent is emitted once a spin and its debit are durable
type WagerCommittedEvent struct {
	OutcomeID            int64   `json:"outcome_id"`
	BoxID                int64   `json:"box_id"`
	UserID               int64   `json:"user_id"`
	Nonce                int64   `json:"nonce"`
	Commitment           string  `json:"commitment"`
	Digest               string  `json:"digest"`
	Normalized           float64 `json:"normalized"`
	WinningItemID        int64   `json:"winning_item_id"`
	WinningItemValue     int64   `json:"winning_item_value"`
	Price                int64   `json:"price"`
	TransactionReference string  `json:"transaction_reference"`
}

func (e WagerCommittedEvent) Type() EventType {
	return EventTypeWagerCommitted
}

// WagerAbortedEvent is emitted when a wager fails after its commitment was produced
type WagerAbortedEvent struct {
	BoxID      int64  `json:"box_id"`
	UserID     int64  `json:"user_id"`
	Commitment string `json:"commitment"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
}

func (e WagerAbortedEvent) Type() EventType {
	return EventTypeWagerAborted
}

// WagerResoldEvent is emitted when a winning item is exchanged for credit
type WagerResoldEvent struct {
	OutcomeID            int64  `json:"outcome_id"`
	UserID               int64  `json:"user_id"`
	CreditAmount         int64  `json:"credit_amount"`
	TransactionReference string `json:"transaction_reference"`
}

func (e WagerResoldEvent) Type() EventType {
	return EventTypeWagerResold
}

// TransactionDeletedEvent is emitted when an admin soft-deletes a record
type TransactionDeletedEvent struct {
	UserID      int64  `json:"user_id"`
	ReferenceID string `json:"reference_id"`
	DeletedBy   int64  `json:"deleted_by"`
}

func (e TransactionDeletedEvent) Type() EventType {
	return EventTypeTransactionDeleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages in-process event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Publish dispatches an event to its handlers without blocking the caller
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}
