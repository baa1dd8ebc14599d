package testhelpers

import (
	"context"
	"sync"

	"lootledger/events"
)

// RecordingPublisher is a TransactionalEventPublisher that keeps flushed events in memory
type RecordingPublisher struct {
	mu        sync.Mutex
	pending   []events.Event
	Published []events.Event
	Discarded int
}

func (p *RecordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *RecordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, p.pending...)
	p.pending = nil
	return nil
}

func (p *RecordingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Discarded += len(p.pending)
	p.pending = nil
}

// OfType returns the flushed events of one type
func (p *RecordingPublisher) OfType(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.Published {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}
