package memory

import (
	"context"
	"sync"

	"studypace/domain/events"
)

// Publisher is an in-memory ports.EventPublisher that records everything it
// receives. Tests assert against Published().
type Publisher struct {
	mu        sync.Mutex
	published []events.DomainEvent
}

// NewPublisher creates an empty publisher
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

// PublishBatch records multiple events
func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, batch...)
	return nil
}

// Published returns a copy of everything published so far
func (p *Publisher) Published() []events.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.DomainEvent, len(p.published))
	copy(out, p.published)
	return out
}
