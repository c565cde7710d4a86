package testutil

import (
	"context"
	"sync"

	"github.com/sitequote/billing/internal/domain/events"
	"github.com/sitequote/billing/internal/publisher"
)

// InMemoryPublisherService records published events for assertions
type InMemoryPublisherService struct {
	mu         sync.RWMutex
	events     []*events.Event
	publishErr error
}

var _ publisher.EventPublisher = (*InMemoryPublisherService)(nil)

// NewInMemoryEventPublisher creates a new instance of InMemoryPublisherService
func NewInMemoryEventPublisher() *InMemoryPublisherService {
	return &InMemoryPublisherService{
		events: make([]*events.Event, 0),
	}
}

// Publish implements publisher.EventPublisher
func (p *InMemoryPublisherService) Publish(ctx context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.publishErr != nil {
		return p.publishErr
	}
	p.events = append(p.events, event)
	return nil
}

// FailPublish makes every following Publish return err
func (p *InMemoryPublisherService) FailPublish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishErr = err
}

// GetEvents returns all published events
func (p *InMemoryPublisherService) GetEvents() []*events.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*events.Event, len(p.events))
	copy(result, p.events)
	return result
}

// HasEvent checks if an event with the given name was published
func (p *InMemoryPublisherService) HasEvent(eventName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, e := range p.events {
		if e.EventName == eventName {
			return true
		}
	}
	return false
}

// Clear removes all published events
func (p *InMemoryPublisherService) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]*events.Event, 0)
	p.publishErr = nil
}
