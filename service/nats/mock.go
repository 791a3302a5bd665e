package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*SyncedEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*SyncedEvent, 0),
	}
}

// PublishSynced records the event and returns any configured error.
func (m *MockPublisher) PublishSynced(ctx context.Context, event *SyncedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events.
func (m *MockPublisher) GetPublishedEvents() []*SyncedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*SyncedEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForAccount returns events published for one account.
func (m *MockPublisher) GetPublishedEventsForAccount(accountID string) []*SyncedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*SyncedEvent, 0)
	for _, event := range m.publishedEvents {
		if event.AccountID == accountID {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishSynced.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
