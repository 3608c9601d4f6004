package match

import "sync"

// PublishTrade receives every execution the engine produces. Implementations
// must not block: they run on the submitting caller's goroutine.
type PublishTrade interface {
	PublishTrades(...*Execution)
}

// EventPublisher receives book state change events in per-symbol sequence
// order. Implementations must not block: they run while the book's lock
// is held.
type EventPublisher interface {
	PublishEvents(...*BookEvent)
}

// MemoryPublishTrade stores executions in memory, useful for testing.
type MemoryPublishTrade struct {
	mu     sync.RWMutex
	trades []*Execution
}

// NewMemoryPublishTrade creates a new MemoryPublishTrade.
func NewMemoryPublishTrade() *MemoryPublishTrade {
	return &MemoryPublishTrade{
		trades: make([]*Execution, 0),
	}
}

// PublishTrades appends executions to the in-memory slice.
func (m *MemoryPublishTrade) PublishTrades(trades ...*Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trades...)
}

// Count returns the number of executions stored.
func (m *MemoryPublishTrade) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades)
}

// Get returns the execution at the specified index.
func (m *MemoryPublishTrade) Get(index int) *Execution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.trades[index]
}

// DiscardPublishTrade discards all executions, useful for benchmarking.
type DiscardPublishTrade struct{}

// NewDiscardPublishTrade creates a new DiscardPublishTrade.
func NewDiscardPublishTrade() *DiscardPublishTrade {
	return &DiscardPublishTrade{}
}

// PublishTrades does nothing.
func (p *DiscardPublishTrade) PublishTrades(trades ...*Execution) {
}

// MemoryEventPublisher stores book events in memory, useful for testing.
type MemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*BookEvent
}

// NewMemoryEventPublisher creates a new MemoryEventPublisher.
func NewMemoryEventPublisher() *MemoryEventPublisher {
	return &MemoryEventPublisher{
		events: make([]*BookEvent, 0),
	}
}

// PublishEvents appends events to the in-memory slice.
func (m *MemoryEventPublisher) PublishEvents(events ...*BookEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// Count returns the number of events stored.
func (m *MemoryEventPublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Get returns the event at the specified index.
func (m *MemoryEventPublisher) Get(index int) *BookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.events[index]
}

// Events returns a copy of all events stored.
func (m *MemoryEventPublisher) Events() []*BookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*BookEvent, len(m.events))
	copy(events, m.events)
	return events
}

// DiscardEventPublisher discards all events.
type DiscardEventPublisher struct{}

// NewDiscardEventPublisher creates a new DiscardEventPublisher.
func NewDiscardEventPublisher() *DiscardEventPublisher {
	return &DiscardEventPublisher{}
}

// PublishEvents does nothing.
func (p *DiscardEventPublisher) PublishEvents(events ...*BookEvent) {
}
