package event

import (
	"sync"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Handler receives dispatched events. Returning true stops delivery to the
// remaining handlers for that event.
type Handler func(e Event) bool

// Subscription identifies a handler registered with Subscribe.
type Subscription struct {
	eventType Type
	id        uint64
}

type entry struct {
	id      uint64
	handler Handler
}

// Manager handles event subscriptions and dispatching.
type Manager struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Type][]entry
}

// NewManager creates a new event manager.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[Type][]entry),
	}
}

// Subscribe adds a handler for an event type.
func (m *Manager) Subscribe(eventType Type, handler Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.handlers[eventType] = append(m.handlers[eventType], entry{id: m.nextID, handler: handler})
	logger.DebugTagf("event", "Handler %d subscribed to %v", m.nextID, eventType)
	return Subscription{eventType: eventType, id: m.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (m *Manager) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.handlers[sub.eventType]
	for i, e := range list {
		if e.id == sub.id {
			m.handlers[sub.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch sends an event to the handlers registered for its type, in
// subscription order. Handlers run synchronously on the caller's goroutine.
func (m *Manager) Dispatch(eventType Type, data interface{}) {
	m.mu.RLock()
	handlers := make([]entry, len(m.handlers[eventType]))
	copy(handlers, m.handlers[eventType])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	logger.DebugTagf("event", "Dispatching %v to %d handler(s)", eventType, len(handlers))
	ev := Event{Type: eventType, Data: data}
	for _, e := range handlers {
		if e.handler(ev) {
			return
		}
	}
}
