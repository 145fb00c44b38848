package session

import (
	"context"
	"sync"

	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// Publisher delivers session change events to whatever fans them out.
type Publisher interface {
	Publish(ctx context.Context, event events.SessionEvent) error
}

// Listener receives change events for one session.
type Listener func(event events.SessionEvent)

// Hub is the in-process observer registry for session changes.
// Subscribe returns an unsubscribe func that is safe to call more than once;
// after it returns no further events are delivered to that listener.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[uint64]Listener
	// session-independent listeners, e.g. the completion scheduler
	every  map[uint64]Listener
	nextID uint64
}

// NewHub creates an empty observer registry.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]map[uint64]Listener),
		every:     make(map[uint64]Listener),
	}
}

// Subscribe registers fn for events on sessionID.
func (h *Hub) Subscribe(sessionID string, fn Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.listeners[sessionID] == nil {
		h.listeners[sessionID] = make(map[uint64]Listener)
	}
	h.listeners[sessionID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.listeners[sessionID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.listeners, sessionID)
				}
			}
		})
	}
}

// SubscribeAll registers fn for events on every session.
func (h *Hub) SubscribeAll(fn Listener) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.every[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.every, id)
			h.mu.Unlock()
		})
	}
}

// Publish calls every listener of the event's session. Listeners run on the
// caller's goroutine, outside the registry lock.
func (h *Hub) Publish(_ context.Context, event events.SessionEvent) error {
	h.mu.RLock()
	subs := h.listeners[event.SessionID]
	targets := make([]Listener, 0, len(subs)+len(h.every))
	for _, fn := range subs {
		targets = append(targets, fn)
	}
	for _, fn := range h.every {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}

	log.Debug().
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		Int("listeners", len(targets)).
		Msg("session event delivered")
	return nil
}

// SubscriberCount returns the number of listeners on sessionID.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[sessionID])
}
