// Package eventbus broadcasts available_robot_update add/remove
// notifications to every connected UI client. It is a publish/subscribe
// bus specialized to one event shape instead of a registry of arbitrary
// event types, since that is the only fan-out this bridge needs outside the
// subscription router.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
)

// RobotUpdate is the available_robot_update event payload.
type RobotUpdate struct {
	Action string `json:"action"` // "add" or "remove"
	Alias  string `json:"alias"`
	IP     string `json:"ip"`
}

// Handler receives a RobotUpdate as it is published.
type Handler func(RobotUpdate)

// Bus fans a RobotUpdate out to every subscribed handler, keyed by a
// generated subscriber id, mirroring the Subscriber-by-uuid idiom used for
// the UI subscription router in this codebase.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers handler under a freshly minted subscriber id and
// returns that id for later Unsubscribe calls.
func (b *Bus) Subscribe(handler Handler) string {
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Publish invokes every subscribed handler with update. Each handler runs
// in its own goroutine so a slow UI client cannot stall the robot session
// that triggered the event.
func (b *Bus) Publish(update RobotUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers {
		go handler(update)
	}
}
