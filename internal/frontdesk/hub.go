package frontdesk

import (
	"sync"

	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/models"
)

// Live event types.
const (
	EventMessage     = "message"
	EventLeave       = "leave"
	EventHoldExpired = "hold_expired"
)

// Event is a change pushed to live subscribers.
type Event struct {
	Type    string                `json:"type"`
	Message *models.Message       `json:"message,omitempty"`
	Leave   *models.LeaveRequest  `json:"leave,omitempty"`
	Expired *dispatch.ExpiredHold `json:"expired,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may lag before
// events are dropped for it.
const subscriberBuffer = 64

// Hub fans events out to subscribers without blocking publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that unsubscribes and
// closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
