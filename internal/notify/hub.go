package notify

import (
	"sync"

	"github.com/satchelhq/satchel/internal/logger"
)

// subscriberBuffer is how many undelivered events a session may lag
// behind before it starts losing them. Losing an event is fine: the
// subscriber refetches on every event anyway.
const subscriberBuffer = 8

// Hub fans events out to the sessions held by this process, keyed by
// user so a change never reaches another user's session.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	logger logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		logger: log,
	}
}

// Subscribe registers a session for userID's events. The returned
// cancel func must be called when the session ends.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers e to every session of e.UserID without blocking.
// A session that cannot keep up loses the event.
func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[e.UserID] {
		select {
		case ch <- e:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				logger.String("user_id", e.UserID),
				logger.String("op", e.Op))
		}
	}
}
