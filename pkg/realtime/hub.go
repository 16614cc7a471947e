package realtime

import (
	"context"
	"log/slog"
	"sync"
)

const DefaultSubscriberBuffer = 64

type subscriber struct {
	events chan StatusEvent
}

// Hub fans status events out to in-process subscribers of a channel. A
// subscriber that falls behind loses events instead of slowing publishers.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu          sync.RWMutex
	subscribers map[Channel]map[*subscriber]struct{}
}

func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	return &Hub{
		logger:      logger.With("module", "realtime_hub"),
		buffer:      buffer,
		subscribers: make(map[Channel]map[*subscriber]struct{}),
	}
}

// Subscribe registers for events on channel. The returned function
// unsubscribes and closes the event channel; it is safe to call twice.
func (h *Hub) Subscribe(channel Channel) (<-chan StatusEvent, func()) {
	sub := &subscriber{events: make(chan StatusEvent, h.buffer)}

	h.mu.Lock()
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[*subscriber]struct{})
	}

	h.subscribers[channel][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once

	return sub.events, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[channel], sub)

			if len(h.subscribers[channel]) == 0 {
				delete(h.subscribers, channel)
			}
			h.mu.Unlock()

			close(sub.events)
		})
	}
}

func (h *Hub) Publish(ctx context.Context, event StatusEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[event.Channel] {
		select {
		case sub.events <- event:
		default:
			h.logger.DebugContext(ctx, "Dropping status event for slow subscriber",
				"channel", event.Channel, "node_id", event.Data.NodeID)
		}
	}

	return nil
}

// Subscribers returns how many subscribers channel currently has.
func (h *Hub) Subscribers(channel Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[channel])
}
