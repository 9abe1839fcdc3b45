package events

import (
	"encoding/json"
	"sync"

	"github.com/flowx-dev/flowx/common/logger"
)

const subscriberBuffer = 512

// Subscriber receives marshalled event frames. Slow subscribers have
// frames dropped rather than holding the executor hostage.
type Subscriber struct {
	ch chan []byte
}

// Frames returns the subscriber's receive channel.
func (s *Subscriber) Frames() <-chan []byte {
	return s.ch
}

// Hub maintains the subscriber set and broadcasts events to all of
// them. Subscriber add/remove is safe against concurrent broadcast.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	mirror      Mirror
	log         *logger.Logger
}

// Mirror receives every broadcast frame in addition to the local
// subscribers (e.g. a Redis channel for external fanout processes).
type Mirror interface {
	Publish(frame []byte)
}

// NewHub creates an event hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		log:         log,
	}
}

// SetMirror attaches an optional event mirror.
func (h *Hub) SetMirror(m Mirror) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror = m
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[sub] {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish broadcasts an event to every subscriber. Sends are
// non-blocking: a full subscriber buffer drops the frame for that
// subscriber only.
func (h *Hub) Publish(event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	// Copy-on-iterate so broadcast never races subscriber add/remove.
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	mirror := h.mirror
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- frame:
		default:
			h.log.Warn("subscriber buffer full, dropping event", "type", event.Type)
		}
	}

	if mirror != nil {
		mirror.Publish(frame)
	}
}

// Emitter returns an emit callback bound to a thread id, suitable for
// handing to the executor.
func (h *Hub) Emitter(threadID string) func(eventType string, data map[string]any) {
	return func(eventType string, data map[string]any) {
		h.Publish(Event{
			Type:     eventType,
			ThreadID: threadID,
			Data:     data,
		})
	}
}
