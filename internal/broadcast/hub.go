package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/wordbomb/internal/model"
)

// Buffer size for outgoing events per subscriber
const sendBufferSize = 256

// Subscription is one client's ordered event stream.
// C is closed when the subscriber is removed, including when it falls too far behind.
type Subscription struct {
	ID          string
	Kind        string // Transport name, for logs
	C           <-chan model.Event
	send        chan model.Event
	connectedAt time.Time
}

// Hub fans session events out to every subscriber.
// Publish never blocks: a subscriber whose buffer is full is dropped, since skipping an
// event would leave its view inconsistent. Clients recover by reconnecting and taking a new snapshot.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// Subscribe registers a new subscriber. Returns nil once the hub is closed.
func (h *Hub) Subscribe(id, kind string) *Subscription {
	send := make(chan model.Event, sendBufferSize)
	sub := &Subscription{
		ID:          id,
		Kind:        kind,
		C:           send,
		send:        send,
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Info("subscriber registered",
		slog.String("subscriber_id", id),
		slog.String("kind", kind),
		slog.Int("total_subscribers", count))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(sub)
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Info("subscriber unregistered",
		slog.String("subscriber_id", sub.ID),
		slog.String("kind", sub.Kind),
		slog.Duration("connection_duration", time.Since(sub.connectedAt)),
		slog.Int("total_subscribers", count))
}

// Publish delivers events, in order, to every subscriber
func (h *Hub) Publish(events ...model.Event) {
	if len(events) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped []*Subscription
	for sub := range h.subs {
		for _, e := range events {
			select {
			case sub.send <- e:
				continue
			default:
			}
			dropped = append(dropped, sub)
			break
		}
	}
	for _, sub := range dropped {
		h.removeLocked(sub)
		h.logger.Warn("subscriber dropped - buffer full",
			slog.String("subscriber_id", sub.ID),
			slog.String("kind", sub.Kind))
	}
}

// Close disconnects every subscriber and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	count := len(h.subs)
	for sub := range h.subs {
		h.removeLocked(sub)
	}
	h.logger.Info("broadcast hub stopped", slog.Int("disconnected_subscribers", count))
}

// Count returns the number of subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) removeLocked(sub *Subscription) {
	delete(h.subs, sub)
	close(sub.send)
}
