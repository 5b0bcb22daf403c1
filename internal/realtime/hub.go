package realtime

import (
	"log"
	"sync"
)

const subscriptionBuffer = 64

// Hub delivers published changes to every subscription whose filter
// matches. Publishing never blocks on a slow subscriber; its events are
// dropped instead.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

type Subscription struct {
	Filter Filter

	hub  *Hub
	ch   chan Change
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a filter. The returned subscription's channel is
// closed by Unsubscribe or when the hub shuts down.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	s := &Subscription{
		Filter: filter,
		hub:    h,
		ch:     make(chan Change, subscriptionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	log.Printf("✅ Realtime subscription added (%s). Total: %d", filter, len(h.subs))
	return s
}

// Publish hands c to every matching subscription.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.Filter.Match(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			log.Printf("⚠️ Realtime subscriber %s is slow, dropping %s on %s", s.Filter, c.Type, c.Table)
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.once.Do(func() { close(s.ch) })
		delete(h.subs, s)
	}
}

// C returns the channel of matching changes.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

func (s *Subscription) Unsubscribe() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
	log.Printf("❌ Realtime subscription removed (%s). Total: %d", s.Filter, len(h.subs))
}
