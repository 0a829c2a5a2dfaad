package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atikulmunna/loupe/internal/model"
)

const (
	inputBuffer      = 256
	subscriberBuffer = 1024
)

// Hub fans run events out to every subscriber. Delivery is best-effort:
// publishing never blocks, and a subscriber whose buffer is full misses the event.
type Hub struct {
	log         zerolog.Logger
	input       chan model.Event
	mu          sync.RWMutex
	subscribers map[chan model.Event]struct{}
	dropped     int64
	closed      bool
}

// New creates a Hub. Call Start to begin delivering events.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log,
		input:       make(chan model.Event, inputBuffer),
		subscribers: make(map[chan model.Event]struct{}),
	}
}

// Publish queues an event for delivery without blocking.
func (h *Hub) Publish(ev model.Event) {
	select {
	case h.input <- ev:
	default:
		h.drop(1)
	}
}

// Subscribe returns a buffered channel that receives every subsequent event,
// and a function that detaches it. The channel is closed on detach or when
// the hub stops.
func (h *Hub) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subscribers[ch] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(ch) })
	}
}

// Dropped returns the total number of events dropped for slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Start delivers published events until the context is cancelled.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.input:
			h.broadcast(ev)
		}
	}
}

// broadcast sends an event to all subscribers, skipping any that are full.
func (h *Hub) broadcast(ev model.Event) {
	h.mu.RLock()
	var missed int64
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			missed++
		}
	}
	h.mu.RUnlock()

	if missed > 0 {
		h.drop(missed)
	}
}

func (h *Hub) drop(n int64) {
	h.mu.Lock()
	h.dropped += n
	total := h.dropped
	h.mu.Unlock()
	h.log.Debug().Int64("dropped_total", total).Msg("hub: dropped event for slow consumer")
}

func (h *Hub) unsubscribe(ch chan model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
	h.closed = true
}
