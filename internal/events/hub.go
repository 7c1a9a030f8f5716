// Package events carries seat state changes from the coordinator and
// sweeper to whoever is watching. Publishing is fire-and-forget: the
// originating operation has already committed and returned by the time
// anything here runs, and a failed delivery is logged, not retried.
package events

import (
	"context"
	"sync"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

// Publisher is implemented by the Hub for single-process deployments
// and by the rabbit adapter when a broker is configured.
type Publisher interface {
	Publish(ctx context.Context, changes ...domain.SeatStateChanged) error
}

const defaultBuffer = 32

// Hub fans events out to in-process subscribers over buffered
// channels. A subscriber that stops draining falls behind its buffer
// and is dropped; the closed channel is how it learns it was removed.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan domain.SeatStateChanged]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[chan domain.SeatStateChanged]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. Cancel is idempotent and safe to call after the hub
// already dropped the subscriber.
func (h *Hub) Subscribe() (<-chan domain.SeatStateChanged, func()) {
	ch := make(chan domain.SeatStateChanged, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	observability.WSSubscribers.Inc()

	return ch, func() { h.drop(ch) }
}

// Publish hands each change to every subscriber without blocking. The
// sends happen under the hub lock, which is safe because they never
// wait; it also means a concurrent cancel cannot close a channel
// mid-send.
func (h *Hub) Publish(ctx context.Context, changes ...domain.SeatStateChanged) error {
	if len(changes) == 0 {
		return nil
	}

	h.mu.Lock()
	for ch := range h.subs {
		for _, change := range changes {
			select {
			case ch <- change:
				continue
			default:
			}
			delete(h.subs, ch)
			close(ch)
			observability.WSSubscribers.Dec()
			break
		}
	}
	h.mu.Unlock()
	return nil
}

func (h *Hub) drop(ch chan domain.SeatStateChanged) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
		observability.WSSubscribers.Dec()
	}
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
