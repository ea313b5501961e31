// Package eventhub fans session notifications out to any number of
// subscribers, typically one per open websocket.
package eventhub

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/sbjang123456/electron-ssh/internal/sshsession"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 256

// Subscriber receives notifications in publish order. A subscriber that
// falls a full buffer behind is dropped and its channel closed, so a
// consumer never observes a gap inside the stream it was given.
type Subscriber struct {
	ch        chan sshsession.Notification
	dead      atomic.Bool
	closeOnce sync.Once
}

// C returns the notification channel. It is closed on Unsubscribe, on
// Hub.Close, or when the subscriber is dropped for being too slow.
func (s *Subscriber) C() <-chan sshsession.Notification { return s.ch }

// Dropped reports whether the hub gave up on this subscriber.
func (s *Subscriber) Dropped() bool { return s.dead.Load() }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

type Hub struct {
	mu         sync.RWMutex
	subs       map[*Subscriber]struct{}
	bufferSize int
	closed     bool
}

// New creates a Hub. bufferSize <= 0 selects DefaultBufferSize.
func New(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{subs: make(map[*Subscriber]struct{}), bufferSize: bufferSize}
}

// Subscribe registers a new subscriber. After Close it returns a
// subscriber whose channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan sshsession.Notification, h.bufferSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close()
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.close()
}

// Publish delivers n to every live subscriber without blocking.
func (h *Hub) Publish(n sshsession.Notification) {
	var slow []*Subscriber

	h.mu.RLock()
	for s := range h.subs {
		if s.dead.Load() {
			continue
		}
		select {
		case s.ch <- n:
		default:
			s.dead.Store(true)
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Printf("[eventhub] dropping slow subscriber (buffer %d full)", h.bufferSize)
		h.Unsubscribe(s)
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscriber]struct{})
	h.closed = true
	h.mu.Unlock()

	for s := range subs {
		s.close()
	}
}

var _ sshsession.Sink = (*Hub)(nil)
