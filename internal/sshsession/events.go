package sshsession

import (
	"sync"
	"time"
)

// eventBufferSize is the maximum number of lifecycle events kept per
// connection.
const eventBufferSize = 100

// LifecycleEventType names what happened to a connection.
type LifecycleEventType string

const (
	EventConnected     LifecycleEventType = "connected"
	EventConnectFailed LifecycleEventType = "connect_failed"
	EventDisconnected  LifecycleEventType = "disconnected"
	EventRemoteClosed  LifecycleEventType = "remote_closed"
	EventErrored       LifecycleEventType = "errored"
	EventReaped        LifecycleEventType = "reaped"
)

// LifecycleEvent is one entry in a connection's history.
type LifecycleEvent struct {
	ConnectionID string             `json:"connection_id"`
	SessionID    string             `json:"session_id,omitempty"`
	Type         LifecycleEventType `json:"type"`
	Timestamp    time.Time          `json:"timestamp"`
	Details      string             `json:"details,omitempty"`
}

type eventBuffer struct {
	events [eventBufferSize]LifecycleEvent
	head   int
	count  int
}

func (b *eventBuffer) record(event LifecycleEvent) {
	b.events[b.head] = event
	b.head = (b.head + 1) % eventBufferSize
	if b.count < eventBufferSize {
		b.count++
	}
}

func (b *eventBuffer) history() []LifecycleEvent {
	if b.count == 0 {
		return nil
	}
	result := make([]LifecycleEvent, b.count)
	if b.count < eventBufferSize {
		copy(result, b.events[:b.count])
	} else {
		n := copy(result, b.events[b.head:])
		copy(result[n:], b.events[:b.head])
	}
	return result
}

// EventListener is called for every lifecycle event after it is recorded.
type EventListener func(LifecycleEvent)

// eventLog keeps a ring buffer of lifecycle events per connection id.
type eventLog struct {
	mu        sync.RWMutex
	buffers   map[string]*eventBuffer
	listeners []EventListener
}

func newEventLog() *eventLog {
	return &eventLog{buffers: make(map[string]*eventBuffer)}
}

func (el *eventLog) addListener(fn EventListener) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.listeners = append(el.listeners, fn)
}

func (el *eventLog) log(connectionID, sessionID string, eventType LifecycleEventType, details string) {
	event := LifecycleEvent{
		ConnectionID: connectionID,
		SessionID:    sessionID,
		Type:         eventType,
		Timestamp:    time.Now(),
		Details:      details,
	}

	el.mu.Lock()
	buf, ok := el.buffers[connectionID]
	if !ok {
		buf = &eventBuffer{}
		el.buffers[connectionID] = buf
	}
	buf.record(event)
	listeners := el.listeners
	el.mu.Unlock()

	// Listeners run outside the lock so they may call back into the log.
	for _, fn := range listeners {
		fn(event)
	}
}

func (el *eventLog) get(connectionID string) []LifecycleEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	buf, ok := el.buffers[connectionID]
	if !ok {
		return nil
	}
	return buf.history()
}

// forget drops the history of a deleted connection.
func (el *eventLog) forget(connectionID string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	delete(el.buffers, connectionID)
}
