package sshsession

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is one live shell owned by a Manager. Its transport is owned
// exclusively by the session and is closed exactly once by the Manager.
type Session struct {
	ID           string
	ConnectionID string
	CreatedAt    time.Time

	transport  Transport
	scrollback *ScrollbackBuffer
	recording  *Recording
	bridgeDone chan struct{}

	// mu serializes state changes with notification delivery so a
	// terminal notification is always the last one for the session.
	mu           sync.Mutex
	state        State
	history      stateHistory
	detached     bool
	lastActivity time.Time

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// SessionInfo is a point-in-time view of a Session.
type SessionInfo struct {
	ID           string            `json:"id"`
	ConnectionID string            `json:"connection_id"`
	State        State             `json:"state"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	BytesIn      int64             `json:"bytes_in"`
	BytesOut     int64             `json:"bytes_out"`
	Transitions  []StateTransition `json:"transitions,omitempty"`
}

func newSession(id, connectionID string, t Transport, now time.Time) *Session {
	return &Session{
		ID:           id,
		ConnectionID: connectionID,
		CreatedAt:    now,
		transport:    t,
		bridgeDone:   make(chan struct{}),
		state:        StateConnecting,
		lastActivity: now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:           s.ID,
		ConnectionID: s.ConnectionID,
		State:        s.state,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		BytesIn:      s.bytesIn.Load(),
		BytesOut:     s.bytesOut.Load(),
		Transitions:  s.history.list(),
	}
}

// transition moves the session to state unless it already reached a
// terminal state.
func (s *Session) transition(to State, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(to, reason)
}

func (s *Session) transitionLocked(to State, reason string) {
	if s.state == to || s.state.Terminal() {
		return
	}
	s.history.record(s.state, to, reason, time.Now())
	s.state = to
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// deliverData forwards output unless the session has already delivered its
// terminal notification.
func (s *Session) deliverData(sink Sink, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return
	}
	s.lastActivity = time.Now()
	if s.scrollback != nil {
		s.scrollback.Write(data)
	}
	if s.recording != nil {
		s.recording.RecordOutput(data)
	}
	sink.Publish(Notification{Kind: NotifyData, SessionID: s.ID, Data: data})
}

// terminate delivers n as the session's final notification. Callers must
// have won Registry.Remove for the session, which makes this run once.
func (s *Session) terminate(sink Sink, to State, reason string, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	s.transitionLocked(to, reason)
	sink.Publish(n)
}
