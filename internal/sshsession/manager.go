package sshsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sbjang123456/electron-ssh/internal/logutil"
	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
)

// ErrConnectionNotFound is returned by Connect when the catalog has no
// record for the requested connection.
var ErrConnectionNotFound = errors.New("connection not found")

// Catalog is the slice of the connection store the Manager needs.
type Catalog interface {
	// Resolve returns the decrypted parameters for id, or (nil, nil) when
	// no such connection exists.
	Resolve(ctx context.Context, id string) (*sshtransport.Params, error)
	RecordLastUsed(ctx context.Context, id string, at time.Time) error
}

// Transport is a live shell as seen by the Manager. See sshtransport.Handle
// for the event contract.
type Transport interface {
	Events() <-chan sshtransport.Event
	Write(p []byte) error
	Resize(cols, rows int) error
	Close() error
}

// Dialer opens a Transport. It should honour ctx, but the Manager enforces
// its own timeout regardless.
type Dialer interface {
	Dial(ctx context.Context, p sshtransport.Params) (Transport, error)
}

// DriverDialer adapts an sshtransport.Driver to Dialer.
type DriverDialer struct {
	Driver *sshtransport.Driver
}

func (d DriverDialer) Dial(ctx context.Context, p sshtransport.Params) (Transport, error) {
	h, err := d.Driver.Dial(ctx, p)
	if err != nil {
		return nil, err
	}
	return h, nil
}

type Config struct {
	ConnectTimeout time.Duration
	// ScrollbackSize is the per-session replay buffer size. Zero uses the
	// default, negative disables scrollback.
	ScrollbackSize int
	// RecordingDir enables asciicast recordings when non-empty.
	RecordingDir string
	TermType     string
	Cols, Rows   int
}

// Manager is the single entry point for session lifecycle operations. All
// methods are safe for concurrent use.
type Manager struct {
	cfg      Config
	catalog  Catalog
	dialer   Dialer
	sink     Sink
	registry *Registry
	events   *eventLog
}

// NewManager wires a Manager. A nil registry gets a fresh one.
func NewManager(cfg Config, catalog Catalog, dialer Dialer, sink Sink, registry *Registry) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = sshtransport.DefaultConnectTimeout
	}
	if cfg.Cols <= 0 {
		cfg.Cols = sshtransport.DefaultCols
	}
	if cfg.Rows <= 0 {
		cfg.Rows = sshtransport.DefaultRows
	}
	if cfg.TermType == "" {
		cfg.TermType = sshtransport.DefaultTermType
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		cfg:      cfg,
		catalog:  catalog,
		dialer:   dialer,
		sink:     sink,
		registry: registry,
		events:   newEventLog(),
	}
}

// Connect opens a new shell for the saved connection and returns the new
// session id. Nothing is registered unless the shell is fully open.
func (m *Manager) Connect(ctx context.Context, connectionID string) (string, error) {
	params, err := m.catalog.Resolve(ctx, connectionID)
	if err != nil {
		m.events.log(connectionID, "", EventConnectFailed, err.Error())
		return "", fmt.Errorf("resolve connection %s: %w", connectionID, err)
	}
	// No history is kept for ids the catalog does not know.
	if params == nil {
		return "", fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}

	t, err := m.dial(ctx, *params)
	if err != nil {
		m.events.log(connectionID, "", EventConnectFailed, err.Error())
		log.Printf("[session-mgr] connect %s failed: %v", logutil.SanitizeForLog(connectionID), err)
		return "", err
	}

	now := time.Now()
	s := newSession(m.registry.NewID(), connectionID, t, now)
	if m.cfg.ScrollbackSize >= 0 {
		s.scrollback = NewScrollbackBuffer(m.cfg.ScrollbackSize)
	}
	if m.cfg.RecordingDir != "" {
		s.recording = NewRecording(m.cfg.Cols, m.cfg.Rows, m.cfg.TermType)
	}
	s.transition(StateOpen, "shell established")

	if err := m.registry.Register(s); err != nil {
		discard(t)
		return "", fmt.Errorf("register session: %w", err)
	}
	go m.bridge(s)

	if err := m.catalog.RecordLastUsed(ctx, connectionID, now); err != nil {
		log.Printf("[session-mgr] record last use of %s: %v", logutil.SanitizeForLog(connectionID), err)
	}
	m.events.log(connectionID, s.ID, EventConnected, params.Addr())
	log.Printf("[session-mgr] session %s opened (connection=%s, active=%d)",
		s.ID, logutil.SanitizeForLog(connectionID), m.registry.Len())
	return s.ID, nil
}

// dial runs the Dialer under the connect timeout. A handle that shows up
// after the timeout fired is closed and drained.
func (m *Manager) dial(ctx context.Context, p sshtransport.Params) (Transport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	type result struct {
		t   Transport
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := m.dialer.Dial(ctx, p)
		ch <- result{t, err}
	}()

	select {
	case r := <-ch:
		return r.t, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.t != nil {
				discard(r.t)
			}
		}()
		kind := ctx.Err()
		if errors.Is(kind, context.DeadlineExceeded) {
			kind = sshtransport.ErrConnectTimeout
		}
		return nil, &sshtransport.ConnectError{Op: "dial", Host: p.Host, Port: p.Port, Kind: kind, Err: ctx.Err()}
	}
}

// Send writes data to the session's shell. Unknown ids are ignored.
func (m *Manager) Send(sessionID string, data []byte) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return
	}
	s.bytesIn.Add(int64(len(data)))
	s.touch()
	if s.recording != nil {
		s.recording.RecordInput(data)
	}
	if err := s.transport.Write(data); err != nil {
		log.Printf("[session-mgr] write to session %s: %v", sessionID, err)
	}
}

// Resize changes the session's terminal size. Unknown ids are ignored.
func (m *Manager) Resize(sessionID string, cols, rows int) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return
	}
	if s.recording != nil {
		s.recording.RecordResize(cols, rows)
	}
	if err := s.transport.Resize(cols, rows); err != nil {
		log.Printf("[session-mgr] resize session %s: %v", sessionID, err)
	}
}

// Disconnect closes the session and reports whether it was live. The
// session gets exactly one Closed notification and nothing after it.
func (m *Manager) Disconnect(sessionID string) bool {
	s, ok := m.registry.Remove(sessionID)
	if !ok {
		return false
	}
	s.transition(StateClosing, "disconnect requested")
	if err := s.transport.Close(); err != nil {
		log.Printf("[session-mgr] close session %s: %v", sessionID, err)
	}
	s.terminate(m.sink, StateClosed, "disconnected", Notification{Kind: NotifyClosed, SessionID: sessionID})
	m.events.log(s.ConnectionID, sessionID, EventDisconnected, "")
	m.saveRecording(s)
	log.Printf("[session-mgr] session %s disconnected (active=%d)", sessionID, m.registry.Len())
	return true
}

// DisconnectAll disconnects every live session concurrently. Individual
// failures are logged and do not stop the others.
func (m *Manager) DisconnectAll() {
	ids := m.registry.IDs()
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Disconnect(id)
		}(id)
	}
	wg.Wait()
	if len(ids) > 0 {
		log.Printf("[session-mgr] disconnected %d sessions", len(ids))
	}
}

// ReapIdle disconnects sessions with no input or output for longer than
// maxIdle and returns how many were closed.
func (m *Manager) ReapIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)
	reaped := 0
	for _, s := range m.registry.List() {
		if s.idleSince().After(cutoff) {
			continue
		}
		if m.Disconnect(s.ID) {
			m.events.log(s.ConnectionID, s.ID, EventReaped, fmt.Sprintf("idle for more than %s", maxIdle))
			reaped++
		}
	}
	if reaped > 0 {
		log.Printf("[session-mgr] reaped %d idle sessions", reaped)
	}
	return reaped
}

// Sessions lists live sessions oldest first.
func (m *Manager) Sessions() []SessionInfo {
	list := m.registry.List()
	infos := make([]SessionInfo, len(list))
	for i, s := range list {
		infos[i] = s.Info()
	}
	return infos
}

func (m *Manager) Session(sessionID string) (SessionInfo, bool) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return SessionInfo{}, false
	}
	return s.Info(), true
}

// Scrollback returns the buffered output of a live session.
func (m *Manager) Scrollback(sessionID string) ([]byte, bool) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, false
	}
	if s.scrollback == nil {
		return []byte{}, true
	}
	return s.scrollback.Snapshot(), true
}

// EventHistory returns lifecycle events for a connection, oldest first.
func (m *Manager) EventHistory(connectionID string) []LifecycleEvent {
	return m.events.get(connectionID)
}

// OnEvent registers fn to observe every lifecycle event, e.g. for a
// persistent audit trail. fn runs on the goroutine that produced the event
// and must not block for long.
func (m *Manager) OnEvent(fn EventListener) {
	m.events.addListener(fn)
}

// ForgetConnection drops the lifecycle history of a deleted connection.
func (m *Manager) ForgetConnection(connectionID string) {
	m.events.forget(connectionID)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.registry.Len()
}

func (m *Manager) saveRecording(s *Session) {
	if s.recording == nil || m.cfg.RecordingDir == "" {
		return
	}
	path, err := s.recording.Save(m.cfg.RecordingDir, s.ID+".cast")
	if err != nil {
		log.Printf("[session-mgr] save recording for %s: %v", s.ID, err)
		return
	}
	log.Printf("[session-mgr] recording for %s saved to %s", s.ID, path)
}

// discard closes a transport nobody will consume and drains its events.
func discard(t Transport) {
	if err := t.Close(); err != nil {
		log.Printf("[session-mgr] close abandoned transport: %v", err)
	}
	go func() {
		for range t.Events() {
		}
	}()
}
