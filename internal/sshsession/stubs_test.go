package sshsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
)

// stubTransport is an in-memory Transport whose events are driven by the test.
type stubTransport struct {
	events chan sshtransport.Event

	mu      sync.Mutex
	ended   bool
	writes  [][]byte
	resizes [][2]int

	closeCalls atomic.Int32
	closeErr   error
	// holdOnClose keeps the stream open after Close so the test decides
	// when the terminal event arrives.
	holdOnClose bool
}

func newStubTransport() *stubTransport {
	return &stubTransport{events: make(chan sshtransport.Event, 64)}
}

func (s *stubTransport) Events() <-chan sshtransport.Event { return s.events }

func (s *stubTransport) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	return nil
}

func (s *stubTransport) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.resizes = append(s.resizes, [2]int{cols, rows})
	return nil
}

func (s *stubTransport) Close() error {
	s.closeCalls.Add(1)
	if !s.holdOnClose {
		s.end(sshtransport.Event{Kind: sshtransport.EventClosed})
	}
	return s.closeErr
}

// data emits output unless the stream has ended.
func (s *stubTransport) data(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events <- sshtransport.Event{Kind: sshtransport.EventData, Data: []byte(p)}
}

// end emits the terminal event once and closes the stream.
func (s *stubTransport) end(ev sshtransport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.events <- ev
	close(s.events)
}

func (s *stubTransport) remoteClose() {
	s.end(sshtransport.Event{Kind: sshtransport.EventClosed, Err: sshtransport.ErrRemoteClosed})
}

func (s *stubTransport) fail(err error) {
	s.end(sshtransport.Event{Kind: sshtransport.EventErrored, Err: err})
}

func (s *stubTransport) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = string(w)
	}
	return out
}

// stubDialer hands out stubTransports and remembers them in order.
type stubDialer struct {
	mu      sync.Mutex
	opened  []*stubTransport
	dialErr error
	dialFn  func(ctx context.Context, p sshtransport.Params) (Transport, error)
}

func (d *stubDialer) Dial(ctx context.Context, p sshtransport.Params) (Transport, error) {
	if d.dialFn != nil {
		return d.dialFn(ctx, p)
	}
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	t := newStubTransport()
	d.mu.Lock()
	d.opened = append(d.opened, t)
	d.mu.Unlock()
	return t, nil
}

func (d *stubDialer) last() *stubTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened[len(d.opened)-1]
}

func (d *stubDialer) all() []*stubTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*stubTransport(nil), d.opened...)
}

type stubCatalog struct {
	mu       sync.Mutex
	params   map[string]sshtransport.Params
	lastUsed map[string]time.Time
	err      error
}

func newStubCatalog(ids ...string) *stubCatalog {
	c := &stubCatalog{params: make(map[string]sshtransport.Params), lastUsed: make(map[string]time.Time)}
	for _, id := range ids {
		c.params[id] = sshtransport.Params{
			ConnectionID: id,
			Host:         "10.0.0.1",
			Port:         22,
			Username:     "root",
			AuthMethod:   sshtransport.AuthPassword,
			Password:     "pw",
		}
	}
	return c
}

func (c *stubCatalog) Resolve(_ context.Context, id string) (*sshtransport.Params, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.params[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *stubCatalog) RecordLastUsed(_ context.Context, id string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed[id] = at
	return nil
}

// recordingSink stores every notification it receives.
type recordingSink struct {
	mu    sync.Mutex
	notes []Notification
	hook  func(Notification)
}

func (r *recordingSink) Publish(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (r *recordingSink) forSession(id string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.SessionID == id {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingSink) terminalCount(id string) int {
	count := 0
	for _, n := range r.forSession(id) {
		if n.Kind != NotifyData {
			count++
		}
	}
	return count
}

func newTestManager(t *testing.T, cfg Config, ids ...string) (*Manager, *stubDialer, *recordingSink) {
	t.Helper()
	dialer := &stubDialer{}
	sink := &recordingSink{}
	m := NewManager(cfg, newStubCatalog(ids...), dialer, sink, NewRegistry())
	t.Cleanup(m.DisconnectAll)
	return m, dialer, sink
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitBridge blocks until the session's bridge goroutine exits.
func waitBridge(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.bridgeDone:
	case <-time.After(time.Second):
		t.Fatalf("bridge for %s did not exit", s.ID)
	}
}

var errStub = errors.New("stub failure")
