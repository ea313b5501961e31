package handlers

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sbjang123456/electron-ssh/internal/audit"
	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/crypto"
	"github.com/sbjang123456/electron-ssh/internal/database"
	"github.com/sbjang123456/electron-ssh/internal/eventhub"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
)

type sentInput struct {
	sessionID string
	data      string
}

type resizeCall struct {
	sessionID  string
	cols, rows int
}

type fakeSessions struct {
	mu         sync.Mutex
	connectErr error
	nextID     string
	connected  []string
	sent       []sentInput
	resizes    []resizeCall
	live       map[string]sshsession.SessionInfo
	scrollback map[string][]byte
	history    map[string][]sshsession.LifecycleEvent
	forgotten  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		nextID:     "sess-1",
		live:       make(map[string]sshsession.SessionInfo),
		scrollback: make(map[string][]byte),
		history:    make(map[string][]sshsession.LifecycleEvent),
	}
}

func (f *fakeSessions) Connect(ctx context.Context, connectionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return "", f.connectErr
	}
	f.connected = append(f.connected, connectionID)
	f.live[f.nextID] = sshsession.SessionInfo{ID: f.nextID, ConnectionID: connectionID, State: sshsession.StateOpen}
	return f.nextID, nil
}

func (f *fakeSessions) Send(sessionID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentInput{sessionID, string(data)})
}

func (f *fakeSessions) Resize(sessionID string, cols, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, resizeCall{sessionID, cols, rows})
}

func (f *fakeSessions) Disconnect(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[sessionID]
	delete(f.live, sessionID)
	return ok
}

func (f *fakeSessions) Sessions() []sshsession.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sshsession.SessionInfo
	for _, info := range f.live {
		out = append(out, info)
	}
	return out
}

func (f *fakeSessions) Session(sessionID string) (sshsession.SessionInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.live[sessionID]
	return info, ok
}

func (f *fakeSessions) Scrollback(sessionID string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.scrollback[sessionID]
	return data, ok
}

func (f *fakeSessions) EventHistory(connectionID string) []sshsession.LifecycleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[connectionID]
}

func (f *fakeSessions) ForgetConnection(connectionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, connectionID)
}

func (f *fakeSessions) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeSessions) inputs() []sentInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentInput(nil), f.sent...)
}

func (f *fakeSessions) resizeCalls() []resizeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resizeCall(nil), f.resizes...)
}

type testEnv struct {
	api      *API
	sessions *fakeSessions
	store    *catalog.Store
	hub      *eventhub.Hub
	auditor  *audit.Auditor
	srv      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	cipher, err := crypto.LoadOrCreate(db)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	env := &testEnv{
		sessions: newFakeSessions(),
		store:    catalog.New(db, cipher),
		hub:      eventhub.New(16),
		auditor:  audit.NewAuditor(db, 0),
	}
	env.api = &API{Connections: env.store, Sessions: env.sessions, Hub: env.hub, Audit: env.auditor}

	r := chi.NewRouter()
	r.Get("/health", env.api.HealthCheck)
	r.Route("/api/v1", env.api.Routes)
	env.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		env.srv.Close()
		env.hub.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return env
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
