// Package handlers exposes the connection catalog and live shell sessions
// over HTTP, with a websocket carrying session output and keystrokes.
package handlers

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/sbjang123456/electron-ssh/internal/audit"
	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/eventhub"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
)

// ConnectionStore is the subset of catalog.Store the API uses.
type ConnectionStore interface {
	List(ctx context.Context) ([]catalog.Record, error)
	Get(ctx context.Context, id string) (*catalog.Record, error)
	Create(ctx context.Context, in catalog.Input) (*catalog.Record, error)
	Update(ctx context.Context, id string, p catalog.Patch) (*catalog.Record, error)
	Delete(ctx context.Context, id string) error
}

// SessionService is the subset of sshsession.Manager the API uses.
type SessionService interface {
	Connect(ctx context.Context, connectionID string) (string, error)
	Send(sessionID string, data []byte)
	Resize(sessionID string, cols, rows int)
	Disconnect(sessionID string) bool
	Sessions() []sshsession.SessionInfo
	Session(sessionID string) (sshsession.SessionInfo, bool)
	Scrollback(sessionID string) ([]byte, bool)
	EventHistory(connectionID string) []sshsession.LifecycleEvent
	ForgetConnection(connectionID string)
	Len() int
}

// AuditLog is the query side of audit.Auditor.
type AuditLog interface {
	Query(opts audit.QueryOptions) (*audit.QueryResult, error)
}

type API struct {
	Connections ConnectionStore
	Sessions    SessionService
	Hub         *eventhub.Hub
	Audit       AuditLog
	// OriginPatterns lists the hosts allowed to open the event websocket.
	OriginPatterns []string
}

// Routes mounts the API on r, which is expected to sit under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Get("/connections", a.ListConnections)
	r.Post("/connections", a.CreateConnection)
	r.Get("/connections/{id}", a.GetConnection)
	r.Patch("/connections/{id}", a.UpdateConnection)
	r.Delete("/connections/{id}", a.DeleteConnection)
	r.Post("/connections/{id}/connect", a.Connect)
	r.Get("/connections/{id}/events", a.GetConnectionEvents)

	r.Get("/sessions", a.ListSessions)
	r.Get("/sessions/{sessionId}", a.GetSession)
	r.Delete("/sessions/{sessionId}", a.DisconnectSession)
	r.Post("/sessions/{sessionId}/input", a.SendInput)
	r.Post("/sessions/{sessionId}/resize", a.ResizeSession)
	r.Get("/sessions/{sessionId}/scrollback", a.GetScrollback)

	r.Get("/events", a.EventsWS)
	r.Get("/audit", a.GetAuditLogs)
	r.Get("/logs", GetServerLogs)
}
