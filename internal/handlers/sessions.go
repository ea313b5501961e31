package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
)

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.Sessions.Sessions()
	if sessions == nil {
		sessions = []sshsession.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	info, ok := a.Sessions.Session(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DisconnectSession reports whether a live session was closed. Unknown ids
// are not an error.
func (a *API) DisconnectSession(w http.ResponseWriter, r *http.Request) {
	ok := a.Sessions.Disconnect(chi.URLParam(r, "sessionId"))
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": ok})
}

// SendInput writes the raw request body to the session's shell. Delivery is
// fire-and-forget.
func (a *API) SendInput(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxInputMessageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Input exceeds 64 KiB")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(data) > 0 {
		a.Sessions.Send(chi.URLParam(r, "sessionId"), data)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) ResizeSession(w http.ResponseWriter, r *http.Request) {
	var body resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cols, rows, ok := clampTermSize(body.Cols, body.Rows)
	if !ok {
		writeError(w, http.StatusBadRequest, "cols and rows must be positive")
		return
	}
	a.Sessions.Resize(chi.URLParam(r, "sessionId"), cols, rows)
	w.WriteHeader(http.StatusAccepted)
}

// GetScrollback returns the retained tail of a session's output as raw
// bytes, for repainting a terminal after a reload.
func (a *API) GetScrollback(w http.ResponseWriter, r *http.Request) {
	data, ok := a.Sessions.Scrollback(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
