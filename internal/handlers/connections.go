package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/logutil"
)

func (a *API) ListConnections(w http.ResponseWriter, r *http.Request) {
	records, err := a.Connections.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list connections")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) GetConnection(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Connections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var body catalog.Input
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec, err := a.Connections.Create(r.Context(), body)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateConnection applies a partial update. Omitted fields are kept; an
// empty password or passphrase clears the stored secret.
func (a *API) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var body catalog.Patch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec, err := a.Connections.Update(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteConnection removes the saved connection. Sessions already open
// from it keep running.
func (a *API) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Connections.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	a.Sessions.ForgetConnection(id)
	w.WriteHeader(http.StatusNoContent)
}

// Connect opens a shell for the saved connection. It blocks until the
// shell is ready or the connect fails.
func (a *API) Connect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessionID, err := a.Sessions.Connect(r.Context(), id)
	if err != nil {
		log.Printf("[api] connect %s: %v", logutil.SanitizeForLog(id), err)
		writeConnectError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id":    sessionID,
		"connection_id": id,
	})
}

func (a *API) GetConnectionEvents(w http.ResponseWriter, r *http.Request) {
	events := a.Sessions.EventHistory(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
