package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sbjang123456/electron-ssh/internal/audit"
)

// GetAuditLogs lists persisted lifecycle events.
//
// Query parameters: connection_id, event_type, since and until (RFC 3339),
// limit, offset.
func (a *API) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	if a.Audit == nil {
		writeError(w, http.StatusNotFound, "Audit log is disabled")
		return
	}

	q := r.URL.Query()
	opts := audit.QueryOptions{
		ConnectionID: q.Get("connection_id"),
		EventType:    q.Get("event_type"),
	}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+name+" timestamp, expected RFC 3339")
			return
		}
		*dst = &ts
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	result, err := a.Audit.Query(opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
