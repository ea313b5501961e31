package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeConnectError reports a failed connect with a status and a stable
// machine-readable kind next to the human-readable detail.
func writeConnectError(w http.ResponseWriter, err error) {
	status, kind := connectFailure(err)
	writeJSON(w, status, map[string]string{"detail": err.Error(), "kind": kind})
}

func connectFailure(err error) (int, string) {
	switch {
	case errors.Is(err, sshsession.ErrConnectionNotFound):
		return http.StatusNotFound, "connection_not_found"
	case errors.Is(err, sshtransport.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "authentication_failed"
	case errors.Is(err, sshtransport.ErrKeyReadFailed):
		return http.StatusUnprocessableEntity, "key_read_failed"
	case errors.Is(err, sshtransport.ErrInvalidParams):
		return http.StatusUnprocessableEntity, "invalid_params"
	case errors.Is(err, sshtransport.ErrConnectTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "connect_timeout"
	case errors.Is(err, sshtransport.ErrHostKeyRejected):
		return http.StatusBadGateway, "host_key_rejected"
	case errors.Is(err, sshtransport.ErrNetwork):
		return http.StatusBadGateway, "network_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Connection not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
