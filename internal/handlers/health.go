package handlers

import (
	"net/http"

	"github.com/sbjang123456/electron-ssh/internal/database"
)

func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"database":        dbStatus,
		"active_sessions": a.Sessions.Len(),
		"subscribers":     a.Hub.Len(),
	})
}
