package handlers

import (
	"net/http"
	"time"

	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{Status: status, DBConnected: dbConnected})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Version          string     `json:"version"`
	SchemaVersion    int        `json:"schema_version"`
	PropertiesCount  int        `json:"properties_count"`
	ActiveLinksCount int        `json:"active_links_count"`
	Partners         []string   `json:"partners"`
	WebSocketClients int        `json:"websocket_clients"`
	NextSyncAt       *time.Time `json:"next_sync_at,omitempty"`
}

// Status returns a handler that reports counts and the next scheduled sync.
// scheduler may be nil.
func Status(db *storage.DB, hub *websocket.Hub, orchestrator *calendar.Orchestrator, scheduler *calendar.Scheduler, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{
			Version:  version,
			Partners: orchestrator.Partners(),
		}
		if v, err := storage.SchemaVersion(ctx, db); err == nil {
			resp.SchemaVersion = v
		}
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&resp.PropertiesCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM import_links WHERE active = 1").Scan(&resp.ActiveLinksCount)
		if hub != nil {
			resp.WebSocketClients = hub.ClientCount()
		}
		if scheduler != nil {
			resp.NextSyncAt = scheduler.NextRun()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
