package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage/models"
	"github.com/rental-calendar/backend/internal/websocket"
)

func forceParam(r *http.Request) bool {
	switch r.URL.Query().Get("force") {
	case "1", "true", "yes":
		return true
	}
	return false
}

// sseWriter writes Server-Sent Events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseWriter) event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// StreamSync runs a sync in the request and streams its progress as
// Server-Sent Events: "starting", one "progress" per link, then "complete"
// with the run summary, or "error" if the run could not proceed. The run
// stops between links when the client disconnects.
func StreamSync(orchestrator *calendar.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		sse := sseWriter{w: w, flusher: flusher}
		force := forceParam(r)
		sse.event("starting", map[string]any{"message": "Starting sync", "force": force})

		outcomes, err := orchestrator.RunAll(r.Context(), force, func(current, total int, outcome models.SyncOutcome) {
			p := models.SyncProgress{Current: current, Total: total, Outcome: outcome}
			if err := sse.event("progress", websocket.NewSyncProgressPayload(p)); err != nil {
				log.Debug("sync stream client gone", "error", err)
			}
		})
		if err != nil {
			if r.Context().Err() == nil {
				log.Error("sync run failed", err)
				sse.event("error", map[string]string{"message": err.Error()})
			}
			return
		}

		sse.event("complete", map[string]any{
			"message": "Sync complete",
			"summary": calendar.Summarize(outcomes),
			"results": outcomes,
		})
	}
}

// TriggerSync starts a background run and returns immediately. Progress is
// pushed to websocket clients.
func TriggerSync(scheduler *calendar.Scheduler, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force := forceParam(r)
		if broadcaster != nil {
			broadcaster.SyncStarted(force)
		}
		scheduler.TriggerSync(force)

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "started",
			"force":  force,
		})
	}
}

// SyncNeeded reports whether any active link is due for a fetch.
func SyncNeeded(orchestrator *calendar.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		needed, err := orchestrator.NeedsSync(r.Context())
		if err != nil {
			log.Error("checking sync need", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to check links")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"needs_sync": needed})
	}
}
