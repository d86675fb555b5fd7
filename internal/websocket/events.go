package websocket

import (
	"time"

	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events. It implements
// calendar.ProgressReporter.
type EventBroadcaster struct {
	hub     *Hub
	nextRun func() *time.Time
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// SetNextRun supplies the time of the next scheduled sync, reported with
// each completed run.
func (b *EventBroadcaster) SetNextRun(fn func() *time.Time) {
	b.nextRun = fn
}

// SyncStarted announces a manually triggered run.
func (b *EventBroadcaster) SyncStarted(force bool) {
	b.broadcast(NewMessage(TypeSyncStarted, SyncStartedPayload{Force: force}))
}

// SyncProgress sends the outcome of one import link.
func (b *EventBroadcaster) SyncProgress(p models.SyncProgress) {
	b.broadcast(NewMessage(TypeSyncProgress, NewSyncProgressPayload(p)))
}

// SyncCompleted sends the summary of a finished run.
func (b *EventBroadcaster) SyncCompleted(summary models.SyncSummary) {
	payload := SyncCompletedPayload{Summary: summary}
	if b.nextRun != nil {
		payload.NextRunAt = b.nextRun()
	}
	b.broadcast(NewMessage(TypeSyncCompleted, payload))
}

// SyncFailed sends a run-level failure, such as the link list being
// unreadable.
func (b *EventBroadcaster) SyncFailed(err error) {
	b.broadcast(NewMessage(TypeSyncError, SyncErrorPayload{
		Error:   "sync_error",
		Message: err.Error(),
	}))
}

// ConfigChanged tells clients the configuration was reloaded.
func (b *EventBroadcaster) ConfigChanged() {
	b.broadcast(NewMessage(TypeConfigChanged, nil))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}

	b.broadcast(NewMessage(TypeNotification, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Error("encoding websocket message", err, "type", msg.Type)
		return
	}

	b.hub.Broadcast(data)
}
