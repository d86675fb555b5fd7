package websocket

import (
	"encoding/json"
	"time"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncStarted   MessageType = "sync.started"
	TypeSyncProgress  MessageType = "sync.progress"
	TypeSyncCompleted MessageType = "sync.completed"
	TypeSyncError     MessageType = "sync.error"
	TypeConfigChanged MessageType = "config.changed"
	TypeNotification  MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncStartedPayload is the payload for sync.started events.
type SyncStartedPayload struct {
	Force bool `json:"force"`
}

// SyncProgressPayload is the payload for sync.progress events, one per
// import link.
type SyncProgressPayload struct {
	Current    int                `json:"current"`
	Total      int                `json:"total"`
	Progress   int                `json:"progress"` // percent
	Message    string             `json:"message"`
	PropertyID int64              `json:"property_id"`
	Partner    string             `json:"partner"`
	Result     models.SyncOutcome `json:"result"`
}

// NewSyncProgressPayload describes one finished link.
func NewSyncProgressPayload(p models.SyncProgress) SyncProgressPayload {
	msg := p.Outcome.Partner + " " + p.Outcome.Status
	if p.Outcome.PropertyName != "" {
		msg = p.Outcome.PropertyName + ": " + msg
	}
	return SyncProgressPayload{
		Current:    p.Current,
		Total:      p.Total,
		Progress:   p.Percent(),
		Message:    msg,
		PropertyID: p.Outcome.PropertyID,
		Partner:    p.Outcome.Partner,
		Result:     p.Outcome,
	}
}

// SyncCompletedPayload is the payload for sync.completed events.
type SyncCompletedPayload struct {
	Summary   models.SyncSummary `json:"summary"`
	NextRunAt *time.Time         `json:"next_run_at,omitempty"`
}

// SyncErrorPayload is the payload for sync.error events.
type SyncErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
