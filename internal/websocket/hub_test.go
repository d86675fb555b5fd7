package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rental-calendar/backend/internal/storage/models"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "client channel closed")
		var raw struct {
			Type    MessageType     `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &raw))
		return Message{Type: raw.Type, Payload: raw.Payload}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, _ := startHub(t)
	a, b := NewClient(), NewClient()
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.Broadcast([]byte(`{"type":"ping"}`))

	assert.Equal(t, TypePing, receive(t, a).Type)
	assert.Equal(t, TypePing, receive(t, b).Type)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(a)
	_, ok := <-a.Send()
	assert.False(t, ok)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient()
	require.True(t, hub.Register(c))

	cancel()
	<-hub.Done()

	_, ok := <-c.Send()
	assert.False(t, ok)
	assert.False(t, hub.Register(NewClient()))
}

func TestEventBroadcaster_SyncEvents(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient()
	require.True(t, hub.Register(c))

	next := time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC)
	b := NewEventBroadcaster(hub)
	b.SetNextRun(func() *time.Time { return &next })

	b.SyncProgress(models.SyncProgress{Current: 1, Total: 2, Outcome: models.SyncOutcome{
		PropertyID: 3, PropertyName: "Cabin", Partner: "AirBNB", Status: models.SyncStatusSuccess,
	}})
	msg := receive(t, c)
	assert.Equal(t, TypeSyncProgress, msg.Type)
	var progress SyncProgressPayload
	require.NoError(t, json.Unmarshal(msg.Payload.(json.RawMessage), &progress))
	assert.Equal(t, 50, progress.Progress)
	assert.Equal(t, "Cabin: AirBNB success", progress.Message)
	assert.Equal(t, int64(3), progress.PropertyID)

	b.SyncCompleted(models.SyncSummary{Total: 2, Success: 2})
	msg = receive(t, c)
	assert.Equal(t, TypeSyncCompleted, msg.Type)
	var completed SyncCompletedPayload
	require.NoError(t, json.Unmarshal(msg.Payload.(json.RawMessage), &completed))
	assert.Equal(t, 2, completed.Summary.Success)
	require.NotNil(t, completed.NextRunAt)
	assert.True(t, next.Equal(*completed.NextRunAt))

	b.SyncFailed(errors.New("database is locked"))
	msg = receive(t, c)
	assert.Equal(t, TypeSyncError, msg.Type)
	assert.Contains(t, string(msg.Payload.(json.RawMessage)), "database is locked")
}
