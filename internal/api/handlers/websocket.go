package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rental-calendar/backend/internal/log"
	ws "github.com/rental-calendar/backend/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard may be served through a reverse proxy on another origin.
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := ws.NewClient()
		if !hub.Register(client) {
			conn.Close()
			return
		}

		// Replies to client commands go through their own channel so only
		// writePump writes to conn.
		replies := make(chan []byte, 8)
		go writePump(conn, client, replies)
		go readPump(conn, client, hub, replies)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client, replies <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case reply, ok := <-replies:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client commands until the connection closes.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub, replies chan<- []byte) {
	defer func() {
		hub.Unregister(client)
		close(replies)
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		reply := handleClientMessage(message)
		if reply == nil {
			continue
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

// handleClientMessage answers pings; any other command gets an error reply.
func handleClientMessage(message []byte) []byte {
	var in struct {
		Type ws.MessageType `json:"type"`
	}
	if err := json.Unmarshal(message, &in); err != nil {
		out, _ := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "bad_message", Message: "invalid JSON"}).JSON()
		return out
	}

	var out []byte
	switch in.Type {
	case ws.TypePing:
		out, _ = ws.NewMessage(ws.TypePong, nil).JSON()
	default:
		out, _ = ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_type",
			Message:      "unsupported message type",
			OriginalType: string(in.Type),
		}).JSON()
	}
	return out
}
