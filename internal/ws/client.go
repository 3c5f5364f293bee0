package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // images travel inline as data URLs
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from the app origin; the chat surface
	// itself carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	room *roomHub
	conn *websocket.Conn
	send chan []byte
}

// Serve upgrades the request and attaches the connection to the
// room's hub.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, roomID string) error {
	rh, err := h.room(roomID)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:   uuid.NewString(),
		room: rh,
		conn: conn,
		send: make(chan []byte, 64),
	}

	// The room loop stops receiving once the hub shuts down; never
	// block a late connection on it.
	select {
	case rh.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close()
		return h.ctx.Err()
	}

	go c.writePump()
	go c.readPump()
	return nil
}

func (c *client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Slow consumer; it will resync from the next snapshot.
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.room.unregister <- c:
		case <-c.room.hub.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WsClient] read failed client=%s room_id=%s err=%v", c.id, c.room.roomID, err)
			}
			return
		}

		var op clientOp
		if err := json.Unmarshal(raw, &op); err != nil {
			log.Printf("[WsClient] bad op client=%s room_id=%s err=%v", c.id, c.room.roomID, err)
			continue
		}
		c.room.apply(op)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
