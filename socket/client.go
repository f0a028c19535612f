package socket

import (
	"net/http"
	"time"

	"marginalia/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The viewer runs on a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected viewer or review screen. The annotation feed is
// one-way: mutations go through the REST API, the socket only delivers
// change events.
type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	DocumentURL string
	UserID      string
	Send        chan []byte
}

// ServeWs upgrades the request and registers the client with the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	docURL := r.URL.Query().Get("documentUrl")
	if docURL == "" {
		logger.Sugar.Error("Missing documentUrl")
		conn.Close()
		return
	}

	client := &Client{
		Hub:         hub,
		Conn:        conn,
		DocumentURL: docURL,
		UserID:      userID,
		Send:        make(chan []byte, 256),
	}

	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		// Inbound frames are discarded; reading only detects disconnects.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Sugar.Warnf("Unexpected close from %s: %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	// Ping every 30s to keep the connection alive and detect drops.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
