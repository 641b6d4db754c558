package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Y-Juice/livestream-prototype/internal/config"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// DisconnectHandler is called exactly once when a client disconnects,
// however the connection died.
type DisconnectHandler func(*Client)

// Client represents a connected WebSocket client.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	config            config.WebSocketConfig
	disconnectHandler DisconnectHandler
	disconnectOnce    sync.Once
	closeOnce         sync.Once
}

// NewClient wraps a websocket connection.
func NewClient(id string, h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: h.config,
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// ReadPump pumps messages from the WebSocket connection to the handler.
// Messages from one connection are handled sequentially, which is what
// gives each signaling edge its FIFO guarantee.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	l := log.L()

	defer func() {
		c.fireDisconnect()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l.Error().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket error")
			}
			break
		}
		handler(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals and queues a message for this client.
func (c *Client) SendMessage(message interface{}) {
	c.Hub.SendTo(c.ID, message)
}

func (c *Client) fireDisconnect() {
	c.disconnectOnce.Do(func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
	})
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}
