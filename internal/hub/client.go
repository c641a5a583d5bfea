package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studyhive/realtime-service/pkg/log"
)

// Config holds per-connection websocket settings.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Client is one websocket connection bound to an authenticated user.
type Client struct {
	ID       string
	UserID   int64
	Nickname string
	Role     string

	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	cfg Config
}

// NewClient wraps an upgraded connection.
func NewClient(id string, userID int64, nickname, role string, h *Hub, conn *websocket.Conn, cfg Config) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Nickname: nickname,
		Role:     role,
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		cfg:      cfg,
	}
}

// ReadPump reads inbound frames and hands them to handler. It exits on
// any read error and unregisters the client.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the Send channel onto the connection and keeps the
// transport alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
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
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a payload for this client. Slow consumers drop the
// frame rather than block the caller.
func (c *Client) SendMessage(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
