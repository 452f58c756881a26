package server

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkazlausk/collabsync/internal/coord"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendQueueSize  = 64
)

// Client is one WebSocket connection. All writes go through the send
// channel so only the write pump touches the connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID string
	send   chan []byte
}

func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		// Slow consumer. Dropping the connection beats blocking the room.
		c.hub.logger.Warn("send queue full, closing connection", "conn_id", c.connID)
		c.conn.Close()
	}
}

func (c *Client) sendMessage(msg coord.Message) {
	data, err := marshalMessage(msg)
	if err != nil {
		c.hub.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("read error", "conn_id", c.connID, "error", err)
			}
			return
		}
		c.hub.dispatch(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
