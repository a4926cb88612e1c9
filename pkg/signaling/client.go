/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package signaling

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duocall/relay_core/pkg/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Offers with many candidates
	// run a few KB; landmark payloads a few tens of KB.
	maxMessageSize = 256 * 1024

	// Outbound queue per connection.
	sendQueueSize = 64
)

// Client is one participant's websocket connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *utils.Logger
}

// ID returns the participant id assigned at accept time.
func (c *Client) ID() string {
	return c.id
}

// readPump reads inbound messages and hands them to the hub. It runs in a
// per-connection goroutine and exits on any read error, unregistering the
// client.
func (c *Client) readPump() {
	defer func() {
		c.hub.release(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("client %s read error: %v", c.id, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("client %s sent malformed message: %v", c.id, err)
			continue
		}

		c.hub.inbound <- inboundMessage{client: c, msg: msg}
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings. It exits when the send channel is closed by the hub.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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

// enqueue queues a raw message, dropping it if the client's queue is full
// (a stalled connection must not block the hub loop).
func (c *Client) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("client %s send queue full, dropping message", c.id)
	}
}
