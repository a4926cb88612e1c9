/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package signaling

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duocall/relay_core/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser clients are served from a different origin in every
	// deployment, so origin filtering happens upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	client *Client
	msg    Message
}

// Hub owns every websocket connection and runs the single goroutine that
// serializes all signaling, registry, and orchestration work. Handlers and
// dispatched tasks never run concurrently with each other.
type Hub struct {
	logger *utils.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	tasks      chan func()

	// done is closed when Run returns; connection goroutines select on it
	// so they never block handing a dead hub their teardown.
	done chan struct{}

	// onMessage is invoked on the hub loop for every inbound event.
	onMessage func(participantID string, msg Message)

	// onConnect/onDisconnect are invoked on the hub loop when a
	// participant's connection is accepted / torn down.
	onConnect    func(participantID string)
	onDisconnect func(participantID string)
}

// NewHub creates a hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		logger:     logger.With("hub"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, 256),
		tasks:      make(chan func(), 256),
		done:       make(chan struct{}),
	}
}

// OnMessage sets the inbound event handler. Must be called before Run.
func (h *Hub) OnMessage(handler func(participantID string, msg Message)) {
	h.onMessage = handler
}

// OnConnect sets the connection-accepted handler. Must be called before Run.
func (h *Hub) OnConnect(handler func(participantID string)) {
	h.onConnect = handler
}

// OnDisconnect sets the disconnect handler. Must be called before Run.
func (h *Hub) OnDisconnect(handler func(participantID string)) {
	h.onDisconnect = handler
}

// Run drives the event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			h.logger.Info("client %s connected (%d total)", client.id, len(h.clients))
			if h.onConnect != nil {
				h.onConnect(client.id)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; !ok {
				continue
			}
			delete(h.clients, client.id)
			close(client.send)
			h.logger.Info("client %s disconnected (%d total)", client.id, len(h.clients))
			if h.onDisconnect != nil {
				h.onDisconnect(client.id)
			}

		case in := <-h.inbound:
			if h.onMessage != nil {
				h.onMessage(in.client.id, in.msg)
			}

		case task := <-h.tasks:
			task()

		case <-ctx.Done():
			for _, client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			h.clients = make(map[string]*Client)
			close(h.done)
			return
		}
	}
}

// Dispatch posts a task onto the hub loop. Pipeline goroutines use this to
// get their frame callbacks and initialization completions back onto the
// single-threaded loop. Tasks posted after shutdown are dropped.
func (h *Hub) Dispatch(task func()) {
	select {
	case h.tasks <- task:
	case <-h.done:
	}
}

// release hands a client's teardown to the hub loop, or discards it when
// the loop has already exited.
func (h *Hub) release(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendTo marshals and queues an event for one participant. Unknown ids are
// dropped: the participant may have disconnected already. Must only be
// called from the hub loop.
func (h *Hub) SendTo(participantID string, event string, data interface{}) {
	client, ok := h.clients[participantID]
	if !ok {
		h.logger.Debug("send %s: client %s gone, dropped", event, participantID)
		return
	}

	msg := Message{Event: event}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			h.logger.Error("marshal %s event: %v", event, err)
			return
		}
		msg.Data = encoded
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal %s envelope: %v", event, err)
		return
	}
	client.enqueue(raw)
}

// ServeWS upgrades an HTTP request into a participant connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		logger: h.logger,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
