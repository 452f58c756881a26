// Package server binds the collaboration coordinator to its transports: a
// WebSocket endpoint for clients, an HTTP surface for health and admin
// inspection, and an outbound webhook notifier for session lifecycle
// events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mkazlausk/collabsync/internal/coord"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the fronting proxy.
		return true
	},
}

// Hub owns all WebSocket connections and the per-session broadcast rooms.
// Protocol decisions live in the coordinator; the hub only decodes frames,
// forwards events, and routes the returned messages.
type Hub struct {
	coordinator *coord.Coordinator
	logger      *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	closed  bool
}

// NewHub creates a hub bound to the given coordinator.
func NewHub(coordinator *coord.Coordinator, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		coordinator: coordinator,
		logger:      logger,
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
	}
}

// HandleWS upgrades an HTTP request and starts the connection's pumps.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		connID: uuid.New().String(),
		send:   make(chan []byte, sendQueueSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Debug("client connected", "conn_id", client.connID, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// dispatch decodes one inbound frame and routes the coordinator's reaction.
func (h *Hub) dispatch(sender *Client, data []byte) {
	ev, err := coord.DecodeEvent(data)
	if err != nil {
		h.logger.Debug("dropping malformed frame", "conn_id", sender.connID, "error", err)
		sender.sendMessage(coord.Message{Type: coord.MsgError, Payload: coord.ErrorPayload{Message: "malformed event"}})
		return
	}

	res := h.coordinator.HandleEvent(context.Background(), sender.connID, ev)
	h.route(sender, res)
}

// disconnect tears a client down and replays its departure through the
// coordinator so rooms learn about it.
func (h *Hub) disconnect(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for _, room := range h.rooms {
		delete(room, client)
	}
	h.mu.Unlock()

	res := h.coordinator.HandleDisconnect(context.Background(), client.connID)
	h.route(client, res)
	close(client.send)

	h.logger.Debug("client disconnected", "conn_id", client.connID)
}

// route applies one coordinator result: join rooms, deliver messages,
// leave rooms, in that order.
func (h *Hub) route(sender *Client, res coord.Result) {
	for _, sessionID := range res.Subscribe {
		h.join(sender, sessionID)
	}

	for _, out := range res.Messages {
		data, err := json.Marshal(out.Message)
		if err != nil {
			h.logger.Error("marshal outbound message", "type", out.Message.Type, "error", err)
			continue
		}

		switch out.Audience {
		case coord.ToSender:
			sender.enqueue(data)
		case coord.ToRoom:
			h.broadcast(out.SessionID, data, nil)
		case coord.ToRoomExceptSender:
			h.broadcast(out.SessionID, data, sender)
		}
	}

	for _, sessionID := range res.Unsubscribe {
		h.leave(sender, sessionID)
	}
}

func (h *Hub) join(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[sessionID] = room
	}
	room[client] = true
}

func (h *Hub) leave(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	if room == nil {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

func (h *Hub) broadcast(sessionID string, data []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[sessionID] {
		if client == except {
			continue
		}
		client.enqueue(data)
	}
}

// Close drops every connection. New upgrades are rejected afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.conn.Close()
	}
}
