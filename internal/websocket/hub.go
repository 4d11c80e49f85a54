package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/engageflow/backend/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope for activity-feed pushes.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one websocket subscriber, pinned to a workspace.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	workspaceID string
}

// Hub fans AutomationLog activity out to the subscribers of each
// workspace. The authoring UI uses it to show in-flight and completed
// dispatches without polling.
type Hub struct {
	clients    map[*Client]bool
	workspaces map[string][]*Client
	broadcast  chan *broadcastMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type broadcastMessage struct {
	workspaceID string
	msgType     string
	payload     interface{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		workspaces: make(map[string][]*Client),
		broadcast:  make(chan *broadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the Hub main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.workspaces[client.workspaceID] = append(h.workspaces[client.workspaceID], client)
			h.mu.Unlock()
			logger.Debug().Str("workspace_id", client.workspaceID).Msg("Activity feed client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			logger.Debug().Str("workspace_id", client.workspaceID).Msg("Activity feed client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *broadcastMessage) {
	data, err := json.Marshal(Message{
		Type:    msg.msgType,
		Payload: msg.payload,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal activity message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// remove mutates the workspace slice, so walk a snapshot.
	subscribers := append([]*Client(nil), h.workspaces[msg.workspaceID]...)
	for _, client := range subscribers {
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the connection rather than block the hub.
			h.remove(client)
		}
	}
}

// remove detaches a client from both maps and closes its send channel.
// Idempotent so a slow-consumer drop and the readLoop unregister can race.
// Caller must hold h.mu.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	clients := h.workspaces[client.workspaceID]
	for i, c := range clients {
		if c == client {
			h.workspaces[client.workspaceID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.workspaces[client.workspaceID]) == 0 {
		delete(h.workspaces, client.workspaceID)
	}
}

// BroadcastLog pushes an AutomationLog create or status transition to the
// owning workspace's subscribers.
func (h *Hub) BroadcastLog(workspaceID, msgType string, payload interface{}) {
	select {
	case h.broadcast <- &broadcastMessage{workspaceID: workspaceID, msgType: msgType, payload: payload}:
	default:
	}
}

// ServeWs upgrades an HTTP request into an activity-feed subscription for
// the given workspace.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, workspaceID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 64),
		workspaceID: workspaceID,
	}
	hub.register <- client

	go client.writeLoop()
	go client.readLoop()
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		// The feed is push-only; reads just detect disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
