package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"padkeys/internal/dispatch"
	"padkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only binds loopback; the display client runs on the same
	// machine.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting.
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
}

// WebSocketClient represents a connected display or configuration client.
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 64),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	// Relay snapshot revisions to clients. The subscription is lossy by
	// design: a slow hub drops notifications, never frames.
	updates := m.server.publisher.Subscribe()
	defer m.server.publisher.Unsubscribe(updates)

	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: Client connected from %s. Total clients: %d", client.ip, n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: Client disconnected from %s. Total clients: %d", client.ip, n)

		case rev := <-updates:
			// Coalesce: only the newest pending revision matters.
		drain:
			for {
				select {
				case rev = <-updates:
				default:
					break drain
				}
			}
			m.broadcastMessage(protocol.Message{
				Type:    protocol.TypeSnapshot,
				Payload: protocol.SnapshotPayload{Revision: rev},
			})

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	m.register <- client

	go client.writePump()
	go client.readPump()

	// Every new client gets the current status immediately.
	status, _ := json.Marshal(protocol.Message{
		Type:    protocol.TypeStatus,
		Payload: m.server.coordinator.Status(),
	})
	select {
	case client.send <- status:
	default:
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	coord := c.manager.server.coordinator

	switch msg.Type {
	case protocol.TypeSetLayer:
		var payload protocol.SetLayerPayload
		if !decodePayload(msg.Payload, &payload) {
			return
		}
		log.Printf("WS: Set persistent layer %d from %s", payload.Layer, c.ip)
		coord.SetPersistentLayer(payload.Layer)
		c.manager.BroadcastStatus(coord.Status())

	case protocol.TypeSetTyping:
		var payload protocol.SetTypingPayload
		if !decodePayload(msg.Payload, &payload) {
			return
		}
		coord.SetTypingEnabled(payload.Enabled)
		c.manager.BroadcastStatus(coord.Status())

	case protocol.TypeSetEditMode:
		var payload protocol.SetEditModePayload
		if !decodePayload(msg.Payload, &payload) {
			return
		}
		log.Printf("WS: Edit mode %v from %s", payload.Enabled, c.ip)
		coord.SetEditMode(payload.Enabled)

	case protocol.TypeStatus:
		// Client requests a status refresh.
		resp, _ := json.Marshal(protocol.Message{
			Type:    protocol.TypeStatus,
			Payload: coord.Status(),
		})
		select {
		case c.send <- resp:
		default:
		}

	case protocol.TypePing:
		resp, _ := json.Marshal(protocol.Message{Type: protocol.TypePing})
		select {
		case c.send <- resp:
		default:
		}
	}
}

// decodePayload re-marshals the generic payload into a typed struct.
func decodePayload(payload interface{}, out interface{}) bool {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(jsonBytes, out); err != nil {
		log.Printf("WS: Invalid payload: %v", err)
		return false
	}
	return true
}

// BroadcastStatus pushes an engine status update to all clients.
func (m *WSManager) BroadcastStatus(status dispatch.Status) {
	select {
	case m.broadcast <- protocol.Message{Type: protocol.TypeStatus, Payload: status}:
	default:
	}
}

// BroadcastHit pushes a resolved-binding or edit-mode hit to all clients.
func (m *WSManager) BroadcastHit(hit dispatch.Hit, edit bool) {
	msgType := protocol.TypeDebugHit
	if edit {
		msgType = protocol.TypeEditHit
	}
	select {
	case m.broadcast <- protocol.Message{Type: msgType, Payload: hit}:
	default:
	}
}
