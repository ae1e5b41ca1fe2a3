package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub fans ingest progress out to the clients watching a session. Delivery
// is fire-and-forget: a slow or absent listener never blocks the ingest
// pipeline, and missed events are not retried.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true

	// Each client watches exactly one session's progress stream.
	h.joinRoom(client, sessionRoom(client.SessionID))

	welcomeMsg := Message{
		Type:      "connected",
		SessionID: client.SessionID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Watching session progress",
		},
	}

	h.sendToClient(client, welcomeMsg)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		for roomID, room := range h.rooms {
			if _, exists := room[client]; exists {
				delete(room, client)
				if len(room) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}
	}
}

func (h *Hub) broadcastMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.RoomID != "" {
		h.sendToRoom(msg.RoomID, msg)
	}
}

// sendToRoom is called from request goroutines, so it only reads the maps
// under RLock. Slow clients are handed to the hub loop via the unregister
// channel; the loop is the single owner of map mutation and channel close,
// which keeps concurrent publishers from racing each other.
func (h *Hub) sendToRoom(roomID string, message Message) {
	h.mutex.RLock()
	room, exists := h.rooms[roomID]
	if !exists {
		h.mutex.RUnlock()
		return
	}

	data, _ := json.Marshal(message)
	var slow []*Client
	for client := range room {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.unregister <- client
	}
}

// sendToClient drops the message when the client's buffer is full; the
// read pump notices a dead connection and unregisters it.
func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
	}
}

// SendToSession broadcasts a message to every client watching sessionID.
func (h *Hub) SendToSession(sessionID string, message Message) {
	message.SessionID = sessionID
	h.sendToRoom(sessionRoom(sessionID), message)
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func sessionRoom(sessionID string) string {
	return "session_" + sessionID
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
