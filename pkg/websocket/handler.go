package websocket

import (
	"log"

	"fleetrecon/internal/models"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	hub *Hub
}

func NewHandler() *Handler {
	hub := NewHub()
	go hub.Run()

	return &Handler{
		hub: hub,
	}
}

// HandleProgressSocket upgrades the connection and subscribes the client
// to its session's progress room.
func (h *Handler) HandleProgressSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(400, gin.H{"error": "Missing session ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, sessionID)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// PublishProgress implements the ingest service's progress sink.
func (h *Handler) PublishProgress(sessionID string, event *models.ProgressEvent) {
	message := Message{
		Type:      "ingest_progress",
		RoomID:    sessionRoom(sessionID),
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"phase":     event.Phase,
			"total":     event.Total,
			"processed": event.Processed,
			"percent":   event.Percent,
			"message":   event.Message,
		},
	}

	h.hub.SendToSession(sessionID, message)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
