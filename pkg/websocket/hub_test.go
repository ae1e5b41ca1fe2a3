package websocket

import (
	"sync"
	"testing"
	"time"
)

func newTestClient(h *Hub, sessionID string, buffer int) *Client {
	return &Client{
		hub:       h,
		send:      make(chan []byte, buffer),
		SessionID: sessionID,
		rooms:     make(map[string]bool),
	}
}

func progressFrame(sessionID string) Message {
	return Message{
		Type:      "ingest_progress",
		RoomID:    sessionRoom(sessionID),
		Timestamp: getCurrentTimestamp(),
		Data:      map[string]interface{}{"percent": 50},
	}
}

func TestSendToSessionWithoutListeners(t *testing.T) {
	h := NewHub()
	go h.Run()

	done := make(chan struct{})
	go func() {
		h.SendToSession("session-1", progressFrame("session-1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish to a session with no listeners blocked")
	}
}

// Concurrent ingest calls publish into the hub from separate request
// goroutines. A slow listener must be dropped through the hub loop without
// stalling the publishers or corrupting the room maps.
func TestSendToSessionConcurrentPublishersDropSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	fast := newTestClient(h, "session-1", 256)
	slow := newTestClient(h, "session-1", 1)
	h.register <- fast
	h.register <- slow

	// The welcome frame fills the slow client's one-slot buffer, so every
	// published frame overflows it.
	const publishers = 4
	const frames = 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < frames; j++ {
				h.SendToSession("session-1", progressFrame("session-1"))
			}
		}()
	}
	wg.Wait()

	drainUntilClosed := func(c *Client) bool {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-c.send:
				if !ok {
					return true
				}
			case <-deadline:
				return false
			}
		}
	}
	if !drainUntilClosed(slow) {
		t.Fatal("slow client was never unregistered")
	}

	h.mutex.RLock()
	_, fastRegistered := h.clients[fast]
	_, slowRegistered := h.clients[slow]
	h.mutex.RUnlock()
	if !fastRegistered {
		t.Error("fast client was dropped")
	}
	if slowRegistered {
		t.Error("slow client is still registered")
	}

	want := 1 + publishers*frames
	if got := len(fast.send); got != want {
		t.Errorf("fast client holds %d frames, want %d", got, want)
	}
}
