package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/walkmap/pkg/location"
	"github.com/rubiojr/walkmap/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// relayClient is one subscribed WebSocket connection.
type relayClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// locationRelay keeps the last live fix and fans every new one out to
// WebSocket subscribers. Fixes arrive by POST, from any subscriber that
// writes one, or from a local provider.
type locationRelay struct {
	mu      sync.RWMutex
	last    location.Fix
	valid   bool
	clients map[string]*relayClient
	now     func() time.Time
}

func newLocationRelay() *locationRelay {
	return &locationRelay{
		clients: make(map[string]*relayClient),
		now:     time.Now,
	}
}

// Publish records f and broadcasts it. Implausible fixes are rejected.
func (rl *locationRelay) Publish(f location.Fix) bool {
	if !f.Position().Valid() {
		return false
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = rl.now().UTC()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return false
	}

	rl.mu.Lock()
	rl.last, rl.valid = f, true
	clients := make([]*relayClient, 0, len(rl.clients))
	for _, c := range rl.clients {
		clients = append(clients, c)
	}
	rl.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}
	return true
}

// enqueue queues data for the client's writer without blocking. A full
// queue drops the frame.
func (c *relayClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		logger.Debug("relay: client %s is slow, dropping fix", c.id)
		return false
	}
}

// subscribe registers c and queues the last fix for it.
func (rl *locationRelay) subscribe(c *relayClient) int {
	rl.mu.Lock()
	rl.clients[c.id] = c
	n := len(rl.clients)
	last, valid := rl.last, rl.valid
	rl.mu.Unlock()

	if valid {
		if data, err := json.Marshal(last); err == nil {
			c.enqueue(data)
		}
	}
	return n
}

// Last returns the most recent fix.
func (rl *locationRelay) Last() (location.Fix, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.last, rl.valid
}

// Subscribers is the number of connected clients.
func (rl *locationRelay) Subscribers() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

// handleGetLocation returns the last fix, or 204 when there is none yet.
func (rl *locationRelay) handleGetLocation(w http.ResponseWriter, _ *http.Request) {
	f, ok := rl.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handlePostLocation accepts a pushed fix.
func (rl *locationRelay) handlePostLocation(w http.ResponseWriter, r *http.Request) {
	var f location.Fix
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fix")
		return
	}
	if !rl.Publish(f) {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleWS subscribes a client. The last fix is sent immediately; frames
// the client writes are published like POSTed fixes.
func (rl *locationRelay) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("relay: websocket upgrade error: %v", err)
		return
	}
	c := &relayClient{id: uuid.New().String(), conn: conn, send: make(chan []byte, 16)}

	n := rl.subscribe(c)
	logger.Debug("relay: client %s connected (total: %d)", c.id, n)

	done := make(chan struct{})
	go rl.writeLoop(c, done)

	defer func() {
		rl.mu.Lock()
		delete(rl.clients, c.id)
		rl.mu.Unlock()
		close(done)
		conn.Close()
		logger.Debug("relay: client %s disconnected", c.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f location.Fix
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debug("relay: bad frame from %s: %v", c.id, err)
			continue
		}
		rl.Publish(f)
	}
}

func (rl *locationRelay) writeLoop(c *relayClient, done <-chan struct{}) {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
