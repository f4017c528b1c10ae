package api

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"survivor-arena/internal/game"
	"survivor-arena/internal/session"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 4096
	wsErrorBacklog = 8
)

// clientMessage is a command sent by the browser. Type selects which of the
// embedded forms is read.
type clientMessage struct {
	Type string `json:"type"` // "input", "start", "upgrade", "resize"
	inputRequest
	upgradeRequest
	sizeRequest
}

// serverMessage is every frame the server pushes.
type serverMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsClient tracks a WebSocket connection with its source IP and run
type wsClient struct {
	conn      *websocket.Conn
	ip        string
	sessionID string
}

// WebSocketHub tracks every realtime connection with DoS protection.
// Each connection is bound to one run: it receives that run's snapshots at
// the broadcast rate and its events as they happen, and sends commands back.
type WebSocketHub struct {
	clients map[*websocket.Conn]*wsClient
	mu      sync.RWMutex

	upgrader          websocket.Upgrader
	broadcastInterval time.Duration

	// Connection limiting per IP
	conns *connectionCounter
}

// NewWebSocketHub creates a hub that pushes snapshots broadcastRate times
// per second and accepts browser origins matched by origins.
func NewWebSocketHub(origins *OriginChecker, broadcastRate int) *WebSocketHub {
	if broadcastRate <= 0 {
		broadcastRate = 30
	}
	h := &WebSocketHub{
		clients:           make(map[*websocket.Conn]*wsClient),
		broadcastInterval: time.Second / time.Duration(broadcastRate),
		conns:             newConnectionCounter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins == nil || origins.Allowed(origin) {
				return true
			}

			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns connection counters for monitoring.
func (h *WebSocketHub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":  h.ClientCount(),
		"rejected": h.conns.rejected.Load(),
	}
}

// CloseAll disconnects every client.
func (h *WebSocketHub) CloseAll() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.conn] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("📱 Client connected to %s from %s (%d total)", c.sessionID, c.ip, count)
	UpdateWSConnections(count)
}

func (h *WebSocketHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		// Release the connection slot for this IP
		h.conns.release(client.ip)
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	if ok {
		log.Printf("📱 Client disconnected (%d remaining)", count)
		UpdateWSConnections(count)
	}
}

// HandleSession upgrades the request and binds the connection to s.
// Client commands spend from the session's budget in limiter.
func (h *WebSocketHub) HandleSession(w http.ResponseWriter, r *http.Request, s *session.Session, limiter *RateLimiter) {
	// Get client IP for rate limiting
	ip := GetClientIP(r)

	// Check total connection limit
	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.conns.acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.release(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	client := &wsClient{conn: conn, ip: ip, sessionID: s.ID}
	h.register(client)

	events, unsubscribe := s.Subscribe()
	errs := make(chan string, wsErrorBacklog)
	done := make(chan struct{})

	go h.writeLoop(client, s, events, errs, done)

	// Read commands from the client until it disconnects
	go func() {
		defer func() {
			close(done)
			unsubscribe()
			h.unregister(conn)
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if limiter != nil && !limiter.AllowCommand(s.ID) {
				RecordConnectionRejected("command_rate")
				select {
				case errs <- "rate limited":
				default:
				}
				continue
			}
			if msg := h.safeHandleMessage(s, data); msg != "" {
				select {
				case errs <- msg:
				default:
				}
			}
		}
	}()
}

// safeHandleMessage keeps a panicking command from taking down the process.
// The connection stays open; a panic inside the engine has already stopped
// the run, which closes the connection through its event channel.
func (h *WebSocketHub) safeHandleMessage(s *session.Session, data []byte) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("💥 WebSocket command for %s panicked: %v\n%s", s.ID, r, debug.Stack())
			reply = "internal error"
		}
	}()
	return h.handleMessage(s, data)
}

// handleMessage applies one client command and returns an error message for
// the client, or "" on success.
func (h *WebSocketHub) handleMessage(s *session.Session, data []byte) string {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "invalid message"
	}

	s.Touch()
	switch msg.Type {
	case "input":
		applyInput(s, msg.inputRequest)
	case "start":
		if err := s.Start(); err != nil {
			return err.Error()
		}
	case "upgrade":
		if err := s.SelectUpgrade(msg.upgradeRequest.ID, msg.upgradeRequest.Kind); err != nil {
			return err.Error()
		}
	case "resize":
		if msg.Width <= 0 || msg.Height <= 0 {
			return "positive width and height are required"
		}
		s.Resize(msg.Width, msg.Height)
	default:
		return "unknown message type: " + msg.Type
	}
	return ""
}

// writeLoop is the only writer on the connection: snapshots on a ticker,
// events as they arrive, and command errors.
func (h *WebSocketHub) writeLoop(c *wsClient, s *session.Session, events <-chan game.Event, errs <-chan string, done <-chan struct{}) {
	ticker := time.NewTicker(h.broadcastInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	var snap game.GameSnapshot
	var lastSeq uint64

	for {
		var msg serverMessage
		select {
		case <-done:
			return

		case <-ticker.C:
			if !s.Snapshot(&snap) || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			s.Touch()
			msg = serverMessage{Event: "snapshot", Data: &snap}

		case ev, ok := <-events:
			if !ok {
				// Run was stopped (removed or reaped)
				c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			msg = serverMessage{Event: ev.Type.String(), Data: ev}

		case text := <-errs:
			msg = serverMessage{Event: "error", Data: map[string]string{"error": text}}
		}

		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
		IncrementWSMessages()
	}
}
