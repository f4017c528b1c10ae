package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"survivor-arena/internal/game"
	"survivor-arena/internal/render"
	"survivor-arena/internal/session"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 4096

// sizeRequest carries a physical screen size.
type sizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// inputRequest is one movement command. Exactly one form is used, checked in
// this order: a held pointer, a pointer release, a direct vector, keys.
type inputRequest struct {
	PointerX *float64 `json:"pointerX,omitempty"`
	PointerY *float64 `json:"pointerY,omitempty"`
	Release  bool     `json:"release,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Up       bool     `json:"up,omitempty"`
	Down     bool     `json:"down,omitempty"`
	Left     bool     `json:"left,omitempty"`
	Right    bool     `json:"right,omitempty"`
}

// upgradeRequest picks one of the offered level-up options.
type upgradeRequest struct {
	ID   string           `json:"id"`
	Kind game.UpgradeKind `json:"kind"`
}

// applyInput routes an input command to the session. Shared by REST and WebSocket.
func applyInput(s *session.Session, req inputRequest) {
	switch {
	case req.PointerX != nil && req.PointerY != nil:
		s.SetPointer(*req.PointerX, *req.PointerY)
	case req.Release:
		s.ReleasePointer()
	case req.X != nil || req.Y != nil:
		var v game.Vec2
		if req.X != nil {
			v.X = *req.X
		}
		if req.Y != nil {
			v.Y = *req.Y
		}
		s.SetIntent(v)
	default:
		s.SetKeys(req.Up, req.Down, req.Left, req.Right)
	}
}

func (h *routerHandlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Create(req.Width, req.Height)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+s.ID)
	writeJSONStatus(w, http.StatusCreated, map[string]string{"id": s.ID})
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var snap game.GameSnapshot
	if !s.Snapshot(&snap) {
		writeError(w, "No snapshot yet", http.StatusServiceUnavailable)
		return
	}
	s.Touch()
	writeJSON(w, &snap)
}

func (h *routerHandlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Remove(id); err != nil {
		writeSessionError(w, err)
		return
	}
	h.rateLimiter.ForgetSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Start(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, map[string]string{"state": s.State().String()})
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	applyInput(s, req)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req upgradeRequest
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		writeError(w, "Upgrade id is required", http.StatusBadRequest)
		return
	}
	if err := s.SelectUpgrade(req.ID, req.Kind); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, map[string]string{"state": s.State().String()})
}

func (h *routerHandlers) handleResize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req sizeRequest
	if err := decodeBody(r, &req); err != nil || req.Width <= 0 || req.Height <= 0 {
		writeError(w, "Positive width and height are required", http.StatusBadRequest)
		return
	}
	s.Resize(req.Width, req.Height)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var snap game.GameSnapshot
	if !s.Snapshot(&snap) {
		writeError(w, "No snapshot yet", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.EncodePNG(w, &snap); err != nil {
		log.Printf("❌ Frame render failed for %s: %v", s.ID, err)
		return
	}
	RecordRender(time.Since(start))
}

func (h *routerHandlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.hub.HandleSession(w, r, s, h.rateLimiter)
}

func (h *routerHandlers) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.balance)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"sessions":  h.sessions.Stats(),
		"rateLimit": h.rateLimiter.GetStats(),
	}
	if h.eventLog != nil {
		stats["eventLog"] = h.eventLog.GetStats()
	}
	if h.hub != nil {
		stats["websocket"] = h.hub.Stats()
	}
	writeJSON(w, stats)
}

// lookup resolves the {id} URL parameter, writing a 404 when it is unknown.
func (h *routerHandlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

// Helper functions (package-level for reuse)

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func decodePayload(ev game.Event, v interface{}) error {
	return json.Unmarshal(ev.Payload, v)
}

// writeSessionError maps session and run errors to HTTP status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrSessionLimit):
		writeError(w, "Session limit reached", http.StatusServiceUnavailable)
	case errors.Is(err, session.ErrSessionFaulted):
		writeError(w, "Session faulted", http.StatusGone)
	case errors.Is(err, game.ErrRunInProgress), errors.Is(err, game.ErrNotLevelingUp):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, game.ErrUnknownUpgrade):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("❌ Request failed: %v", err)
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}
