package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"survivor-arena/internal/api"
	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/session"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Helpers
// ============================================================================

func newTestServer(t *testing.T, withHub bool) (*httptest.Server, *session.Manager) {
	t.Helper()
	m := session.NewManager(session.Config{MaxSessions: 4})
	t.Cleanup(m.Stop)

	cfg := api.RouterConfig{
		Sessions: m,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000, // High limit for tests
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	}
	if withHub {
		hub := api.NewWebSocketHub(api.NewOriginChecker([]string{"http://localhost:*"}), 60)
		t.Cleanup(hub.CloseAll)
		cfg.Hub = hub
	}

	ts := httptest.NewServer(api.NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts, m
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func createSession(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Header.Get("Location") != "/api/sessions/"+result["id"] {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
	return result["id"]
}

func getSnapshot(t *testing.T, ts *httptest.Server, id string) game.GameSnapshot {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap game.GameSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snap
}

// ============================================================================
// Router Purity Tests
// ============================================================================

// TestNewRouterHasNoSideEffects verifies that building the router starts no runs.
func TestNewRouterHasNoSideEffects(t *testing.T) {
	m := session.NewManager(session.Config{})
	router := api.NewRouter(api.RouterConfig{
		Sessions: m,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
	if m.Count() != 0 {
		t.Errorf("Router construction created %d sessions", m.Count())
	}
}

// ============================================================================
// Session Endpoint Tests
// ============================================================================

func TestAPICreateAndGetSession(t *testing.T) {
	ts, _ := newTestServer(t, false)

	id := createSession(t, ts, `{"width": 360, "height": 640}`)
	snap := getSnapshot(t, ts, id)

	if snap.RunID != id {
		t.Errorf("runId = %q, want %q", snap.RunID, id)
	}
	if snap.State != "start" {
		t.Errorf("state = %q, want start", snap.State)
	}
	if snap.Camera.PhysicalWidth != 360 || snap.Camera.PhysicalHeight != 640 {
		t.Errorf("physical size = %vx%v", snap.Camera.PhysicalWidth, snap.Camera.PhysicalHeight)
	}
}

func TestAPICreateWithoutBody(t *testing.T) {
	ts, _ := newTestServer(t, false)

	id := createSession(t, ts, "")
	snap := getSnapshot(t, ts, id)
	if snap.Camera.PhysicalWidth != 1280 || snap.Camera.PhysicalHeight != 720 {
		t.Errorf("default size = %vx%v", snap.Camera.PhysicalWidth, snap.Camera.PhysicalHeight)
	}
}

func TestAPISessionLimit(t *testing.T) {
	ts, _ := newTestServer(t, false)

	for i := 0; i < 4; i++ {
		createSession(t, ts, "")
	}
	resp := postJSON(t, ts.URL+"/api/sessions", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestAPIStartAndConflict(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, "")

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/start", "")
	var result map[string]string
	json.NewDecoder(resp.Body).Decode(&result)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if result["state"] != "playing" {
		t.Errorf("state = %q, want playing", result["state"])
	}

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/start", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Second start: expected 409, got %d", resp.StatusCode)
	}
}

func TestAPIInputForms(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, "")

	tests := []struct {
		name string
		body string
	}{
		{"keys", `{"right": true}`},
		{"vector", `{"x": 0.5, "y": -0.5}`},
		{"pointer", `{"pointerX": 900, "pointerY": 300}`},
		{"release", `{"release": true}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/input", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("Expected 204, got %d", resp.StatusCode)
			}
		})
	}
}

func TestAPIInputMovesPlayer(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, "")

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/start", "")
	resp.Body.Close()
	startX := getSnapshot(t, ts, id).Player.X

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/input", `{"right": true}`)
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if getSnapshot(t, ts, id).Player.X > startX+5 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("player did not move right")
}

func TestAPIValidation(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, "")

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"invalid input json", "/input", `{invalid}`, http.StatusBadRequest},
		{"upgrade without id", "/upgrade", `{}`, http.StatusBadRequest},
		{"upgrade outside level-up", "/upgrade", `{"id": "knife", "kind": "weapon"}`, http.StatusConflict},
		{"resize without size", "/resize", `{}`, http.StatusBadRequest},
		{"resize negative", "/resize", `{"width": -1, "height": 200}`, http.StatusBadRequest},
		{"resize ok", "/resize", `{"width": 720, "height": 1280}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/sessions/"+id+tt.path, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestAPIResizeChangesView(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, "")

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/resize", `{"width": 720, "height": 1280}`)
	resp.Body.Close()

	snap := getSnapshot(t, ts, id)
	if snap.Camera.PhysicalWidth != 720 || snap.Camera.PhysicalHeight != 1280 {
		t.Errorf("physical size = %vx%v", snap.Camera.PhysicalWidth, snap.Camera.PhysicalHeight)
	}
	if snap.Camera.ViewWidth >= snap.Camera.ViewHeight {
		t.Errorf("portrait view expected, got %vx%v", snap.Camera.ViewWidth, snap.Camera.ViewHeight)
	}
}

func TestAPIUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, false)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/sessions/missing"},
		{http.MethodDelete, "/api/sessions/missing"},
		{http.MethodPost, "/api/sessions/missing/start"},
		{http.MethodPost, "/api/sessions/missing/input"},
		{http.MethodGet, "/api/sessions/missing/frame.png"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("Expected 404, got %d", resp.StatusCode)
			}
		})
	}
}

func TestAPIDeleteSession(t *testing.T) {
	ts, m := newTestServer(t, false)
	id := createSession(t, ts, "")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after delete", m.Count())
	}

	resp, err = http.Get(ts.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestAPIFramePNG(t *testing.T) {
	ts, _ := newTestServer(t, false)
	id := createSession(t, ts, `{"width": 320, "height": 240}`)

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Body is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("frame %dx%d, want 320x240", b.Dx(), b.Dy())
	}
}

// ============================================================================
// Info Endpoint Tests
// ============================================================================

func TestAPIGetBalance(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/balance")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result) == 0 {
		t.Error("Expected balance tables")
	}
}

func TestAPIGetStats(t *testing.T) {
	ts, _ := newTestServer(t, true)
	createSession(t, ts, "")

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Sessions struct {
			Sessions    int            `json:"sessions"`
			MaxSessions int            `json:"maxSessions"`
			ByState     map[string]int `json:"byState"`
		} `json:"sessions"`
		RateLimit map[string]uint64 `json:"rateLimit"`
		WebSocket *struct {
			Clients  int    `json:"clients"`
			Rejected uint64 `json:"rejected"`
		} `json:"websocket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Sessions.Sessions != 1 || result.Sessions.MaxSessions != 4 {
		t.Errorf("sessions = %+v", result.Sessions)
	}
	if result.Sessions.ByState["start"] != 1 {
		t.Errorf("byState = %v", result.Sessions.ByState)
	}
	if result.RateLimit["allowed"] == 0 {
		t.Error("rate limiter should have counted requests")
	}
	if result.WebSocket == nil || result.WebSocket.Clients != 0 {
		t.Errorf("websocket = %+v", result.WebSocket)
	}
}

// ============================================================================
// Rate Limiting and Origin Tests
// ============================================================================

func TestRateLimiterRejectsBurst(t *testing.T) {
	m := session.NewManager(session.Config{})
	router := api.NewRouter(api.RouterConfig{
		Sessions: m,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestOriginChecker(t *testing.T) {
	oc := api.NewOriginChecker([]string{"http://localhost:*", "https://arena.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://arena.example.com", true},
		{"https://arena.example.com:8443", false},
		{"http://localhost.evil.com", false},
		{"https://evil.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := oc.Allowed(tt.origin); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}

	if !api.NewOriginChecker([]string{"*"}).Allowed("https://anything.example") {
		t.Error("wildcard should allow every origin")
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialSession(t *testing.T, ts *httptest.Server, id string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

// readUntil reads messages until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func TestWebSocketSnapshotsAndCommands(t *testing.T) {
	ts, _ := newTestServer(t, true)
	id := createSession(t, ts, "")

	conn, _, err := dialSession(t, ts, id, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	msg := readUntil(t, conn, "snapshot")
	var snap game.GameSnapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.RunID != id {
		t.Errorf("runId = %q, want %q", snap.RunID, id)
	}

	if err := conn.WriteJSON(map[string]string{"type": "start"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	readUntil(t, conn, "run_started")

	if err := conn.WriteJSON(map[string]string{"type": "upgrade", "id": "knife", "kind": "weapon"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	readUntil(t, conn, "error")

	if err := conn.WriteJSON(map[string]string{"type": "dance"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	readUntil(t, conn, "error")
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	ts, _ := newTestServer(t, true)
	id := createSession(t, ts, "")

	header := http.Header{}
	header.Set("Origin", "https://evil.com")
	conn, resp, err := dialSession(t, ts, id, header)
	if err == nil {
		conn.Close()
		t.Fatal("Dial should fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

func TestWebSocketClosedWhenSessionRemoved(t *testing.T) {
	ts, m := newTestServer(t, true)
	id := createSession(t, ts, "")

	conn, _, err := dialSession(t, ts, id, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, "snapshot")

	if err := m.Remove(id); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("expected going-away close, got %v", err)
			}
			return
		}
	}
}

func TestCommandBudgetIsPerSession(t *testing.T) {
	m := session.NewManager(session.Config{MaxSessions: 4})
	defer m.Stop()
	router := api.NewRouter(api.RouterConfig{
		Sessions: m,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CommandsPerSecond: 0.001,
			CommandBurst:      2,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	a := createSession(t, ts, "")
	b := createSession(t, ts, "")

	var codes []int
	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/api/sessions/"+a+"/input", `{"right": true}`)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [204 204 429]", codes)
	}

	resp := postJSON(t, ts.URL+"/api/sessions/"+b+"/resize", `{"width": 800, "height": 600}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("other session's command = %d, want 204", resp.StatusCode)
	}

	// Reads and lifecycle routes are not commands
	getSnapshot(t, ts, a)
	resp = postJSON(t, ts.URL+"/api/sessions/"+a+"/start", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("start = %d, want 200", resp.StatusCode)
	}
}

func TestWebSocketCommandsShareSessionBudget(t *testing.T) {
	m := session.NewManager(session.Config{MaxSessions: 4})
	defer m.Stop()
	hub := api.NewWebSocketHub(nil, 60)
	defer hub.CloseAll()
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Sessions: m,
		Hub:      hub,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CommandsPerSecond: 0.001,
			CommandBurst:      1,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	}))
	defer ts.Close()

	id := createSession(t, ts, "")
	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/input", `{"right": true}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("input = %d, want 204", resp.StatusCode)
	}

	conn, _, err := dialSession(t, ts, id, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"type": "input", "left": true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	msg := readUntil(t, conn, "error")
	if !strings.Contains(string(msg.Data), "rate limited") {
		t.Errorf("error = %s, want rate limited", msg.Data)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		want      string
	}{
		{"peer address", "", "", "192.0.2.1"},
		{"first forwarded hop", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"junk forwarded header", "not-an-ip", "", "192.0.2.1"},
		{"real ip header", "", " 198.51.100.4 ", "198.51.100.4"},
		{"junk real ip header", "", "x", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "192.0.2.1:4321"
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := api.GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerShutdownWhileStarting(t *testing.T) {
	m := session.NewManager(session.Config{})
	defer m.Stop()
	srv := api.NewServer(m, nil, nil, config.Load())

	errc := make(chan error, 1)
	go func() { errc <- srv.Start("127.0.0.1:0") }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start returned %v after shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
