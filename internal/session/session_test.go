package session

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
)

func testConfig() Config {
	return Config{
		Simulation:  config.DefaultSimulation(),
		Viewport:    config.DefaultViewport(),
		Limits:      config.DefaultLimits(),
		MaxSessions: 4,
	}
}

// newTestSession builds a session whose tick loop is driven by the test.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := testConfig()
	engine, err := game.NewEngine(game.Options{
		Limits:    cfg.Limits,
		Reference: cfg.Viewport.ReferenceSize,
		Width:     1280,
		Height:    720,
		Seed:      7,
		RunID:     "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	s := newSession("test", engine, cfg)
	t.Cleanup(s.Stop)
	return s
}

func advance(s *Session, from time.Time, ticks int) time.Time {
	for i := 0; i < ticks; i++ {
		from = from.Add(16 * time.Millisecond)
		s.tick(from)
	}
	return from
}

func TestSessionPublishesBeforeStart(t *testing.T) {
	s := newTestSession(t)
	var snap game.GameSnapshot
	if !s.Snapshot(&snap) {
		t.Fatal("a new session should publish its START state")
	}
	if snap.State != "start" {
		t.Errorf("state = %s, want start", snap.State)
	}
}

func TestSessionTicksOnlyWhilePlaying(t *testing.T) {
	s := newTestSession(t)
	now := advance(s, time.Now(), 3)

	var snap game.GameSnapshot
	s.Snapshot(&snap)
	if snap.TickNumber != 0 {
		t.Fatalf("ticks before start = %d", snap.TickNumber)
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	advance(s, now, 5)
	s.Snapshot(&snap)
	if snap.State != "playing" || snap.TickNumber == 0 {
		t.Errorf("state=%s tick=%d, want a playing run that advanced", snap.State, snap.TickNumber)
	}

	if err := s.Start(); !errors.Is(err, game.ErrRunInProgress) {
		t.Errorf("second Start err = %v, want ErrRunInProgress", err)
	}
}

func TestSessionKeysMovePlayer(t *testing.T) {
	s := newTestSession(t)
	s.Start()
	s.SetKeys(false, false, false, true)
	advance(s, time.Now(), 10)

	var snap game.GameSnapshot
	s.Snapshot(&snap)
	if snap.Player.X <= 0 || math.Abs(snap.Player.Y) > 1e-9 {
		t.Errorf("player at (%v,%v), want moved right", snap.Player.X, snap.Player.Y)
	}
}

func TestSessionPointerSteering(t *testing.T) {
	tests := []struct {
		name     string
		x, y     float64
		wantMove bool
	}{
		{"right of player", 1000, 360, true},
		{"inside dead zone", 650, 365, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			s.Start()
			s.SetPointer(tt.x, tt.y)
			advance(s, time.Now(), 10)

			var snap game.GameSnapshot
			s.Snapshot(&snap)
			moved := snap.Player.X > 0
			if moved != tt.wantMove {
				t.Errorf("player x = %v, moved=%v want %v", snap.Player.X, moved, tt.wantMove)
			}
		})
	}
}

func TestSessionReleasePointerStops(t *testing.T) {
	s := newTestSession(t)
	s.Start()
	s.SetPointer(1000, 360)
	now := advance(s, time.Now(), 5)
	s.ReleasePointer()

	var before, after game.GameSnapshot
	s.Snapshot(&before)
	advance(s, now, 5)
	s.Snapshot(&after)
	if before.Player.X != after.Player.X {
		t.Errorf("player kept moving after release: %v -> %v", before.Player.X, after.Player.X)
	}
}

func TestSessionEventsFanOut(t *testing.T) {
	s := newTestSession(t)
	events, unsubscribe := s.Subscribe()

	var hooked []game.EventType
	s.hooks.OnEvent = func(id string, ev game.Event) {
		if id != "test" {
			t.Errorf("hook session id = %q", id)
		}
		hooked = append(hooked, ev.Type)
	}

	s.Start()
	select {
	case ev := <-events:
		if ev.Type != game.EventTypeRunStarted {
			t.Errorf("first event = %s, want run_started", ev.Type)
		}
	default:
		t.Fatal("subscriber received nothing")
	}
	if len(hooked) != 1 || hooked[0] != game.EventTypeRunStarted {
		t.Errorf("hooked events = %v", hooked)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestSessionStopClosesSubscribers(t *testing.T) {
	s := newTestSession(t)
	events, unsubscribe := s.Subscribe()
	s.Stop()
	if _, ok := <-events; ok {
		t.Error("Stop should close subscriber channels")
	}
	unsubscribe()
}

func TestSessionUpgradeOutsideLevelUp(t *testing.T) {
	s := newTestSession(t)
	s.Start()
	if err := s.SelectUpgrade("knife", game.UpgradeWeapon); !errors.Is(err, game.ErrNotLevelingUp) {
		t.Errorf("err = %v, want ErrNotLevelingUp", err)
	}
}

func TestSessionResizeRepublishes(t *testing.T) {
	s := newTestSession(t)
	s.Resize(360, 640)

	var snap game.GameSnapshot
	s.Snapshot(&snap)
	if snap.Camera.ViewWidth != 720 || snap.Camera.ViewHeight != 1280 {
		t.Errorf("view = %vx%v, want 720x1280", snap.Camera.ViewWidth, snap.Camera.ViewHeight)
	}
}

func TestSessionTickHook(t *testing.T) {
	s := newTestSession(t)
	var ticks int
	s.hooks.OnTick = func(st TickStats) {
		ticks++
		if st.Duration < 0 {
			t.Errorf("negative tick duration %v", st.Duration)
		}
	}
	advance(s, time.Now(), 3)
	if ticks != 3 {
		t.Errorf("OnTick calls = %d, want 3", ticks)
	}
}

func TestSessionTickPanicReturnsFault(t *testing.T) {
	s := newTestSession(t)
	s.Start()
	s.step = func(*game.Engine, float64, game.Vec2) { panic("bad step") }

	if err := s.tick(time.Now().Add(16 * time.Millisecond)); !errors.Is(err, ErrSessionFaulted) {
		t.Fatalf("tick err = %v, want ErrSessionFaulted", err)
	}
	// The engine lock must have been released by the panicking tick.
	s.SetKeys(true, false, false, false)
	if s.State() != game.StatePlaying {
		t.Errorf("state = %s", s.State())
	}
}

func TestSessionCommandPanicFaultsRun(t *testing.T) {
	s := newTestSession(t)
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	var evicted *Session
	s.onFault = func(f *Session) { evicted = f }

	err := s.command(func(*game.Engine) error { panic("bad command") })
	if !errors.Is(err, ErrSessionFaulted) {
		t.Fatalf("command err = %v, want ErrSessionFaulted", err)
	}
	if !s.Faulted() || evicted != s {
		t.Errorf("faulted=%v evicted=%v", s.Faulted(), evicted != nil)
	}

	ev, ok := <-events
	if !ok || ev.Type != game.EventTypeFault {
		t.Fatalf("first event = %v (open=%v), want fault", ev.Type, ok)
	}
	var payload game.FaultPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || !strings.Contains(payload.Error, "bad command") {
		t.Errorf("payload = %s", ev.Payload)
	}
	if _, ok := <-events; ok {
		t.Error("subscriber should be closed after a fault")
	}

	if err := s.Start(); !errors.Is(err, ErrSessionFaulted) {
		t.Errorf("Start after fault err = %v", err)
	}
	s.State()
}
