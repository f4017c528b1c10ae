package session

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"survivor-arena/internal/game"
)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Stop)
	return m
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t, nil)
	s, err := m.Create(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.ID) != 16 {
		t.Errorf("id %q should be 16 hex chars", s.ID)
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}

	var snap game.GameSnapshot
	s.Snapshot(&snap)
	if snap.Camera.PhysicalWidth != 1280 || snap.Camera.PhysicalHeight != 720 {
		t.Errorf("default size = %vx%v, want 1280x720", snap.Camera.PhysicalWidth, snap.Camera.PhysicalHeight)
	}
	if snap.RunID != s.ID {
		t.Errorf("run id = %q, want session id", snap.RunID)
	}
}

func TestManagerLimit(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxSessions = 2 })

	first, _ := m.Create(800, 600)
	if _, err := m.Create(800, 600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(800, 600); !errors.Is(err, ErrSessionLimit) {
		t.Fatalf("third create err = %v, want ErrSessionLimit", err)
	}

	if err := m.Remove(first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(800, 600); err != nil {
		t.Errorf("create after remove: %v", err)
	}
}

func TestManagerNotFound(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if err := m.Remove("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Remove err = %v", err)
	}
}

func TestManagerReapsIdleSessions(t *testing.T) {
	var mu sync.Mutex
	var counts []int
	m := newTestManager(t, func(c *Config) {
		c.IdleTimeout = time.Minute
		c.Hooks.OnSessionCount = func(n int) {
			mu.Lock()
			counts = append(counts, n)
			mu.Unlock()
		}
	})

	idle, _ := m.Create(800, 600)
	active, _ := m.Create(800, 600)
	idle.lastActive.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	active.Touch()

	if n := m.reapIdle(time.Now()); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if _, err := m.Get(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session should be gone")
	}
	if _, err := m.Get(active.ID); err != nil {
		t.Error("active session should survive")
	}

	select {
	case <-idle.Done():
	case <-time.After(2 * time.Second):
		t.Error("reaped session's tick loop did not exit")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 3 || counts[2] != 1 {
		t.Errorf("session count reports = %v, want [1 2 1]", counts)
	}
}

func TestManagerRunLoopAdvances(t *testing.T) {
	m := newTestManager(t, nil)
	s, _ := m.Create(800, 600)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var snap game.GameSnapshot
	for time.Now().Before(deadline) {
		s.Snapshot(&snap)
		if snap.TickNumber > 0 && snap.Elapsed > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("run did not advance: tick=%d elapsed=%v", snap.TickNumber, snap.Elapsed)
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t, nil)
	a, _ := m.Create(800, 600)
	m.Create(800, 600)
	a.Start()

	stats := m.Stats()
	byState := stats["byState"].(map[string]int)
	if stats["sessions"] != 2 || byState["playing"] != 1 || byState["start"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestManagerStopStopsSessions(t *testing.T) {
	m := NewManager(testConfig())
	m.Start()
	s, _ := m.Create(800, 600)
	m.Stop()

	if m.Count() != 0 {
		t.Errorf("count after stop = %d", m.Count())
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Error("session loop still running after manager stop")
	}
}

func TestManagerIsolatesFaultedSession(t *testing.T) {
	m := newTestManager(t, nil)
	bad, _ := m.Create(800, 600)
	good, _ := m.Create(800, 600)
	bad.Start()
	good.Start()
	events, _ := bad.Subscribe()

	bad.mu.Lock()
	bad.step = func(*game.Engine, float64, game.Vec2) { panic("corrupt world") }
	bad.mu.Unlock()

	select {
	case <-bad.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("faulted session's tick loop did not exit")
	}

	sawFault := false
	for ev := range events {
		if ev.Type == game.EventTypeFault {
			sawFault = true
		}
	}
	if !sawFault {
		t.Error("subscriber never saw the fault event")
	}
	if _, err := m.Get(bad.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("faulted session should be evicted")
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}

	var before, after game.GameSnapshot
	good.Snapshot(&before)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		good.Snapshot(&after)
		if after.TickNumber > before.TickNumber {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("healthy session stopped ticking at %d", after.TickNumber)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestManagerCreateIDFailures(t *testing.T) {
	defer func(r io.Reader) { randReader = r }(randReader)
	m := newTestManager(t, nil)

	randReader = failingReader{}
	if _, err := m.Create(800, 600); err == nil || !strings.Contains(err.Error(), "entropy exhausted") {
		t.Errorf("create with broken entropy err = %v", err)
	}

	randReader = zeroReader{}
	if _, err := m.Create(800, 600); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := m.Create(800, 600); err == nil {
		t.Error("colliding ids should fail instead of looping")
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}
