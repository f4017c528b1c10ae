// Package session hosts runs: each Session owns one game.Engine and the
// goroutine that ticks it, and the Manager creates, looks up and reaps them.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"survivor-arena/internal/game"
)

// subscriberBuffer is the per-subscriber event backlog. A subscriber that
// falls further behind misses events rather than stalling the tick.
const subscriberBuffer = 64

// randReader is the id entropy source.
var randReader io.Reader = rand.Reader

// TickStats describes one tick, for metrics.
type TickStats struct {
	Duration    time.Duration
	Enemies     int
	Projectiles int
}

// Hooks let the host observe sessions without the session package
// depending on it. Every hook is optional.
type Hooks struct {
	OnTick         func(TickStats)
	OnEvent        func(sessionID string, ev game.Event)
	OnSessionCount func(n int)
}

// Session is one hosted run.
//
// The engine is only touched with mu held: the tick goroutine holds it for a
// whole Step, and commands take it between ticks.
type Session struct {
	ID string

	mu       sync.Mutex
	engine   *game.Engine
	step     func(e *game.Engine, dt float64, intent game.Vec2)
	clock    *game.FrameClock
	intent   game.Vec2
	pointer  *game.Vec2 // Physical screen position of a held pointer
	deadZone float64
	events   []game.Event

	snapshots *game.SnapshotPool
	tickRate  int
	hooks     Hooks
	eventLog  *game.EventLog

	faulted atomic.Bool
	onFault func(*Session) // Set by the Manager to evict the session

	createdAt  time.Time
	lastActive atomic.Int64 // unix nanos

	subMu       sync.Mutex
	subscribers map[chan game.Event]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSession(id string, engine *game.Engine, cfg Config) *Session {
	now := time.Now()
	s := &Session{
		ID:          id,
		engine:      engine,
		step:        (*game.Engine).Step,
		clock:       game.NewFrameClock(cfg.Simulation.MaxFrameDelta),
		deadZone:    cfg.Viewport.PointerDeadZone,
		snapshots:   game.NewSnapshotPool(cfg.Limits),
		tickRate:    cfg.Simulation.TickRate,
		hooks:       cfg.Hooks,
		eventLog:    cfg.EventLog,
		createdAt:   now,
		subscribers: make(map[chan game.Event]struct{}),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	if s.tickRate <= 0 {
		s.tickRate = 60
	}
	s.lastActive.Store(now.UnixNano())
	s.publish()
	return s
}

// run ticks the engine until Stop is called or a tick faults.
func (s *Session) run() {
	defer close(s.done)

	ticker := time.NewTicker(time.Second / time.Duration(s.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			if err := s.tick(now); err != nil {
				s.fault(err)
				return
			}
		}
	}
}

func (s *Session) tick(now time.Time) error {
	start := time.Now()

	stats, events, err := s.stepLocked(now)
	if err != nil {
		return err
	}

	s.dispatch(events)

	if s.hooks.OnTick != nil {
		stats.Duration = time.Since(start)
		s.hooks.OnTick(stats)
	}
	return nil
}

func (s *Session) stepLocked(now time.Time) (stats TickStats, events []game.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverFault("tick", &err)

	dt := s.clock.Tick(now)
	intent := s.intent
	if s.pointer != nil {
		cam := s.engine.Camera()
		target := cam.ScreenToWorld(*s.pointer)
		intent = game.IntentFromPointer(target, s.engine.Player().Pos, s.deadZone)
	}
	s.step(s.engine, dt, intent)
	s.publish()
	s.events = s.engine.DrainEvents(s.events[:0])
	stats = TickStats{
		Enemies:     len(s.engine.Enemies()),
		Projectiles: len(s.engine.Projectiles()),
	}
	return stats, s.events, nil
}

// recoverFault converts a panic in the engine into ErrSessionFaulted.
// It must be deferred directly.
func (s *Session) recoverFault(op string, err *error) {
	if r := recover(); r != nil {
		log.Printf("💥 Session %s panicked during %s: %v\n%s", s.ID, op, r, debug.Stack())
		*err = fmt.Errorf("%w: %v", ErrSessionFaulted, r)
	}
}

// fault stops a run whose engine panicked. Subscribers get a fault event
// before their channels close, and the Manager forgets the session.
func (s *Session) fault(err error) {
	if !s.faulted.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	tick := s.engine.TickCount()
	s.mu.Unlock()

	ev := game.NewEvent(game.EventTypeFault, tick, s.ID, game.FaultPayload{Error: err.Error()})
	if s.eventLog != nil {
		s.eventLog.Emit(ev)
	}
	s.dispatch([]game.Event{ev})

	if s.onFault != nil {
		s.onFault(s)
	}
	s.Stop()
}

// Faulted reports whether the run was stopped by a panic.
func (s *Session) Faulted() bool { return s.faulted.Load() }

// publish copies the engine state into the snapshot pool. Callers hold mu.
func (s *Session) publish() {
	snap := s.snapshots.AcquireWrite()
	s.engine.Snapshot(snap)
	s.snapshots.PublishWrite()
}

// dispatch fans events out to subscribers without blocking.
// events is only reused by the tick goroutine, so reading it unlocked is safe.
func (s *Session) dispatch(events []game.Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.Lock()
	for ch := range s.subscribers {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	s.subMu.Unlock()

	if s.hooks.OnEvent != nil {
		for _, ev := range events {
			s.hooks.OnEvent(s.ID, ev)
		}
	}
}

// command runs fn against the engine between ticks, publishes the result and
// forwards any events it produced.
func (s *Session) command(fn func(e *game.Engine) error) error {
	if s.faulted.Load() {
		return ErrSessionFaulted
	}
	s.Touch()

	events, err := s.commandLocked(fn)
	if errors.Is(err, ErrSessionFaulted) {
		s.fault(err)
		return err
	}

	s.dispatch(events)
	return err
}

func (s *Session) commandLocked(fn func(e *game.Engine) error) (events []game.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverFault("command", &err)

	err = fn(s.engine)
	s.publish()
	return s.engine.DrainEvents(nil), err
}

// Start begins the run, or restarts it after game over.
func (s *Session) Start() error {
	return s.command(func(e *game.Engine) error {
		s.clock.Reset(time.Now())
		return e.Start()
	})
}

// SetIntent sets a movement intent directly (e.g. from a gamepad stick).
// It replaces any held pointer.
func (s *Session) SetIntent(v game.Vec2) {
	s.Touch()
	s.mu.Lock()
	s.intent = game.ClampIntent(v)
	s.pointer = nil
	s.mu.Unlock()
}

// SetKeys sets the intent from directional keys.
func (s *Session) SetKeys(up, down, left, right bool) {
	s.SetIntent(game.IntentFromKeys(up, down, left, right))
}

// SetPointer holds a pointer at a physical screen position. The player
// steers toward it every tick until the pointer is released.
func (s *Session) SetPointer(x, y float64) {
	s.Touch()
	p := game.V(x, y)
	s.mu.Lock()
	s.pointer = &p
	s.intent = game.Vec2{}
	s.mu.Unlock()
}

// ReleasePointer stops steering toward the held pointer.
func (s *Session) ReleasePointer() {
	s.Touch()
	s.mu.Lock()
	s.pointer = nil
	s.mu.Unlock()
}

// SelectUpgrade applies an upgrade chosen during a level-up.
func (s *Session) SelectUpgrade(id string, kind game.UpgradeKind) error {
	return s.command(func(e *game.Engine) error {
		if err := e.SelectUpgrade(id, kind); err != nil {
			return err
		}
		if e.State() == game.StatePlaying {
			s.clock.Reset(time.Now())
		}
		return nil
	})
}

// Resize reports a new physical screen size.
func (s *Session) Resize(width, height float64) {
	s.command(func(e *game.Engine) error {
		e.Resize(width, height)
		return nil
	})
}

// Snapshot copies the latest published state into dst.
func (s *Session) Snapshot(dst *game.GameSnapshot) bool {
	return s.snapshots.Read(dst)
}

// Subscribe returns a channel of the run's events and a function that
// unsubscribes and closes it.
func (s *Session) Subscribe() (<-chan game.Event, func()) {
	ch := make(chan game.Event, subscriberBuffer)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() { s.unsubscribe(ch) }
}

func (s *Session) unsubscribe(ch chan game.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the run state.
func (s *Session) State() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// Stop ends the tick goroutine and closes every subscriber.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		s.subMu.Lock()
		for ch := range s.subscribers {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	})
}

// Done is closed once the tick goroutine started by the Manager has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// generateID creates a cryptographically random session ID.
func generateID() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
