package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
)

var (
	// ErrSessionNotFound is returned for an unknown or already removed session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimit is returned when MaxSessions runs are already hosted.
	ErrSessionLimit = errors.New("session limit reached")
	// ErrSessionFaulted is returned once a run's engine has panicked.
	ErrSessionFaulted = errors.New("session faulted")
)

// maxIDAttempts bounds the retries on an id collision.
const maxIDAttempts = 4

// Config holds everything the Manager needs to build sessions.
type Config struct {
	Simulation  config.SimulationConfig
	Viewport    config.ViewportConfig
	Limits      config.ResourceLimits
	Balance     *config.Balance // nil = shipped defaults
	EventLog    *game.EventLog  // Optional, shared by every run
	MaxSessions int
	IdleTimeout time.Duration // Sessions unused for this long are reaped; 0 disables reaping
	Hooks       Hooks
}

// ConfigFromApp builds a manager configuration from the application config.
func ConfigFromApp(app config.AppConfig, bal *config.Balance, eventLog *game.EventLog) Config {
	return Config{
		Simulation:  app.Simulation,
		Viewport:    app.Viewport,
		Limits:      app.Limits,
		Balance:     bal,
		EventLog:    eventLog,
		MaxSessions: app.Server.MaxSessions,
		IdleTimeout: app.Server.SessionIdleTimeout,
	}
}

// Manager owns every hosted session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager. No goroutines run until Start or Create.
func NewManager(cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = config.DefaultServer().MaxSessions
	}
	if cfg.Simulation.TickRate <= 0 {
		cfg.Simulation = config.DefaultSimulation()
	}
	if cfg.Viewport.ReferenceSize <= 0 {
		cfg.Viewport = config.DefaultViewport()
	}
	if cfg.Limits.MaxEnemies <= 0 {
		cfg.Limits = config.DefaultLimits()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the idle reaper.
func (m *Manager) Start() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	interval := m.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	m.wg.Add(1)
	go m.reapLoop(interval)
}

// Create builds a new run in the START state and starts ticking it.
// Non-positive sizes use the configured default viewport.
func (m *Manager) Create(width, height float64) (*Session, error) {
	if width <= 0 || height <= 0 {
		width = float64(m.cfg.Viewport.DefaultWidth)
		height = float64(m.cfg.Viewport.DefaultHeight)
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrSessionLimit
	}

	id, err := m.newID()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	engine, err := game.NewEngine(game.Options{
		Balance:   m.cfg.Balance,
		Policy:    m.cfg.Simulation.LevelPolicy,
		Limits:    m.cfg.Limits,
		Reference: m.cfg.Viewport.ReferenceSize,
		Width:     width,
		Height:    height,
		RunID:     id,
		EventLog:  m.cfg.EventLog,
	})
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s := newSession(id, engine, m.cfg)
	s.onFault = m.evict
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	go s.run()

	log.Printf("🕹️ Session %s created (%.0fx%.0f, %d active)", id, width, height, count)
	m.reportCount(count)
	return s, nil
}

// newID returns an id no hosted session uses. Callers hold mu.
func (m *Manager) newID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := generateID()
		if err != nil {
			return "", err
		}
		if m.sessions[id] == nil {
			return id, nil
		}
	}
	return "", errors.New("failed to generate a unique session id")
}

// evict forgets a faulted session. The session stops itself.
func (m *Manager) evict(s *Session) {
	m.mu.Lock()
	ok := m.sessions[s.ID] == s
	if ok {
		delete(m.sessions, s.ID)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if ok {
		log.Printf("🚑 Session %s evicted after a fault (%d active)", s.ID, count)
		m.reportCount(count)
	}
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove stops and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Stop()
	log.Printf("🗑️ Session %s removed after %s (%d active)", id, time.Since(s.CreatedAt()).Round(time.Second), count)
	m.reportCount(count)
	return nil
}

// Count returns the number of hosted sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats returns session counts by run state.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	byState := make(map[string]int)
	for _, s := range list {
		byState[s.State().String()]++
	}
	return map[string]interface{}{
		"sessions":    len(list),
		"maxSessions": m.cfg.MaxSessions,
		"byState":     byState,
	}
}

// Stop stops the reaper and every session.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	if len(sessions) > 0 {
		log.Printf("🛑 Stopped %d sessions", len(sessions))
	}
	m.reportCount(0)
}

func (m *Manager) reapLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case now := <-ticker.C:
			m.reapIdle(now)
		}
	}
}

// reapIdle removes sessions idle since before now-IdleTimeout and returns
// how many were removed.
func (m *Manager) reapIdle(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.Stop()
		log.Printf("⏰ Session %s reaped after %s idle", s.ID, m.cfg.IdleTimeout)
	}
	if len(idle) > 0 {
		m.reportCount(count)
	}
	return len(idle)
}

func (m *Manager) reportCount(n int) {
	if m.cfg.Hooks.OnSessionCount != nil {
		m.cfg.Hooks.OnSessionCount(n)
	}
}
