package game

import (
	"sync"
	"sync/atomic"
	"time"

	"survivor-arena/internal/config"
)

// PlayerSnapshot is an immutable copy of player state for rendering
type PlayerSnapshot struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Radius       float64 `json:"radius"`
	HP           float64 `json:"hp"`
	MaxHP        float64 `json:"maxHp"`
	Level        int     `json:"level"`
	Exp          float64 `json:"exp"`
	NextLevelExp float64 `json:"nextLevelExp"`
	Invulnerable bool    `json:"invulnerable"`
	Color        string  `json:"color"`
}

// WeaponSnapshot describes one owned weapon for the HUD
type WeaponSnapshot struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	Icon     string  `json:"icon"`
	Level    int     `json:"level"`
	Damage   float64 `json:"damage"`
	Cooldown float64 `json:"cooldown"`
}

// EnemySnapshot is an immutable enemy for rendering
type EnemySnapshot struct {
	ID     uint64  `json:"id"`
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	HP     float64 `json:"hp"`
	MaxHP  float64 `json:"maxHp"`
	Color  string  `json:"color"`
}

// ProjectileSnapshot is an immutable knife, bomb or aura
type ProjectileSnapshot struct {
	ID     uint64  `json:"id"`
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
	Angle  float64 `json:"angle"`
	Color  string  `json:"color"`
}

// ExplosionSnapshot is an immutable explosion ring
type ExplosionSnapshot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Progress float64 `json:"progress"` // 0 at detonation, 1 when gone
}

// ParticleSnapshot is an immutable particle for rendering
type ParticleSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// TextSnapshot is an immutable floating damage number
type TextSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// OrbSnapshot is an immutable exp orb
type OrbSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
}

// CameraSnapshot captures the viewport and screen shake
type CameraSnapshot struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ViewWidth      float64 `json:"viewWidth"`
	ViewHeight     float64 `json:"viewHeight"`
	Scale          float64 `json:"scale"`
	PhysicalWidth  float64 `json:"physicalWidth"`
	PhysicalHeight float64 `json:"physicalHeight"`
	ShakeX         float64 `json:"shakeX"`
	ShakeY         float64 `json:"shakeY"`
}

// GameSnapshot is a complete copy of a run's visible state.
// It holds values only, so it can be read while the run keeps ticking.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	RunID       string  `json:"runId"`
	State       string  `json:"state"`
	Elapsed     float64 `json:"elapsed"`
	Kills       int     `json:"kills"`
	BossWarning bool    `json:"bossWarning"`
	BossActive  bool    `json:"bossActive"`
	Weather     string  `json:"weather"`

	Player  PlayerSnapshot   `json:"player"`
	Weapons []WeaponSnapshot `json:"weapons"`
	Camera  CameraSnapshot   `json:"camera"`

	Enemies     []EnemySnapshot      `json:"enemies"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Explosions  []ExplosionSnapshot  `json:"explosions"`
	Particles   []ParticleSnapshot   `json:"particles"`
	Texts       []TextSnapshot       `json:"texts"`
	Orbs        []OrbSnapshot        `json:"orbs"`

	Options []UpgradeOption  `json:"options,omitempty"`
	Summary *GameOverSummary `json:"summary,omitempty"`
}

// Snapshot fills dst with the current state, reusing dst's slice capacity.
func (e *Engine) Snapshot(dst *GameSnapshot) {
	p := e.player
	dst.TickNumber = e.tick
	dst.RunID = e.runID
	dst.State = e.state.String()
	dst.Elapsed = e.elapsed
	dst.Kills = e.kills
	dst.BossWarning = e.spawner.BossWarning()
	dst.BossActive = e.spawner.BossActive()
	dst.Weather = e.weather.Kind

	dst.Player = PlayerSnapshot{
		X: p.Pos.X, Y: p.Pos.Y, Radius: p.Radius,
		HP: p.HP, MaxHP: p.MaxHP,
		Level: p.Level, Exp: p.Exp, NextLevelExp: p.NextLevelExp,
		Invulnerable: p.Invulnerable(e.elapsed),
		Color:        p.Color,
	}

	dst.Weapons = dst.Weapons[:0]
	for _, w := range p.Weapons {
		dst.Weapons = append(dst.Weapons, WeaponSnapshot{
			Kind: string(w.Kind), Name: w.Stats.Name, Icon: w.Stats.Icon,
			Level: w.Level, Damage: w.Damage, Cooldown: w.BaseCooldown,
		})
	}

	shake := e.shake.Offset()
	dst.Camera = CameraSnapshot{
		X: e.camera.Pos.X, Y: e.camera.Pos.Y,
		ViewWidth: e.camera.ViewWidth, ViewHeight: e.camera.ViewHeight,
		Scale:         e.camera.Scale,
		PhysicalWidth: e.camera.PhysicalWidth, PhysicalHeight: e.camera.PhysicalHeight,
		ShakeX: shake.X, ShakeY: shake.Y,
	}

	dst.Enemies = dst.Enemies[:0]
	for _, en := range e.enemies {
		dst.Enemies = append(dst.Enemies, EnemySnapshot{
			ID: en.ID, Kind: en.Kind.String(),
			X: en.Pos.X, Y: en.Pos.Y, Width: en.Width, Height: en.Height,
			HP: en.HP, MaxHP: en.MaxHP, Color: en.Color,
		})
	}

	dst.Projectiles = dst.Projectiles[:0]
	for _, pr := range e.projectiles {
		dst.Projectiles = append(dst.Projectiles, ProjectileSnapshot{
			ID: pr.ID, Kind: pr.Kind.String(),
			X: pr.Pos.X, Y: pr.Pos.Y, Z: pr.Z, Radius: pr.Radius,
			Angle: pr.Vel.Angle(), Color: pr.Color,
		})
	}

	dst.Explosions = dst.Explosions[:0]
	for _, x := range e.explosions {
		dst.Explosions = append(dst.Explosions, ExplosionSnapshot{
			X: x.Pos.X, Y: x.Pos.Y, Radius: x.Radius, Progress: 1 - x.LifeFraction(),
		})
	}

	dst.Particles = dst.Particles[:0]
	for _, pa := range e.particles {
		dst.Particles = append(dst.Particles, ParticleSnapshot{
			X: pa.Pos.X, Y: pa.Pos.Y, Size: pa.Size, Color: pa.Color, Alpha: pa.LifeFraction(),
		})
	}

	dst.Texts = dst.Texts[:0]
	for _, t := range e.texts {
		dst.Texts = append(dst.Texts, TextSnapshot{
			X: t.Pos.X, Y: t.Pos.Y, Text: t.Text, Color: t.Color, Alpha: t.LifeFraction(),
		})
	}

	dst.Orbs = dst.Orbs[:0]
	for _, o := range e.orbs {
		dst.Orbs = append(dst.Orbs, OrbSnapshot{X: o.Pos.X, Y: o.Pos.Y, Radius: o.Radius, Color: o.Color})
	}

	dst.Options = append(dst.Options[:0], e.options...)
	if e.summary != nil {
		s := *e.summary
		dst.Summary = &s
	} else {
		dst.Summary = nil
	}
}

// copySnapshot deep-copies src into dst, reusing dst's slice capacity.
func copySnapshot(dst, src *GameSnapshot) {
	weapons, enemies, projectiles := dst.Weapons, dst.Enemies, dst.Projectiles
	explosions, particles, texts := dst.Explosions, dst.Particles, dst.Texts
	orbs, options := dst.Orbs, dst.Options

	*dst = *src
	dst.Weapons = append(weapons[:0], src.Weapons...)
	dst.Enemies = append(enemies[:0], src.Enemies...)
	dst.Projectiles = append(projectiles[:0], src.Projectiles...)
	dst.Explosions = append(explosions[:0], src.Explosions...)
	dst.Particles = append(particles[:0], src.Particles...)
	dst.Texts = append(texts[:0], src.Texts...)
	dst.Orbs = append(orbs[:0], src.Orbs...)
	dst.Options = append(options[:0], src.Options...)
	if src.Summary != nil {
		s := *src.Summary
		dst.Summary = &s
	}
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
//
// It is double-buffered: the producer fills the back buffer without locking,
// then swaps it to the front; readers copy the front under a read lock, so a
// reader never observes a half-written snapshot.
type SnapshotPool struct {
	mu       sync.RWMutex
	buffers  [2]GameSnapshot
	front    int
	sequence uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with slices sized for the given limits.
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.buffers {
		pool.buffers[i] = GameSnapshot{
			Enemies:     make([]EnemySnapshot, 0, limits.MaxEnemies),
			Projectiles: make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			Explosions:  make([]ExplosionSnapshot, 0, limits.MaxExplosions),
			Particles:   make([]ParticleSnapshot, 0, limits.MaxParticles),
			Texts:       make([]TextSnapshot, 0, limits.MaxTexts),
			Orbs:        make([]OrbSnapshot, 0, limits.MaxPickups),
		}
	}
	return pool
}

// AcquireWrite returns the back buffer (producer only).
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	snap := &p.buffers[1-p.front]
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite makes the back buffer the latest snapshot.
func (p *SnapshotPool) PublishWrite() {
	p.mu.Lock()
	p.front = 1 - p.front
	p.mu.Unlock()
}

// Read copies the latest published snapshot into dst.
// It returns false if nothing has been published yet.
func (p *SnapshotPool) Read(dst *GameSnapshot) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	src := &p.buffers[p.front]
	if src.Sequence == 0 {
		return false
	}
	copySnapshot(dst, src)
	return true
}
