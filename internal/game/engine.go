package game

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game/spatial"
)

// State is the phase of a run.
type State uint8

const (
	StateStart State = iota
	StatePlaying
	StateLevelUp
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateLevelUp:
		return "levelup"
	case StateGameOver:
		return "gameover"
	default:
		return "start"
	}
}

// ErrRunInProgress is returned by Start while a run is PLAYING or LEVELUP.
var ErrRunInProgress = errors.New("run already in progress")

// maxPendingEvents bounds the events kept for a host that never drains them.
const maxPendingEvents = 256

// Options configures a new Engine.
type Options struct {
	Balance   *config.Balance // nil = shipped defaults
	Policy    string          // Level policy table name
	Limits    config.ResourceLimits
	Reference float64 // Logical size of the short viewport side
	Width     float64 // Physical viewport size
	Height    float64
	Seed      int64 // 0 = seeded from the clock
	RunID     string
	EventLog  *EventLog // Optional shared event log
}

// Engine is one run of the game: all world state plus the rules that advance it.
//
// An Engine is not safe for concurrent use; the host serializes Step and
// the command methods.
type Engine struct {
	bal        *config.Balance
	policy     map[string]config.LevelPolicy
	policyName string
	limits     config.ResourceLimits
	rng        *rand.Rand
	seed       int64
	runID      string
	eventLog   *EventLog

	state   State
	player  *Player
	spawner Spawner
	camera  Camera
	shake   ScreenShake
	weather Weather

	enemies     []*Enemy
	projectiles []*Projectile
	explosions  []*Explosion
	particles   []*Particle
	texts       []*DamageNumber
	orbs        []*ExpOrb

	elapsed float64
	kills   int
	tick    uint64
	lastID  uint64

	pendingLevelUps int
	options         []UpgradeOption
	summary         *GameOverSummary

	// Per-tick scratch
	detonations []*Projectile
	hash        *spatial.SpatialHash
	pushes      []Vec2

	events []Event
}

// NewEngine creates a run in the START state.
func NewEngine(opts Options) (*Engine, error) {
	bal := opts.Balance
	if bal == nil {
		def := config.DefaultBalance()
		bal = &def
	}
	if opts.Policy == "" {
		opts.Policy = "classic"
	}
	policy, err := bal.Policy(opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	limits := opts.Limits
	if limits.MaxEnemies <= 0 {
		limits = config.DefaultLimits()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ref := opts.Reference
	if ref <= 0 {
		ref = config.DefaultViewport().ReferenceSize
	}

	e := &Engine{
		bal:         bal,
		policy:      policy,
		policyName:  opts.Policy,
		limits:      limits,
		rng:         rand.New(rand.NewSource(seed)),
		seed:        seed,
		runID:       opts.RunID,
		eventLog:    opts.EventLog,
		camera:      NewCamera(opts.Width, opts.Height, ref),
		enemies:     make([]*Enemy, 0, limits.MaxEnemies),
		projectiles: make([]*Projectile, 0, limits.MaxProjectiles),
		explosions:  make([]*Explosion, 0, limits.MaxExplosions),
		particles:   make([]*Particle, 0, limits.MaxParticles),
		texts:       make([]*DamageNumber, 0, limits.MaxTexts),
		orbs:        make([]*ExpOrb, 0, limits.MaxPickups),
		hash:        spatial.NewSpatialHash(bal.Separation.Radius),
	}
	e.reset()
	return e, nil
}

// reset puts the world back to a fresh run without changing the state.
func (e *Engine) reset() {
	e.player = NewPlayer(e.bal.Player)
	for _, id := range e.bal.Player.StartingWeapons {
		if w := e.newWeapon(WeaponKind(id)); w != nil {
			e.player.AddWeapon(w)
		}
	}
	e.spawner = newSpawner(e.bal.Spawn)
	e.shake = ScreenShake{}
	e.weather = newWeather(e.bal.Effects.WeatherInterval)
	e.enemies = clearPool(e.enemies)
	e.projectiles = clearPool(e.projectiles)
	e.explosions = clearPool(e.explosions)
	e.particles = clearPool(e.particles)
	e.texts = clearPool(e.texts)
	e.orbs = clearPool(e.orbs)
	e.detonations = clearPool(e.detonations)
	e.elapsed = 0
	e.kills = 0
	e.pendingLevelUps = 0
	e.options = nil
	e.summary = nil
	e.camera.Follow(e.player.Pos)
}

func clearPool[T any](pool []T) []T {
	var zero T
	for i := range pool {
		pool[i] = zero
	}
	return pool[:0]
}

// Start begins a run from START, or restarts one from GAMEOVER.
func (e *Engine) Start() error {
	if e.state == StatePlaying || e.state == StateLevelUp {
		return ErrRunInProgress
	}
	if e.state == StateGameOver {
		e.reset()
	}
	e.state = StatePlaying
	e.emit(EventTypeRunStarted, RunStartedPayload{Seed: e.seed, Policy: e.policyName})
	log.Printf("🎮 Run %s started (policy %s)", e.runID, e.policyName)
	return nil
}

// Step advances the run by dt seconds with the given movement intent.
// Nothing happens outside PLAYING.
func (e *Engine) Step(dt float64, intent Vec2) {
	if e.state != StatePlaying || !(dt > 0) {
		return
	}
	e.tick++
	e.elapsed += dt

	e.shake.Update(dt, e.rng)
	e.weather.Update(dt)

	e.player.Update(dt, intent)
	e.camera.Follow(e.player.Pos)
	for _, w := range e.player.Weapons {
		w.Update(dt, e)
	}

	e.spawner.Update(dt, e)
	e.updateEnemies(dt)

	for _, p := range e.projectiles {
		if !p.Deleted {
			p.Update(dt, e)
		}
	}
	for _, x := range e.explosions {
		x.Update(dt, e)
	}
	for _, p := range e.particles {
		p.Update(dt)
	}
	for _, o := range e.orbs {
		if o.Update(dt, e.player.Pos, e.bal.Pickups) {
			e.gainExp(o.Value)
		}
	}
	for _, t := range e.texts {
		t.Update(dt)
	}

	e.prune()
	e.resolveProjectileHits()
	e.detonatePending()
	e.resolveContacts()
	e.prune()

	if e.player.HP <= 0 {
		e.gameOver()
	}
}

func (e *Engine) updateEnemies(dt float64) {
	sep := e.bal.Separation
	e.hash.Clear()
	for i, en := range e.enemies {
		if !en.Deleted && !en.IsBoss() {
			e.hash.Insert(uint32(i), en.Pos.X, en.Pos.Y)
		}
	}

	// Pushes are computed from the pre-move positions of every enemy.
	e.pushes = e.pushes[:0]
	for i, en := range e.enemies {
		var push Vec2
		if !en.Deleted && !en.IsBoss() && sep.Radius > 0 {
			push = e.separationForce(i, en, sep.Radius).Scale(sep.Strength)
		}
		e.pushes = append(e.pushes, push)
	}
	for i, en := range e.enemies {
		if !en.Deleted {
			en.Move(dt, e.player.Pos, e.pushes[i])
		}
	}
}

// prune compacts every pool. Bombs whose fuse ran out are queued for
// detonation before they leave the pool.
func (e *Engine) prune() {
	for _, p := range e.projectiles {
		if p.Deleted && p.Kind == ProjectileBomb && !p.Detonated {
			e.detonations = append(e.detonations, p)
		}
	}
	e.enemies = compact(e.enemies)
	e.projectiles = compact(e.projectiles)
	e.explosions = compact(e.explosions)
	e.particles = compact(e.particles)
	e.texts = compact(e.texts)
	e.orbs = compact(e.orbs)
}

// gameOver ends the run. A level-up earned in the same tick is discarded.
func (e *Engine) gameOver() {
	e.state = StateGameOver
	e.pendingLevelUps = 0
	e.options = nil
	e.summary = &GameOverSummary{Elapsed: e.elapsed, Level: e.player.Level, Kills: e.kills}
	e.emit(EventTypeGameOver, *e.summary)
	log.Printf("💀 Run %s over: %.1fs, level %d, %d kills", e.runID, e.elapsed, e.player.Level, e.kills)
}

// Resize changes the physical viewport size.
func (e *Engine) Resize(width, height float64) {
	e.camera.Resize(width, height)
	e.camera.Follow(e.player.Pos)
}

// DrainEvents appends pending events to dst and clears them.
func (e *Engine) DrainEvents(dst []Event) []Event {
	dst = append(dst, e.events...)
	for i := range e.events {
		e.events[i] = Event{}
	}
	e.events = e.events[:0]
	return dst
}

func (e *Engine) emit(t EventType, payload interface{}) {
	ev := NewEvent(t, e.tick, e.runID, payload)
	if len(e.events) >= maxPendingEvents {
		copy(e.events, e.events[1:])
		e.events = e.events[:len(e.events)-1]
	}
	e.events = append(e.events, ev)
	if e.eventLog != nil {
		e.eventLog.Emit(ev)
	}
}

func (e *Engine) triggerShake(req config.Shake) {
	if req.Intensity <= 0 || req.Duration <= 0 {
		return
	}
	e.shake.Trigger(req)
	e.emit(EventTypeShake, ShakePayload{Intensity: req.Intensity, Duration: req.Duration})
}

func (e *Engine) nextID() uint64 {
	e.lastID++
	return e.lastID
}

// =============================================================================
// SPAWNING (all pools are capped)
// =============================================================================

// spawnEnemy places a normal-spawn enemy just outside a random viewport edge.
func (e *Engine) spawnEnemy(kind EnemyKind) *Enemy {
	if len(e.enemies) >= e.limits.MaxEnemies {
		return nil
	}
	vp := e.camera.Viewport()
	pad := e.bal.Spawn.EdgePadding
	var pos Vec2
	switch e.rng.Intn(4) {
	case 0: // top
		pos = Vec2{RandRange(e.rng, vp.MinX(), vp.MaxX()), vp.MinY() - pad}
	case 1: // right
		pos = Vec2{vp.MaxX() + pad, RandRange(e.rng, vp.MinY(), vp.MaxY())}
	case 2: // bottom
		pos = Vec2{RandRange(e.rng, vp.MinX(), vp.MaxX()), vp.MaxY() + pad}
	default: // left
		pos = Vec2{vp.MinX() - pad, RandRange(e.rng, vp.MinY(), vp.MaxY())}
	}
	en := NewEnemy(e.nextID(), kind, pos, enemyStats(kind, e.bal.Enemies), difficultyMultiplier(e.bal.Spawn, e.elapsed))
	e.enemies = append(e.enemies, en)
	return en
}

// spawnBoss places the boss at a random angle, one long viewport side away.
func (e *Engine) spawnBoss() *Enemy {
	if len(e.enemies) >= e.limits.MaxEnemies {
		log.Printf("⚠️ Run %s: enemy pool full, boss skipped", e.runID)
		return nil
	}
	dist := math.Max(e.camera.ViewWidth, e.camera.ViewHeight)
	pos := e.player.Pos.Add(FromAngle(e.rng.Float64() * 2 * math.Pi).Scale(dist))
	boss := NewEnemy(e.nextID(), EnemyBoss, pos, e.bal.Enemies.Boss, difficultyMultiplier(e.bal.Spawn, e.elapsed))
	e.enemies = append(e.enemies, boss)
	log.Printf("👹 Run %s: boss spawned (hp %.0f)", e.runID, boss.HP)
	e.emit(EventTypeBossSpawned, BossSpawnedPayload{EnemyID: boss.ID, X: boss.Pos.X, Y: boss.Pos.Y, HP: boss.HP})
	return boss
}

func (e *Engine) spawnProjectile(p *Projectile) bool {
	if len(e.projectiles) >= e.limits.MaxProjectiles {
		return false
	}
	p.ID = e.nextID()
	e.projectiles = append(e.projectiles, p)
	return true
}

func (e *Engine) spawnExplosion(x *Explosion) bool {
	if len(e.explosions) >= e.limits.MaxExplosions {
		return false
	}
	x.ID = e.nextID()
	e.explosions = append(e.explosions, x)
	return true
}

func (e *Engine) spawnText(t *DamageNumber) {
	if len(e.texts) >= e.limits.MaxTexts {
		return
	}
	t.ID = e.nextID()
	e.texts = append(e.texts, t)
}

func (e *Engine) spawnOrb(o *ExpOrb) bool {
	if len(e.orbs) >= e.limits.MaxPickups {
		return false
	}
	o.ID = e.nextID()
	e.orbs = append(e.orbs, o)
	return true
}

func (e *Engine) spawnHitParticles(at Vec2, color string, n int) {
	fx := e.bal.Effects
	for i := 0; i < n && len(e.particles) < e.limits.MaxParticles; i++ {
		life := RandRange(e.rng, fx.ParticleMinLife, fx.ParticleMaxLife)
		vel := FromAngle(e.rng.Float64() * 2 * math.Pi).Scale(RandRange(e.rng, fx.ParticleMinSpeed, fx.ParticleMaxSpeed))
		e.particles = append(e.particles, &Particle{
			Body:  Body{ID: e.nextID(), Pos: at, Vel: vel, Life: life, MaxLife: life},
			Size:  RandRange(e.rng, 2, 4),
			Color: color,
		})
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// nearestEnemy returns the closest live enemy to from, within maxRange
// (maxRange <= 0 means unbounded).
func (e *Engine) nearestEnemy(from Vec2, maxRange float64) *Enemy {
	var best *Enemy
	bestSq := math.Inf(1)
	if maxRange > 0 {
		bestSq = maxRange * maxRange
	}
	for _, en := range e.enemies {
		if en.Deleted {
			continue
		}
		if d := from.DistSq(en.Pos); d <= bestSq {
			best, bestSq = en, d
		}
	}
	return best
}

func (e *Engine) hasLiveBoss() bool {
	for _, en := range e.enemies {
		if !en.Deleted && en.IsBoss() {
			return true
		}
	}
	return false
}

func (e *Engine) hasAura(kind WeaponKind) bool {
	for _, p := range e.projectiles {
		if !p.Deleted && p.Kind == ProjectileAura && p.Source == kind {
			return true
		}
	}
	return false
}

func (e *Engine) State() State                    { return e.state }
func (e *Engine) Player() *Player                 { return e.player }
func (e *Engine) Enemies() []*Enemy               { return e.enemies }
func (e *Engine) Projectiles() []*Projectile      { return e.projectiles }
func (e *Engine) Explosions() []*Explosion        { return e.explosions }
func (e *Engine) Orbs() []*ExpOrb                 { return e.orbs }
func (e *Engine) Camera() *Camera                 { return &e.camera }
func (e *Engine) Spawner() *Spawner               { return &e.spawner }
func (e *Engine) Elapsed() float64                { return e.elapsed }
func (e *Engine) Kills() int                      { return e.kills }
func (e *Engine) TickCount() uint64               { return e.tick }
func (e *Engine) PendingLevelUps() int            { return e.pendingLevelUps }
func (e *Engine) UpgradeOptions() []UpgradeOption { return e.options }
func (e *Engine) Summary() *GameOverSummary       { return e.summary }
func (e *Engine) Balance() *config.Balance        { return e.bal }
func (e *Engine) Weather() string                 { return e.weather.Kind }
func (e *Engine) RunID() string                   { return e.runID }
