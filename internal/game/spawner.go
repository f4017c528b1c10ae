package game

import (
	"log"
	"math"

	"survivor-arena/internal/config"
)

// Spawner owns the normal-enemy cadence and the boss cycle.
//
// The boss cycle is: timer reaches the interval → warning (bossActive set,
// countdown armed) → countdown ends → boss materializes → once no boss is
// alive → defeated, timer restarts. The countdown is a plain field so a
// restarted run simply gets a fresh Spawner.
type Spawner struct {
	spawnTimer    float64
	spawnInterval float64

	bossTimer      float64
	bossActive     bool
	bossWarning    float64 // Seconds until the boss materializes
	warningPending bool
}

func newSpawner(b config.SpawnBalance) Spawner {
	return Spawner{spawnInterval: b.BaseInterval}
}

// BossActive reports whether a boss is announced or alive.
func (s *Spawner) BossActive() bool { return s.bossActive }

// BossWarning reports whether a boss is announced but not yet spawned.
func (s *Spawner) BossWarning() bool { return s.warningPending }

// Interval is the current normal spawn interval in seconds.
func (s *Spawner) Interval() float64 { return s.spawnInterval }

// spawnInterval returns the normal spawn interval at elapsed seconds.
func spawnInterval(b config.SpawnBalance, elapsed float64) float64 {
	return math.Max(b.MinInterval, b.BaseInterval-elapsed*b.IntervalDecayPerSecond)
}

// difficultyMultiplier scales new enemies' hp with run time.
func difficultyMultiplier(b config.SpawnBalance, elapsed float64) float64 {
	return 1 + (elapsed/60)*b.DifficultyPerMinute
}

// chooseEnemyKind picks the tier of a normal spawn. Later tier gates win.
func chooseEnemyKind(b config.SpawnBalance, elapsed float64, roll func() float64) EnemyKind {
	kind := EnemyNormal
	if elapsed > b.FastUnlockTime && roll() < b.FastChance {
		kind = EnemyFast
	}
	if elapsed > b.TankUnlockTime && roll() < b.TankChance {
		kind = EnemyTank
	}
	return kind
}

// Update advances both timers.
func (s *Spawner) Update(dt float64, e *Engine) {
	s.updateBoss(dt, e)

	if e.bal.Spawn.PauseDuringBoss && s.bossActive {
		return
	}
	s.spawnTimer += dt
	if s.spawnTimer > s.spawnInterval {
		e.spawnEnemy(chooseEnemyKind(e.bal.Spawn, e.elapsed, e.rng.Float64))
		s.spawnTimer = 0
		s.spawnInterval = spawnInterval(e.bal.Spawn, e.elapsed)
	}
}

func (s *Spawner) updateBoss(dt float64, e *Engine) {
	if s.bossActive && !s.warningPending && !e.hasLiveBoss() {
		s.bossActive = false
		s.bossTimer = 0
		log.Printf("🏆 Run %s: boss defeated at %.1fs", e.runID, e.elapsed)
		e.emit(EventTypeBossDefeated, BossDefeatedPayload{Elapsed: e.elapsed})
	}

	if s.warningPending {
		s.bossWarning -= dt
		if s.bossWarning <= 0 {
			s.materializeBoss(e)
		}
	}

	s.bossTimer += dt
	if s.bossTimer >= e.bal.Boss.Interval && !s.bossActive {
		s.bossTimer = 0
		s.bossActive = true
		s.warningPending = true
		s.bossWarning = e.bal.Boss.WarningDelay
		e.triggerShake(e.bal.Boss.WarningShake)
		log.Printf("⚠️ Run %s: boss incoming in %.1fs", e.runID, e.bal.Boss.WarningDelay)
		e.emit(EventTypeBossWarning, BossWarningPayload{Delay: e.bal.Boss.WarningDelay})
		if s.bossWarning <= 0 {
			s.materializeBoss(e)
		}
	}
}

func (s *Spawner) materializeBoss(e *Engine) {
	s.warningPending = false
	s.bossWarning = 0
	boss := e.spawnBoss()
	if boss == nil {
		// No room in the enemy pool; treat the cycle as finished.
		s.bossActive = false
		s.bossTimer = 0
	}
}
