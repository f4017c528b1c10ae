package game

import (
	"math"

	"survivor-arena/internal/config"
)

// EnemyKind is the enemy tier.
type EnemyKind uint8

const (
	EnemyNormal EnemyKind = iota
	EnemyFast
	EnemyTank
	EnemyBoss
)

// String returns the tier name used in snapshots and balance files.
func (k EnemyKind) String() string {
	switch k {
	case EnemyFast:
		return "fast"
	case EnemyTank:
		return "tank"
	case EnemyBoss:
		return "boss"
	default:
		return "normal"
	}
}

func enemyStats(kind EnemyKind, table config.EnemyTable) config.EnemyStats {
	switch kind {
	case EnemyFast:
		return table.Fast
	case EnemyTank:
		return table.Tank
	case EnemyBoss:
		return table.Boss
	default:
		return table.Normal
	}
}

// Enemy is a pursuing agent. Its hitbox is a rectangle centred on Pos.
type Enemy struct {
	ID                uint64
	Kind              EnemyKind
	Pos               Vec2
	Width, Height     float64
	HP, MaxHP         float64
	Damage            float64
	Speed             float64
	ExpValue          float64
	KnockbackForce    float64
	KnockbackDuration float64
	Color             string
	Deleted           bool
}

// NewEnemy creates an enemy of the given tier. difficulty scales hp once, at creation.
func NewEnemy(id uint64, kind EnemyKind, pos Vec2, stats config.EnemyStats, difficulty float64) *Enemy {
	if difficulty < 1 {
		difficulty = 1
	}
	hp := math.Floor(stats.HP * difficulty)
	if hp < 1 {
		hp = 1
	}
	return &Enemy{
		ID:                id,
		Kind:              kind,
		Pos:               pos,
		Width:             stats.Width,
		Height:            stats.Height,
		HP:                hp,
		MaxHP:             hp,
		Damage:            stats.Damage,
		Speed:             stats.Speed,
		ExpValue:          stats.ExpValue,
		KnockbackForce:    stats.KnockbackForce,
		KnockbackDuration: stats.KnockbackDuration,
		Color:             stats.Color,
	}
}

func (e *Enemy) IsDeleted() bool { return e.Deleted }
func (e *Enemy) IsBoss() bool    { return e.Kind == EnemyBoss }

// Rect is the enemy's hitbox.
func (e *Enemy) Rect() Rect {
	return Rect{Center: e.Pos, W: e.Width, H: e.Height}
}

// Move steps toward target. separation is an extra velocity added to pursuit.
func (e *Enemy) Move(dt float64, target Vec2, separation Vec2) {
	dir := target.Sub(e.Pos).Normalize()
	vel := dir.Scale(e.Speed).Add(separation)
	e.Pos = e.Pos.Add(vel.Scale(dt))
}

// TakeDamage lowers hp, flooring at zero, and reports whether this call
// killed the enemy. A deleted enemy ignores damage.
func (e *Enemy) TakeDamage(amount float64) bool {
	if e.Deleted {
		return false
	}
	e.HP -= amount
	if e.HP <= 0 {
		e.HP = 0
		e.Deleted = true
		return true
	}
	return false
}
