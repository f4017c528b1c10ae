package game

import (
	"math"

	"survivor-arena/internal/config"
)

// WeaponKind identifies a weapon family.
type WeaponKind string

const (
	WeaponKnife  WeaponKind = config.WeaponKnife
	WeaponGarlic WeaponKind = config.WeaponGarlic
	WeaponBomb   WeaponKind = config.WeaponBomb
)

// WeaponKinds lists every kind in the order upgrades are offered.
var WeaponKinds = []WeaponKind{WeaponKnife, WeaponGarlic, WeaponBomb}

// weaponBehavior is the capability record of a weapon kind.
type weaponBehavior struct {
	fire func(w *Weapon, e *Engine)
	// area is the radius a RadiusMultiplier level-up grows.
	area func(w *Weapon) *float64
}

var weaponBehaviors = map[WeaponKind]weaponBehavior{
	WeaponKnife: {
		fire: fireKnife,
		area: func(w *Weapon) *float64 { return &w.Radius },
	},
	WeaponGarlic: {
		fire: fireGarlic,
		area: func(w *Weapon) *float64 { return &w.Radius },
	},
	WeaponBomb: {
		fire: fireBomb,
		area: func(w *Weapon) *float64 { return &w.ExplosionRadius },
	},
}

// Weapon is a player-owned weapon. Stats keeps the level-1 values; the
// exported numeric fields are the current, leveled values.
type Weapon struct {
	Kind            WeaponKind
	Level           int
	Damage          float64
	Cooldown        float64 // Seconds until the next fire
	BaseCooldown    float64
	Count           int
	Radius          float64
	ExplosionRadius float64
	Stats           config.WeaponStats

	policy   config.LevelPolicy
	behavior weaponBehavior
}

// NewWeapon creates a level-1 weapon. ok is false for an unknown kind.
func NewWeapon(kind WeaponKind, stats config.WeaponStats, policy config.LevelPolicy) (*Weapon, bool) {
	behavior, ok := weaponBehaviors[kind]
	if !ok {
		return nil, false
	}
	count := stats.Count
	if count < 1 {
		count = 1
	}
	return &Weapon{
		Kind:            kind,
		Level:           1,
		Damage:          stats.Damage,
		BaseCooldown:    stats.Cooldown,
		Count:           count,
		Radius:          stats.Radius,
		ExplosionRadius: stats.ExplosionRadius,
		Stats:           stats,
		policy:          policy,
		behavior:        behavior,
	}, true
}

// Update fires at most once per call: a weapon whose cooldown has run out
// fires and rearms, otherwise the cooldown counts down.
func (w *Weapon) Update(dt float64, e *Engine) bool {
	if w.Cooldown <= 0 {
		w.behavior.fire(w, e)
		w.Cooldown = w.BaseCooldown
		return true
	}
	w.Cooldown -= dt
	return false
}

// LevelUp applies one step of the weapon's level policy.
func (w *Weapon) LevelUp() {
	w.Level++
	p := w.policy

	w.Damage = w.Damage*multiplier(p.DamageMultiplier) + p.DamageAdd
	if p.MinDamage > 0 && w.Damage < p.MinDamage {
		w.Damage = p.MinDamage
	}

	w.BaseCooldown *= multiplier(p.CooldownMultiplier)
	if w.BaseCooldown < w.Stats.MinCooldown {
		w.BaseCooldown = w.Stats.MinCooldown
	}

	if p.CountEvery > 0 && w.Level%p.CountEvery == 0 {
		w.Count++
	}

	if area := w.behavior.area(w); area != nil {
		*area *= multiplier(p.RadiusMultiplier)
	}
}

func multiplier(m float64) float64 {
	if m == 0 {
		return 1
	}
	return m
}

func fireKnife(w *Weapon, e *Engine) {
	p := e.player
	dir := p.Facing
	if target := e.nearestEnemy(p.Pos, w.Stats.TargetRange); target != nil {
		if d := target.Pos.Sub(p.Pos).Normalize(); !d.IsZero() {
			dir = d
		}
	}
	if dir.IsZero() {
		dir = Vec2{1, 0}
	}
	base := dir.Angle()

	for i := 0; i < w.Count; i++ {
		angle := base + w.Stats.Spread*(float64(i)-float64(w.Count-1)/2)
		if w.Stats.Jitter > 0 {
			angle += RandRange(e.rng, -w.Stats.Jitter, w.Stats.Jitter)
		}
		e.spawnProjectile(&Projectile{
			Body: Body{
				Pos:     p.Pos,
				Vel:     FromAngle(angle).Scale(w.Stats.Speed),
				Life:    w.Stats.Lifetime,
				MaxLife: w.Stats.Lifetime,
			},
			Kind:   ProjectileKnife,
			Source: w.Kind,
			Damage: w.Damage,
			Radius: w.Radius,
			Color:  w.Stats.Color,
		})
	}
}

// fireGarlic keeps exactly one live aura per weapon.
func fireGarlic(w *Weapon, e *Engine) {
	if e.hasAura(w.Kind) {
		return
	}
	e.spawnProjectile(&Projectile{
		Body: Body{
			Pos:     e.player.Pos,
			Life:    Infinite,
			MaxLife: Infinite,
		},
		Kind:         ProjectileAura,
		Source:       w.Kind,
		Damage:       w.Damage,
		Radius:       w.Radius,
		Color:        w.Stats.Color,
		TickInterval: w.Stats.TickInterval,
	})
}

func fireBomb(w *Weapon, e *Engine) {
	p := e.player
	target := e.nearestEnemy(p.Pos, w.Stats.TargetRange)

	for i := 0; i < w.Count; i++ {
		var dest Vec2
		if target != nil && i == 0 {
			dest = target.Pos
		} else {
			angle := e.rng.Float64() * 2 * math.Pi
			dest = p.Pos.Add(FromAngle(angle).Scale(w.Stats.ThrowDistance))
		}
		flight := w.Stats.TimeToTarget
		e.spawnProjectile(&Projectile{
			Body: Body{
				Pos:     p.Pos,
				Vel:     dest.Sub(p.Pos).Scale(1 / flight),
				Life:    w.Stats.FuseTime,
				MaxLife: w.Stats.FuseTime,
			},
			Kind:            ProjectileBomb,
			Source:          w.Kind,
			Damage:          w.Damage,
			Radius:          w.Radius,
			Color:           w.Stats.Color,
			ExplosionRadius: w.ExplosionRadius,
			ArcHeight:       w.Stats.ArcHeight,
			FlightTime:      flight,
		})
	}
}
