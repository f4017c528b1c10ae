package game

import "math"

// ProjectileKind selects how a projectile moves and hits.
type ProjectileKind uint8

const (
	ProjectileKnife ProjectileKind = iota
	ProjectileBomb
	ProjectileAura
)

func (k ProjectileKind) String() string {
	switch k {
	case ProjectileBomb:
		return "bomb"
	case ProjectileAura:
		return "aura"
	default:
		return "knife"
	}
}

// Projectile is any weapon-spawned hitting object: a thrown knife, a bomb in
// flight or on the ground, or a weapon's aura.
type Projectile struct {
	Body
	Kind   ProjectileKind
	Source WeaponKind // Owning weapon kind, looked up live by auras
	Damage float64
	Radius float64
	Color  string

	// Bomb
	ExplosionRadius float64
	ArcHeight       float64
	FlightTime      float64 // Seconds of travel left before the bomb lands
	Z               float64 // Visual height above the ground (negative is up)
	Detonated       bool

	// Aura
	TickInterval float64
	tickTimer    float64
}

// Update advances the projectile by dt.
func (p *Projectile) Update(dt float64, e *Engine) {
	switch p.Kind {
	case ProjectileKnife:
		p.Integrate(dt)
		p.Age(dt)
	case ProjectileBomb:
		p.updateBomb(dt)
	case ProjectileAura:
		p.updateAura(dt, e)
	}
}

func (p *Projectile) updateBomb(dt float64) {
	if p.FlightTime > 0 {
		step := math.Min(dt, p.FlightTime)
		p.Integrate(step)
		p.FlightTime -= step
		if p.FlightTime <= 0 {
			p.Vel = Vec2{}
		}
	}
	p.Age(dt)
	progress := 1 - p.LifeFraction()
	p.Z = -math.Sin(progress*math.Pi) * p.ArcHeight
}

// updateAura follows the player and reads its radius and damage from the
// owning weapon. An aura whose weapon is gone deletes itself.
func (p *Projectile) updateAura(dt float64, e *Engine) {
	w := e.player.Weapon(p.Source)
	if w == nil {
		p.Delete()
		return
	}
	p.Pos = e.player.Pos
	p.Radius = w.Radius
	p.Damage = w.Damage
	p.TickInterval = w.Stats.TickInterval

	p.tickTimer += dt
	if p.tickTimer < p.TickInterval {
		return
	}
	p.tickTimer = 0
	for _, en := range e.enemies {
		if en.Deleted {
			continue
		}
		if CircleRect(p.Pos, p.Radius, en.Rect()) {
			e.damageEnemy(en, p.Damage, false)
		}
	}
}

// Explosion damages every enemy in its radius once, on its first update,
// then lingers as a visual until its life runs out.
type Explosion struct {
	Body
	Radius float64
	Damage float64
	Active bool
}

// Update applies the one-time damage and ages the explosion.
func (x *Explosion) Update(dt float64, e *Engine) {
	if x.Active {
		x.Active = false
		for _, en := range e.enemies {
			if en.Deleted {
				continue
			}
			if CircleRect(x.Pos, x.Radius, en.Rect()) {
				e.damageEnemy(en, x.Damage, false)
			}
		}
		e.triggerShake(e.bal.Effects.ExplosionShake)
	}
	x.Age(dt)
}
