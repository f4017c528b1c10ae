package game

import (
	"math"

	"survivor-arena/internal/config"
)

// Player is the single controllable character of a run.
type Player struct {
	Pos          Vec2
	Radius       float64
	Speed        float64
	HP, MaxHP    float64
	Level        int
	Exp          float64
	NextLevelExp float64
	Facing       Vec2
	Color        string
	Weapons      []*Weapon

	// Knockback decays linearly from KnockbackVel to zero over its duration.
	KnockbackVel      Vec2
	knockbackTimer    float64
	knockbackDuration float64

	invulnerability float64
	lastDamageAt    float64
	hasBeenHit      bool
	expScaling      float64
}

// NewPlayer creates a level-1 player at the origin with no weapons.
func NewPlayer(b config.PlayerBalance) *Player {
	return &Player{
		Radius:          b.Radius,
		Speed:           b.Speed,
		HP:              b.MaxHP,
		MaxHP:           b.MaxHP,
		Level:           1,
		NextLevelExp:    b.InitialNextLevelExp,
		Facing:          Vec2{1, 0},
		Color:           b.Color,
		invulnerability: b.InvulnerabilityWindow,
		expScaling:      b.ExpScalingFactor,
	}
}

// Update moves the player along intent (a vector of length <= 1) plus any
// active knockback.
func (p *Player) Update(dt float64, intent Vec2) {
	intent = ClampIntent(intent)
	move := intent.Scale(p.Speed)
	if !intent.IsZero() {
		p.Facing = intent.Normalize()
	}

	if p.knockbackTimer > 0 {
		frac := p.knockbackTimer / p.knockbackDuration
		move = move.Add(p.KnockbackVel.Scale(frac))
		p.knockbackTimer -= dt
		if p.knockbackTimer <= 0 {
			p.knockbackTimer = 0
			p.KnockbackVel = Vec2{}
		}
	}

	p.Pos = p.Pos.Add(move.Scale(dt))
}

// Invulnerable reports whether contact damage would be ignored at game time now.
func (p *Player) Invulnerable(now float64) bool {
	return p.hasBeenHit && now-p.lastDamageAt < p.invulnerability
}

// TakeContactDamage applies damage unless the player is still inside the
// invulnerability window of the previous hit. It reports whether damage landed.
func (p *Player) TakeContactDamage(amount, now float64) bool {
	if p.Invulnerable(now) {
		return false
	}
	p.HP = math.Max(p.HP-amount, 0)
	p.lastDamageAt = now
	p.hasBeenHit = true
	return true
}

// ApplyKnockback pushes the player away from source.
func (p *Player) ApplyKnockback(source Vec2, force, duration float64) {
	if force <= 0 || duration <= 0 {
		return
	}
	dir := p.Pos.Sub(source).Normalize()
	if dir.IsZero() {
		dir = p.Facing.Scale(-1)
	}
	p.KnockbackVel = dir.Scale(force)
	p.knockbackTimer = duration
	p.knockbackDuration = duration
}

// GainExp adds experience and returns how many levels were gained.
// Excess experience carries into the next level.
func (p *Player) GainExp(amount float64) int {
	if amount <= 0 {
		return 0
	}
	p.Exp += amount
	levels := 0
	for p.Exp >= p.NextLevelExp {
		p.Exp -= p.NextLevelExp
		p.Level++
		levels++
		p.NextLevelExp = math.Max(math.Floor(p.NextLevelExp*p.expScaling), 1)
	}
	return levels
}

// Heal restores hp, capped at MaxHP.
func (p *Player) Heal(amount float64) {
	p.HP = math.Min(p.HP+amount, p.MaxHP)
}

// Weapon returns the owned weapon of the given kind, or nil.
func (p *Player) Weapon(kind WeaponKind) *Weapon {
	for _, w := range p.Weapons {
		if w.Kind == kind {
			return w
		}
	}
	return nil
}

// AddWeapon grants a weapon. A kind the player already owns is ignored.
func (p *Player) AddWeapon(w *Weapon) bool {
	if w == nil || p.Weapon(w.Kind) != nil {
		return false
	}
	p.Weapons = append(p.Weapons, w)
	return true
}
