package game

import (
	"math"

	"survivor-arena/internal/config"
)

// ExpOrb is an experience pickup dropped by a dead enemy.
// Orbs drift toward the player once inside the attract radius and keep
// accelerating until collected.
type ExpOrb struct {
	Body
	Value     float64
	Radius    float64
	Color     string
	Attracted bool
	Speed     float64
}

func newExpOrb(pos Vec2, value float64, b config.PickupBalance) *ExpOrb {
	o := &ExpOrb{
		Body:   Body{Pos: pos, Life: b.OrbLifetime, MaxLife: b.OrbLifetime},
		Value:  value,
		Radius: 4,
		Color:  "#4facfe",
	}
	switch {
	case value > 100:
		o.Radius, o.Color = 8, "#ff4757"
	case value > 10:
		o.Radius, o.Color = 6, "#2ed573"
	}
	return o
}

// Update moves the orb toward target and reports whether it was collected.
func (o *ExpOrb) Update(dt float64, target Vec2, b config.PickupBalance) bool {
	if o.Deleted {
		return false
	}
	d := o.Pos.Dist(target)
	if d <= b.CollectRadius {
		o.Delete()
		return true
	}
	if !o.Attracted && d < b.AttractRadius {
		o.Attracted = true
		o.Speed = b.AttractSpeed
	}
	if o.Attracted {
		step := math.Min(o.Speed*dt, d)
		o.Pos = o.Pos.Add(target.Sub(o.Pos).Normalize().Scale(step))
		o.Speed = math.Min(o.Speed+b.AttractAcceleration*dt, b.MaxAttractSpeed)
		if o.Pos.Dist(target) <= b.CollectRadius {
			o.Delete()
			return true
		}
	}
	o.Age(dt)
	return false
}
