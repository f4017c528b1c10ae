package game

import (
	"math/rand"
	"strconv"

	"survivor-arena/internal/config"
)

// ScreenShake is the camera shake shared by every feedback source of a run.
// Overlapping requests keep the stronger intensity and the longer remaining time.
type ScreenShake struct {
	Intensity float64 // Current shake magnitude (logical units)
	Remaining float64 // Seconds left
	OffsetX   float64 // Current X offset (computed each tick)
	OffsetY   float64 // Current Y offset (computed each tick)
}

// Trigger requests a shake.
func (s *ScreenShake) Trigger(req config.Shake) {
	if req.Intensity <= 0 || req.Duration <= 0 {
		return
	}
	if s.Remaining <= 0 || req.Intensity > s.Intensity {
		s.Intensity = req.Intensity
	}
	if req.Duration > s.Remaining {
		s.Remaining = req.Duration
	}
}

// Update advances the shake and recomputes the offset.
func (s *ScreenShake) Update(dt float64, rng *rand.Rand) {
	if s.Remaining <= 0 {
		s.Intensity, s.OffsetX, s.OffsetY = 0, 0, 0
		return
	}
	s.Remaining -= dt
	if s.Remaining <= 0 {
		s.Remaining, s.Intensity, s.OffsetX, s.OffsetY = 0, 0, 0, 0
		return
	}
	s.OffsetX = (rng.Float64() - 0.5) * 2 * s.Intensity
	s.OffsetY = (rng.Float64() - 0.5) * 2 * s.Intensity
}

// Offset returns the current shake offset.
func (s *ScreenShake) Offset() Vec2 { return Vec2{s.OffsetX, s.OffsetY} }

// Particle is a short-lived hit spark.
type Particle struct {
	Body
	Size  float64
	Color string
}

// Update moves and ages the particle.
func (p *Particle) Update(dt float64) {
	p.Integrate(dt)
	p.Vel = p.Vel.Scale(1 - Clamp(dt*3, 0, 1))
	p.Age(dt)
}

// DamageNumber is a floating number shown where damage landed.
type DamageNumber struct {
	Body
	Text  string
	Color string
}

func newDamageNumber(pos Vec2, amount float64, fx config.EffectsBalance) *DamageNumber {
	return &DamageNumber{
		Body: Body{
			Pos:     pos,
			Vel:     Vec2{0, -fx.DamageNumberRise},
			Life:    fx.DamageNumberLife,
			MaxLife: fx.DamageNumberLife,
		},
		Text:  strconv.Itoa(int(amount + 0.5)),
		Color: "#ffffff",
	}
}

// Update floats the number upward and fades it.
func (d *DamageNumber) Update(dt float64) {
	d.Integrate(dt)
	d.Age(dt)
}

// Weather is decorative and cycles on a fixed interval.
type Weather struct {
	Kind     string
	Timer    float64
	Interval float64
}

var weatherCycle = []string{"clear", "rain", "snow"}

func newWeather(interval float64) Weather {
	return Weather{Kind: weatherCycle[0], Interval: interval}
}

// Update advances the cycle.
func (w *Weather) Update(dt float64) {
	if w.Interval <= 0 {
		return
	}
	w.Timer += dt
	for w.Timer >= w.Interval {
		w.Timer -= w.Interval
		w.Kind = nextWeather(w.Kind)
	}
}

func nextWeather(kind string) string {
	for i, k := range weatherCycle {
		if k == kind {
			return weatherCycle[(i+1)%len(weatherCycle)]
		}
	}
	return weatherCycle[0]
}
