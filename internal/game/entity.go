package game

import "math"

// Infinite marks a body that never expires on its own.
var Infinite = math.Inf(1)

// Body is the shared lifecycle state of short-lived world objects.
// Objects are never removed mid-iteration: they are marked deleted and
// dropped by the next compaction.
type Body struct {
	ID      uint64
	Pos     Vec2
	Vel     Vec2
	Life    float64
	MaxLife float64
	Deleted bool
}

// Integrate advances the position by the velocity.
func (b *Body) Integrate(dt float64) {
	b.Pos = b.Pos.Add(b.Vel.Scale(dt))
}

// Age consumes dt of remaining life and marks the body deleted once it runs out.
func (b *Body) Age(dt float64) {
	if math.IsInf(b.Life, 1) {
		return
	}
	b.Life -= dt
	if b.Life <= 0 {
		b.Deleted = true
	}
}

// LifeFraction is remaining life over total life, in [0,1].
func (b *Body) LifeFraction() float64 {
	if b.MaxLife <= 0 || math.IsInf(b.MaxLife, 1) {
		return 1
	}
	return Clamp(b.Life/b.MaxLife, 0, 1)
}

// Delete marks the body for removal. Calling it twice is harmless.
func (b *Body) Delete()         { b.Deleted = true }
func (b *Body) IsDeleted() bool { return b.Deleted }

type deletable interface {
	IsDeleted() bool
}

// compact drops deleted entries in place, keeping order and capacity.
func compact[T deletable](pool []T) []T {
	n := 0
	for _, item := range pool {
		if !item.IsDeleted() {
			pool[n] = item
			n++
		}
	}
	var zero T
	for i := n; i < len(pool); i++ {
		pool[i] = zero
	}
	return pool[:n]
}
