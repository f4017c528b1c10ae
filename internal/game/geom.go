package game

import (
	"math"
	"math/rand"
)

// Vec2 is a 2D vector in logical world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec2{x, y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2       { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2       { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2  { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64          { return math.Hypot(v.X, v.Y) }
func (v Vec2) LenSq() float64        { return v.X*v.X + v.Y*v.Y }
func (v Vec2) Dist(o Vec2) float64   { return math.Hypot(v.X-o.X, v.Y-o.Y) }
func (v Vec2) IsZero() bool          { return v.X == 0 && v.Y == 0 }
func (v Vec2) Angle() float64        { return math.Atan2(v.Y, v.X) }
func (v Vec2) DistSq(o Vec2) float64 { return (v.X-o.X)*(v.X-o.X) + (v.Y-o.Y)*(v.Y-o.Y) }

// Normalize returns the unit vector of v, or the zero vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Rotate returns v rotated by theta radians.
func (v Vec2) Rotate(theta float64) Vec2 {
	s, c := math.Sincos(theta)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// FromAngle returns the unit vector pointing at theta radians.
func FromAngle(theta float64) Vec2 {
	s, c := math.Sincos(theta)
	return Vec2{c, s}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// RandRange returns a uniform value in [lo, hi).
func RandRange(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// Rect is an axis-aligned rectangle stored as centre plus size.
type Rect struct {
	Center Vec2
	W, H   float64
}

func (r Rect) MinX() float64 { return r.Center.X - r.W/2 }
func (r Rect) MaxX() float64 { return r.Center.X + r.W/2 }
func (r Rect) MinY() float64 { return r.Center.Y - r.H/2 }
func (r Rect) MaxY() float64 { return r.Center.Y + r.H/2 }

// ClosestPoint returns the point of r nearest to p.
func (r Rect) ClosestPoint(p Vec2) Vec2 {
	return Vec2{
		X: Clamp(p.X, r.MinX(), r.MaxX()),
		Y: Clamp(p.Y, r.MinY(), r.MaxY()),
	}
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX() && p.X <= r.MaxX() && p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// CircleRect reports whether a circle touches a rectangle.
// Contact at exactly the radius counts as a hit.
func CircleRect(c Vec2, radius float64, r Rect) bool {
	return c.DistSq(r.ClosestPoint(c)) <= radius*radius
}
