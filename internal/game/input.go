package game

import "math"

// ClampIntent limits a movement intent to unit length. Non-finite input is
// treated as no input.
func ClampIntent(v Vec2) Vec2 {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return Vec2{}
	}
	if v.LenSq() > 1 {
		return v.Normalize()
	}
	return v
}

// IntentFromKeys builds an intent from directional keys. Diagonals are
// normalized so they are not faster than straight moves.
func IntentFromKeys(up, down, left, right bool) Vec2 {
	var v Vec2
	if up {
		v.Y--
	}
	if down {
		v.Y++
	}
	if left {
		v.X--
	}
	if right {
		v.X++
	}
	return v.Normalize()
}

// IntentFromPointer steers toward a pointer held at world position target.
// Inside deadZone the player stands still.
func IntentFromPointer(target, player Vec2, deadZone float64) Vec2 {
	d := target.Sub(player)
	if d.Len() <= deadZone {
		return Vec2{}
	}
	return d.Normalize()
}
