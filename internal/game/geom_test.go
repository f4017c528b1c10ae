package game

import (
	"math"
	"testing"
)

func TestCircleRect(t *testing.T) {
	box := Rect{Center: V(5, 5), W: 10, H: 10} // spans 0..10 on both axes

	tests := []struct {
		name   string
		center Vec2
		radius float64
		want   bool
	}{
		{"inside", V(5, 5), 1, true},
		{"touching edge exactly", V(15, 5), 5, true},
		{"just outside edge", V(15.0001, 5), 5, false},
		{"touching corner exactly", V(13, 14), 5, true},
		{"outside corner", V(13, 14), 4.99, false},
		{"overlapping from left", V(-3, 5), 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CircleRect(tt.center, tt.radius, box); got != tt.want {
				t.Errorf("CircleRect(%v, %v) = %v, want %v", tt.center, tt.radius, got, tt.want)
			}
		})
	}
}

func TestVec2(t *testing.T) {
	if n := (Vec2{}).Normalize(); !n.IsZero() {
		t.Errorf("zero vector should normalize to zero, got %v", n)
	}
	if l := V(3, 4).Normalize().Len(); math.Abs(l-1) > 1e-12 {
		t.Errorf("normalized length = %v, want 1", l)
	}
	if d := V(0, 0).Dist(V(3, 4)); d != 5 {
		t.Errorf("Dist = %v, want 5", d)
	}
	r := V(1, 0).Rotate(math.Pi / 2)
	if math.Abs(r.X) > 1e-12 || math.Abs(r.Y-1) > 1e-12 {
		t.Errorf("Rotate 90° = %v, want (0,1)", r)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 0, 10) != 0 || Clamp(11, 0, 10) != 10 || Clamp(5, 0, 10) != 5 {
		t.Error("Clamp out of range")
	}
}

func TestCompactDropsDeletedInPlace(t *testing.T) {
	pool := []*Particle{{}, {}, {}, {}}
	pool[1].Delete()
	pool[1].Delete() // idempotent
	pool[3].Delete()
	keep0, keep2 := pool[0], pool[2]

	out := compact(pool)
	if len(out) != 2 || out[0] != keep0 || out[1] != keep2 {
		t.Fatalf("unexpected compaction result: %d entries", len(out))
	}
	if pool[2] != nil || pool[3] != nil {
		t.Error("tail slots should be cleared")
	}
}
