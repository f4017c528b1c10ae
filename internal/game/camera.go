package game

// Camera maps the logical world onto a physical screen.
//
// The short side of the logical viewport is always Reference units and the
// long side follows the physical aspect ratio, so a phone in portrait sees the
// same vertical slice of the world a desktop sees horizontally.
type Camera struct {
	PhysicalWidth  float64
	PhysicalHeight float64
	Reference      float64
	ViewWidth      float64 // Logical width of the viewport
	ViewHeight     float64 // Logical height of the viewport
	Scale          float64 // Physical pixels per logical unit
	Pos            Vec2    // World position of the viewport's top-left corner
}

// NewCamera creates a camera for the given physical size.
func NewCamera(physWidth, physHeight, reference float64) Camera {
	c := Camera{Reference: reference}
	c.Resize(physWidth, physHeight)
	return c
}

// Resize recomputes the logical viewport for a new physical size.
// Non-positive sizes fall back to a square screen.
func (c *Camera) Resize(physWidth, physHeight float64) {
	if c.Reference <= 0 {
		c.Reference = 720
	}
	if physWidth <= 0 || physHeight <= 0 {
		physWidth, physHeight = c.Reference, c.Reference
	}
	center := c.Center()
	c.PhysicalWidth = physWidth
	c.PhysicalHeight = physHeight

	if physWidth >= physHeight {
		c.ViewHeight = c.Reference
		c.ViewWidth = c.Reference * physWidth / physHeight
	} else {
		c.ViewWidth = c.Reference
		c.ViewHeight = c.Reference * physHeight / physWidth
	}
	c.Scale = physWidth / c.ViewWidth
	c.Follow(center)
}

// Follow centres the viewport on target.
func (c *Camera) Follow(target Vec2) {
	c.Pos = Vec2{target.X - c.ViewWidth/2, target.Y - c.ViewHeight/2}
}

// Center is the world point at the middle of the viewport.
func (c *Camera) Center() Vec2 {
	return Vec2{c.Pos.X + c.ViewWidth/2, c.Pos.Y + c.ViewHeight/2}
}

// Viewport is the visible world rectangle.
func (c *Camera) Viewport() Rect {
	return Rect{Center: c.Center(), W: c.ViewWidth, H: c.ViewHeight}
}

// WorldToScreen converts a world point to physical pixels, applying shake.
func (c *Camera) WorldToScreen(p, shake Vec2) Vec2 {
	return p.Sub(c.Pos).Add(shake).Scale(c.Scale)
}

// ScreenToWorld converts physical pixels to a world point (shake ignored).
func (c *Camera) ScreenToWorld(s Vec2) Vec2 {
	if c.Scale == 0 {
		return c.Pos
	}
	return s.Scale(1 / c.Scale).Add(c.Pos)
}
