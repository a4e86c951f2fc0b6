package ripple

import "github.com/go-gl/mathgl/mgl32"

// Rect is the viewport's bounding rectangle in device coordinates.
type Rect struct {
	Left, Top, Width, Height float64
}

// Sample is one frame's view of the pointer.
type Sample struct {
	Pos      mgl32.Vec2
	Prev     mgl32.Vec2
	Velocity float64
	Inside   bool
}

// Tracker converts device pointer coordinates into normalized viewport
// coordinates (origin bottom-left) and derives a per-frame velocity.
type Tracker struct {
	rect   Rect
	pos    mgl32.Vec2
	prev   mgl32.Vec2
	inside bool
}

// NewTracker returns a tracker for the given viewport. The pointer starts outside.
func NewTracker(rect Rect) *Tracker {
	return &Tracker{rect: rect}
}

// SetRect updates the viewport rectangle, e.g. after a window resize.
func (t *Tracker) SetRect(rect Rect) {
	t.rect = rect
}

// Rect returns the current viewport rectangle.
func (t *Tracker) Rect() Rect {
	return t.rect
}

// OnMove records a pointer move in device coordinates. Points outside the
// viewport mark the tracker as outside and leave the position untouched.
func (t *Tracker) OnMove(deviceX, deviceY float64) {
	if t.rect.Width <= 0 || t.rect.Height <= 0 {
		return
	}
	x := (deviceX - t.rect.Left) / t.rect.Width
	y := 1 - (deviceY-t.rect.Top)/t.rect.Height
	if x < 0 || x > 1 || y < 0 || y > 1 {
		t.inside = false
		return
	}
	t.inside = true
	t.pos = mgl32.Vec2{float32(x), float32(y)}
}

// OnLeave marks the pointer as outside and snaps the previous position to the
// current one so re-entry does not register as a large jump.
func (t *Tracker) OnLeave() {
	t.inside = false
	t.prev = t.pos
}

// Inside reports whether the last event landed inside the viewport.
func (t *Tracker) Inside() bool {
	return t.inside
}

// Sample returns this frame's pointer state. It must be called exactly once per
// frame; afterwards the previous position equals the current one.
func (t *Tracker) Sample() Sample {
	s := Sample{Pos: t.pos, Prev: t.prev, Inside: t.inside}
	if t.inside {
		s.Velocity = float64(t.pos.Sub(t.prev).Len())
	}
	t.prev = t.pos
	return s
}
