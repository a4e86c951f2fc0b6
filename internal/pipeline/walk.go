package pipeline

import (
	"math"
	"math/rand"

	"ripplefx/internal/ripple"
)

// Walk is a scripted pointer wandering across a viewport in straight runs
// with random headings, bouncing off a margin. It stands in for a user when
// rendering headless or recording a profile.
type Walk struct {
	rng    *rand.Rand
	x, y   float64 // normalized, origin top-left
	dx, dy float64
	run    int
	speed  float64
}

const walkMargin = 0.05

// NewWalk starts at the viewport centre. speed is the distance covered per
// frame as a fraction of the viewport.
func NewWalk(seed int64, speed float64) *Walk {
	return &Walk{rng: rand.New(rand.NewSource(seed)), x: 0.5, y: 0.5, speed: speed}
}

// Next advances one frame and returns the pointer in device coordinates of r.
func (w *Walk) Next(r ripple.Rect) (float64, float64) {
	if w.run <= 0 {
		w.turn()
	}
	w.run--
	w.x += w.dx * w.speed
	w.y += w.dy * w.speed
	if w.x < walkMargin || w.x > 1-walkMargin {
		w.dx = -w.dx
		w.x = min(max(w.x, walkMargin), 1-walkMargin)
	}
	if w.y < walkMargin || w.y > 1-walkMargin {
		w.dy = -w.dy
		w.y = min(max(w.y, walkMargin), 1-walkMargin)
	}
	return r.Left + w.x*r.Width, r.Top + w.y*r.Height
}

func (w *Walk) turn() {
	angle := w.rng.Float64() * 2 * math.Pi
	w.dx = math.Cos(angle)
	w.dy = math.Sin(angle)
	w.run = 20 + w.rng.Intn(50)
}
