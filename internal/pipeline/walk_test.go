package pipeline

import (
	"math"
	"testing"

	"ripplefx/internal/ripple"
)

func TestWalkStaysInsideViewport(t *testing.T) {
	r := ripple.Rect{Left: 100, Top: 50, Width: 400, Height: 200}
	w := NewWalk(7, 0.03)
	px, py := 300.0, 150.0
	for i := 0; i < 2000; i++ {
		x, y := w.Next(r)
		if x < r.Left || x > r.Left+r.Width || y < r.Top || y > r.Top+r.Height {
			t.Fatalf("step %d left the viewport: (%f, %f)", i, x, y)
		}
		step := math.Hypot((x-px)/r.Width, (y-py)/r.Height)
		if step > 0.03*math.Sqrt2+1e-9 {
			t.Fatalf("step %d moved %f, faster than the walk speed", i, step)
		}
		px, py = x, y
	}
}

func TestWalkIsDeterministic(t *testing.T) {
	r := ripple.Rect{Width: 1, Height: 1}
	a, b := NewWalk(42, 0.01), NewWalk(42, 0.01)
	for i := 0; i < 100; i++ {
		ax, ay := a.Next(r)
		bx, by := b.Next(r)
		if ax != bx || ay != by {
			t.Fatalf("step %d diverged", i)
		}
	}
}

func TestWalkDrivesRipples(t *testing.T) {
	p := newTestPipeline(t, 32, newRecordingCompositor())
	w := NewWalk(1, 0.02)
	var moving int
	for i := 0; i < 10; i++ {
		p.Move(w.Next(p.Tracker().Rect()))
		stats, err := p.Frame(testParams())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if stats.Velocity > ripple.VelocityThreshold {
			moving++
		}
	}
	if moving != 10 {
		t.Errorf("expected every walked frame to move, got %d", moving)
	}
}
