package telemetry

import (
	"log/slog"
	"time"

	"ripplefx/internal/pipeline"
)

// Window keeps the most recent frames in a ring.
type Window struct {
	samples []pipeline.FrameStats
	next    int
	count   int
}

// NewWindow returns a window of size frames; size < 1 means 60.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 60
	}
	return &Window{samples: make([]pipeline.FrameStats, size)}
}

// Add records s, evicting the oldest frame once full.
func (w *Window) Add(s pipeline.FrameStats) {
	w.samples[w.next] = s
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// Len returns the number of frames held.
func (w *Window) Len() int { return w.count }

// Summary aggregates the frames in the window.
type Summary struct {
	Frames    int
	AvgStep   time.Duration
	MaxStep   time.Duration
	AvgTotal  time.Duration
	MaxEnergy float64
	MaxPeak   float64
	LastFrame uint64
}

// Summary computes the aggregate over the held frames.
func (w *Window) Summary() Summary {
	if w.count == 0 {
		return Summary{}
	}
	var s Summary
	var step, total time.Duration
	for i := 0; i < w.count; i++ {
		f := w.samples[i]
		step += f.Step
		total += f.Total
		s.MaxStep = max(s.MaxStep, f.Step)
		s.MaxEnergy = max(s.MaxEnergy, f.Field.Energy)
		s.MaxPeak = max(s.MaxPeak, f.Field.Peak)
		s.LastFrame = max(s.LastFrame, f.Frame)
	}
	s.Frames = w.count
	s.AvgStep = step / time.Duration(w.count)
	s.AvgTotal = total / time.Duration(w.count)
	return s
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frames", s.Frames),
		slog.Duration("avg_step", s.AvgStep),
		slog.Duration("max_step", s.MaxStep),
		slog.Duration("avg_total", s.AvgTotal),
		slog.Float64("max_energy", s.MaxEnergy),
		slog.Float64("max_peak", s.MaxPeak),
	)
}
