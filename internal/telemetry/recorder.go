// Package telemetry records per-frame statistics to CSV and logs rolling
// summaries.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"ripplefx/internal/pipeline"
)

// FrameRecord is one CSV row.
type FrameRecord struct {
	Frame    uint64  `csv:"frame"`
	Backend  string  `csv:"backend"`
	StepMs   float64 `csv:"step_ms"`
	TotalMs  float64 `csv:"total_ms"`
	Velocity float64 `csv:"velocity"`
	Inside   bool    `csv:"inside"`
	Energy   float64 `csv:"energy"`
	Peak     float64 `csv:"peak"`
	MeanAbs  float64 `csv:"mean_abs"`
}

// NewFrameRecord flattens pipeline stats into a row.
func NewFrameRecord(backend string, s pipeline.FrameStats) FrameRecord {
	return FrameRecord{
		Frame:    s.Frame,
		Backend:  backend,
		StepMs:   float64(s.Step.Microseconds()) / 1000,
		TotalMs:  float64(s.Total.Microseconds()) / 1000,
		Velocity: s.Velocity,
		Inside:   s.Inside,
		Energy:   s.Field.Energy,
		Peak:     s.Field.Peak,
		MeanAbs:  s.Field.MeanAbs,
	}
}

// Recorder appends frame records to a CSV file and logs a summary every
// interval. A nil *Recorder is valid and records nothing.
type Recorder struct {
	backend       string
	out           io.WriteCloser
	headerWritten bool

	window   *Window
	interval time.Duration
	lastLog  time.Time
	now      func() time.Time
}

// NewRecorder creates the CSV at path (skipped when path is empty) and logs a
// summary every interval (never when interval is zero). Returns nil when both
// are disabled.
func NewRecorder(path string, interval time.Duration, backend string) (*Recorder, error) {
	if path == "" && interval <= 0 {
		return nil, nil
	}
	r := &Recorder{
		backend:  backend,
		window:   NewWindow(120),
		interval: interval,
		now:      time.Now,
	}
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating telemetry directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		r.out = f
	}
	r.lastLog = r.now()
	return r, nil
}

// Record adds one frame.
func (r *Recorder) Record(s pipeline.FrameStats) error {
	if r == nil {
		return nil
	}
	r.window.Add(s)
	if r.interval > 0 && r.now().Sub(r.lastLog) >= r.interval {
		r.lastLog = r.now()
		slog.Info("frame summary", "backend", r.backend, "window", r.window.Summary())
	}
	if r.out == nil {
		return nil
	}
	records := []FrameRecord{NewFrameRecord(r.backend, s)}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.out); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.out); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Summary returns the rolling window summary.
func (r *Recorder) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	return r.window.Summary()
}

// Close closes the CSV file.
func (r *Recorder) Close() error {
	if r == nil || r.out == nil {
		return nil
	}
	err := r.out.Close()
	r.out = nil
	return err
}
