// Package pipeline drives one frame of the ripple effect: pointer sampling, one
// simulation step and one composite per registered image layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"ripplefx/internal/layer"
	"ripplefx/internal/ripple"
)

// Compositor draws the displaced layers for a frame. Begin is called once per
// frame with the fresh height field, then Composite once per layer. toField
// maps the layer's plane uv onto the field, which spans the tracker viewport.
type Compositor interface {
	Begin(field ripple.HeightField) error
	Composite(l *layer.Layer, u *ripple.Uniforms, toField ripple.FieldTransform) error
	// Release drops whatever the compositor holds for l.
	Release(l *layer.Layer)
	Close() error
}

// FrameStats describes one completed frame.
type FrameStats struct {
	Frame    uint64
	Events   int
	Step     time.Duration
	Total    time.Duration
	Velocity float64
	Inside   bool
	Field    ripple.FieldStats
}

// LogValue implements slog.LogValuer.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Duration("step", s.Step),
		slog.Duration("total", s.Total),
		slog.Float64("velocity", s.Velocity),
		slog.Any("field", s.Field),
	)
}

// Options tune a Pipeline.
type Options struct {
	// MeasureField fills FrameStats.Field every frame.
	MeasureField bool
	// TextureResolution is the side length layer images are resampled to.
	// Zero uses the grid resolution.
	TextureResolution int
}

// Pipeline owns the tracker, the simulation stage and the layers. Frame and
// Close must be called from one goroutine; pointer events may be pushed from
// any goroutine.
type Pipeline struct {
	tracker *ripple.Tracker
	stage   *ripple.Stage
	comp    Compositor
	loader  *layer.Loader
	layers  []*layer.Layer
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	events eventQueue
	frames uint64
	last   ripple.Uniforms
	closed bool
}

// New wires a pipeline around an initialized stage. The tracker starts with
// viewport.
func New(stage *ripple.Stage, comp Compositor, viewport ripple.Rect, opts Options) *Pipeline {
	res := opts.TextureResolution
	if res <= 0 {
		res = stage.Resolution()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		tracker: ripple.NewTracker(viewport),
		stage:   stage,
		comp:    comp,
		loader:  layer.NewLoader(res),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddLayer registers an image drawn on plane and starts loading it.
func (p *Pipeline) AddLayer(source string, plane image.Rectangle) *layer.Layer {
	l := layer.New(source, plane)
	if p.closed {
		l.Release()
		return l
	}
	p.layers = append(p.layers, l)
	p.loader.Load(p.ctx, l)
	return l
}

// RemoveLayer unregisters l and releases its resources.
func (p *Pipeline) RemoveLayer(l *layer.Layer) {
	for i, cur := range p.layers {
		if cur == l {
			p.layers = append(p.layers[:i], p.layers[i+1:]...)
			p.comp.Release(l)
			l.Release()
			return
		}
	}
}

// Layers returns the registered layers in draw order.
func (p *Pipeline) Layers() []*layer.Layer { return p.layers }

// Stage exposes the simulation stage.
func (p *Pipeline) Stage() *ripple.Stage { return p.stage }

// Tracker exposes the pointer tracker. It must only be touched from the frame
// goroutine; other goroutines use Push.
func (p *Pipeline) Tracker() *ripple.Tracker { return p.tracker }

// Uniforms returns the values used by the last frame.
func (p *Pipeline) Uniforms() ripple.Uniforms { return p.last }

// Frames returns the number of frames run.
func (p *Pipeline) Frames() uint64 { return p.frames }

// Closed reports whether Close has run.
func (p *Pipeline) Closed() bool { return p.closed }

// Push queues a pointer event for the next frame. Safe for concurrent use.
func (p *Pipeline) Push(ev Event) { p.events.push(ev) }

// Move queues a pointer move in device coordinates.
func (p *Pipeline) Move(x, y float64) { p.Push(Event{Kind: EventMove, X: x, Y: y}) }

// Leave queues a pointer-left-viewport event.
func (p *Pipeline) Leave() { p.Push(Event{Kind: EventLeave}) }

// SetViewport queues a viewport change.
func (p *Pipeline) SetViewport(r ripple.Rect) { p.Push(Event{Kind: EventRect, Rect: r}) }

// Frame runs one frame with the caller's current parameters. After Close it
// does nothing.
func (p *Pipeline) Frame(params ripple.Params) (FrameStats, error) {
	if p.closed {
		return FrameStats{}, nil
	}
	start := time.Now()

	// a newly adopted texture invalidates the compositor's copy
	for _, l := range p.layers {
		if l.Poll() {
			p.comp.Release(l)
		}
	}
	n := p.events.drain(func(ev Event) { apply(p.tracker, ev) })

	sample := p.tracker.Sample()
	u := ripple.NewUniforms(params, sample)
	p.last = u

	stepStart := time.Now()
	if err := p.stage.Step(u); err != nil {
		return FrameStats{}, err
	}
	stepTime := time.Since(stepStart)

	field := ripple.HeightField{Data: p.stage.Output(), Size: p.stage.Resolution()}
	if err := p.comp.Begin(field); err != nil {
		return FrameStats{}, fmt.Errorf("begin composite: %w", err)
	}
	viewport := p.tracker.Rect()
	var errs []error
	for _, l := range p.layers {
		if l.Texture() == nil {
			continue
		}
		if err := p.comp.Composite(l, &u, ripple.PlaneToField(PlaneRect(l.Plane), viewport)); err != nil {
			errs = append(errs, fmt.Errorf("composite %s: %w", l.Source, err))
		}
	}

	p.frames++
	stats := FrameStats{
		Frame:    p.frames,
		Events:   n,
		Step:     stepTime,
		Velocity: sample.Velocity,
		Inside:   sample.Inside,
	}
	if p.opts.MeasureField {
		stats.Field = ripple.Measure(field.Data)
	}
	stats.Total = time.Since(start)
	return stats, errors.Join(errs...)
}

// PlaneRect converts a layer plane to device coordinates.
func PlaneRect(r image.Rectangle) ripple.Rect {
	return ripple.Rect{
		Left:   float64(r.Min.X),
		Top:    float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// WaitForLayers blocks until every started image load has finished.
func (p *Pipeline) WaitForLayers() {
	p.loader.Wait()
	for _, l := range p.layers {
		if l.Poll() {
			p.comp.Release(l)
		}
	}
}

// Close releases the layers, the compositor and the stage in reverse order of
// construction. Calling it again is a no-op.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()

	var errs []error
	for _, l := range p.layers {
		p.comp.Release(l)
		l.Release()
	}
	p.layers = nil
	if err := p.comp.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing compositor: %w", err))
	}
	if err := p.stage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stage: %w", err))
	}
	return errors.Join(errs...)
}
