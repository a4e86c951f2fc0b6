package main

import (
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"ripplefx/internal/config"
	"ripplefx/internal/pipeline"
	"ripplefx/internal/ripple"
	"ripplefx/internal/sound"
	"ripplefx/internal/telemetry"
)

// Game adapts the frame pipeline to ebiten: Update runs one pipeline frame,
// Draw puts the composited layers on screen.
type Game struct {
	pipe      *pipeline.Pipeline
	display   *shaderCompositor
	watcher   *config.Watcher
	cfg       *config.Config
	recorder  *telemetry.Recorder
	lastPoll  time.Time
	lastStats pipeline.FrameStats
	energy    []float64

	cursorX, cursorY int
	cursorIn         bool

	autoWalk         bool
	autoWalkDeadline time.Time
	walk             *pipeline.Walk
	stopProfile      func()

	audioCtx    *audio.Context
	audioStream *sound.Stream
	audioPlayer *audio.Player

	closed bool
}

// newGame builds the ebiten front end around an initialized pipeline.
func newGame(pipe *pipeline.Pipeline, display *shaderCompositor, watcher *config.Watcher, recorder *telemetry.Recorder) *Game {
	g := &Game{
		pipe:     pipe,
		display:  display,
		watcher:  watcher,
		cfg:      watcher.Current(),
		recorder: recorder,
		lastPoll: time.Now(),
		cursorX:  -1,
		cursorY:  -1,
	}
	if g.cfg.Audio.Enabled {
		g.startAudio()
	}
	return g
}

// Update runs exactly one pipeline frame per tick; TPS is synced to the
// display refresh.
func (g *Game) Update() error {
	if g.closed {
		return ebiten.Termination
	}
	g.pollConfig()
	g.handleDebugControls()
	g.feedPointer()

	stats, err := g.pipe.Frame(g.cfg.Ripple)
	if err != nil {
		return err
	}
	g.lastStats = stats
	if *debugFlag {
		g.pushEnergy(stats.Field.Energy)
	}
	if err := g.recorder.Record(stats); err != nil {
		slog.Warn("telemetry write failed, disabling", "error", err)
		g.recorder.Close()
		g.recorder = nil
	}
	if g.audioStream != nil {
		u := g.pipe.Uniforms()
		h := g.pipe.Stage().HeightAt(ripple.Sample{Pos: u.Pointer})
		g.audioStream.SetSample(h, u.Velocity)
	}
	return nil
}

// pollConfig reloads the YAML file once a second, or right away on F5.
func (g *Game) pollConfig() {
	var (
		cfg     *config.Config
		changed bool
		err     error
	)
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		cfg, changed, err = g.watcher.Reload()
	case time.Since(g.lastPoll) >= configPollInterval:
		g.lastPoll = time.Now()
		cfg, changed, err = g.watcher.Poll()
	default:
		return
	}
	if err != nil {
		slog.Warn("configuration reload failed, keeping previous values", "error", err)
		return
	}
	if !changed {
		return
	}
	applyFlagOverrides(cfg)
	if cfg.Grid.Resolution != g.cfg.Grid.Resolution || cfg.Backend != g.cfg.Backend {
		slog.Warn("grid and backend changes need a restart", "resolution", cfg.Grid.Resolution, "backend", cfg.Backend.Kind)
	}
	g.cfg = cfg
	if g.audioStream == nil && cfg.Audio.Enabled {
		g.startAudio()
	}
}

func (g *Game) pushEnergy(e float64) {
	g.energy = append(g.energy, e)
	if len(g.energy) > overlayEnergyHistory {
		g.energy = g.energy[len(g.energy)-overlayEnergyHistory:]
	}
}

// close tears the pipeline down once. Later Update calls end the run loop.
func (g *Game) close() {
	if g.closed {
		return
	}
	g.closed = true
	if g.stopProfile != nil {
		g.stopProfile()
	}
	if g.audioPlayer != nil {
		g.audioPlayer.Close()
	}
	if err := g.pipe.Close(); err != nil {
		slog.Error("pipeline teardown", "error", err)
	}
}
