package main

import (
	"errors"
	"fmt"
	"log/slog"

	"ripplefx/internal/config"
	"ripplefx/internal/pipeline"
	"ripplefx/internal/ripple"
	"ripplefx/internal/snapshot"
	"ripplefx/internal/telemetry"
)

// runHeadless drives the pipeline with a scripted pointer walk and writes
// every Nth composited frame of each layer as WebP. No window or GPU context
// is created; compositing runs on the CPU.
func runHeadless(cfg *config.Config, stage *ripple.Stage, recorder *telemetry.Recorder) (err error) {
	h := cfg.Headless
	comp := pipeline.NewCPUCompositor(cfg.Backend.Workers)
	viewport := viewportRect(cfg.Window.Width, cfg.Window.Height)
	pipe := pipeline.New(stage, comp, viewport, pipeline.Options{MeasureField: recorder != nil})
	defer func() {
		err = errors.Join(err, pipe.Close())
	}()
	addLayers(pipe, cfg)
	pipe.WaitForLayers()
	for i, l := range pipe.Layers() {
		if l.Err() != nil {
			slog.Warn("layer skipped", "layer", i, "error", l.Err())
		}
	}

	writer, err := snapshot.NewWriter(h.OutDir, h.Animate, uint(headlessFrameDelayMs*h.Every))
	if err != nil {
		return err
	}

	if *recordDefaultPGO {
		stop, perr := startDefaultPGORecording(pgoProfilePath)
		if perr != nil {
			slog.Warn("PGO capture unavailable", "error", perr)
		} else {
			defer stop()
		}
	}

	walk := pipeline.NewWalk(1, autoWalkSpeed)
	for frame := 0; frame < h.Frames; frame++ {
		pipe.Move(walk.Next(viewport))
		stats, ferr := pipe.Frame(cfg.Ripple)
		if ferr != nil {
			return fmt.Errorf("frame %d: %w", frame, ferr)
		}
		if rerr := recorder.Record(stats); rerr != nil {
			slog.Warn("telemetry write failed, disabling", "error", rerr)
			recorder.Close()
			recorder = nil
		}
		if frame%h.Every != 0 {
			continue
		}
		for i, l := range pipe.Layers() {
			img := comp.Output(l)
			if img == nil {
				continue
			}
			if werr := writer.WriteFrame(i, stats.Frame, img); werr != nil {
				return werr
			}
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	slog.Info("headless run finished", "frames", h.Frames, "written", writer.Written(), "dir", h.OutDir)
	return nil
}
