package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"runtime"

	"github.com/hajimehoshi/ebiten/v2"

	"ripplefx/internal/config"
	"ripplefx/internal/pipeline"
	"ripplefx/internal/remote"
	"ripplefx/internal/ripple"
	"ripplefx/internal/telemetry"
)

func main() {
	flag.Parse()
	runtime.GOMAXPROCS(runtime.NumCPU())
	setupLogging()

	if err := run(); err != nil {
		if errors.Is(err, ripple.ErrResourceExhausted) {
			slog.Error("cannot allocate simulation resources", "error", err)
		} else {
			slog.Error("fatal", "error", err)
		}
		os.Exit(1)
	}
}

func setupLogging() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if *verboseFlag {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if *logJSONFlag {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func run() error {
	watcher, err := config.NewWatcher(*configPathFlag)
	if err != nil {
		return err
	}
	cfg := watcher.Current()
	applyFlagOverrides(cfg)

	stage, err := newStage(cfg)
	if err != nil {
		return err
	}
	recorder, err := telemetry.NewRecorder(cfg.Telemetry.CSV, cfg.Telemetry.LogInterval, stage.Backend())
	if err != nil {
		stage.Close()
		return err
	}
	defer recorder.Close()

	slog.Info("simulation ready", "backend", stage.Backend(), "resolution", cfg.Grid.Resolution, "layers", len(cfg.Layers))
	if *headlessFlag {
		return runHeadless(cfg, stage, recorder)
	}
	return runWindow(cfg, watcher, stage, recorder)
}

// addLayers registers every configured image; loads run in the background.
func addLayers(pipe *pipeline.Pipeline, cfg *config.Config) {
	for _, l := range cfg.Layers {
		pipe.AddLayer(l.Source, l.Plane.Rect(cfg.Window.Width, cfg.Window.Height))
	}
	if len(cfg.Layers) == 0 {
		slog.Warn("no image layers configured; pass -images or add layers to the config")
	}
}

func runWindow(cfg *config.Config, watcher *config.Watcher, stage *ripple.Stage, recorder *telemetry.Recorder) error {
	display, err := newShaderCompositor(cfg.Grid.Resolution)
	if err != nil {
		stage.Close()
		return err
	}
	pipe := pipeline.New(stage, display, viewportRect(cfg.Window.Width, cfg.Window.Height), pipeline.Options{
		MeasureField: *debugFlag || recorder != nil,
	})
	addLayers(pipe, cfg)

	if cfg.Remote.Addr != "" {
		srv := remote.NewServer(pipe, cfg.Remote.Path, cfg.Grid.Resolution)
		if _, err := srv.Start(cfg.Remote.Addr); err != nil {
			pipe.Close()
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), remoteShutdownTimeout)
			defer cancel()
			srv.Close(ctx)
		}()
	}

	g := newGame(pipe, display, watcher, recorder)
	defer g.close()
	if *recordDefaultPGO {
		stop, err := startDefaultPGORecording(pgoProfilePath)
		if err != nil {
			slog.Warn("PGO capture unavailable", "error", err)
		} else {
			g.stopProfile = stop
			g.enableAutoWalk(pgoRecordDuration)
			slog.Info("recording profile during scripted walk", "path", pgoProfilePath, "duration", pgoRecordDuration)
		}
	}

	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetVsyncEnabled(cfg.Window.VSync)
	// one Update per displayed frame
	ebiten.SetTPS(ebiten.SyncWithFPS)
	return ebiten.RunGame(g)
}
