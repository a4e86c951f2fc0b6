package main

import (
	"fmt"
	"log/slog"

	"ripplefx/internal/config"
	"ripplefx/internal/gpu"
	"ripplefx/internal/ripple"
)

// newStage allocates the simulation buffers and the configured stepper. An
// OpenCL stepper that cannot start is fatal, matching an explicit request.
func newStage(cfg *config.Config) (*ripple.Stage, error) {
	res := cfg.Grid.Resolution
	var stepper ripple.Stepper
	switch cfg.Backend.Kind {
	case config.BackendOpenCL:
		if !gpu.Available {
			return nil, fmt.Errorf("%w: backend opencl requested but this build lacks -tags opencl", ripple.ErrResourceExhausted)
		}
		s, err := gpu.NewOpenCLStepper(res, gpu.Options{
			PreferFP16: cfg.Backend.PreferFP16,
			Verify:     cfg.Backend.Verify,
		})
		if err != nil {
			return nil, fmt.Errorf("OpenCL initialization failed: %w", err)
		}
		slog.Info("OpenCL stepper enabled", "device", s.DeviceName(), "backend", s.Name())
		stepper = s
	default:
		stepper = ripple.NewCPUStepper(cfg.Backend.Workers)
	}

	stage, err := ripple.NewStage(res, stepper)
	if err != nil {
		stepper.Close()
		return nil, err
	}
	return stage, nil
}
