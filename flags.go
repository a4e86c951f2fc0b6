package main

import (
	"flag"
	"log/slog"
	"strings"

	"ripplefx/internal/config"
)

// Command-line flags. Most of them override a value from the YAML
// configuration, and only when given explicitly.
var (
	// configPathFlag points at a YAML file merged over the embedded defaults.
	configPathFlag = flag.String("config", "", "YAML configuration file (hot reloaded)")

	// logJSONFlag switches the default logger to JSON lines.
	logJSONFlag = flag.Bool("log-json", false, "log as JSON instead of text")

	// verboseFlag lowers the log level to debug.
	verboseFlag = flag.Bool("v", false, "debug logging")

	// debugFlag enables the FPS and simulation overlay.
	debugFlag = flag.Bool("debug", false, "show FPS, step time and field energy overlay")

	// headlessFlag renders frames to WebP files without opening a window.
	headlessFlag = flag.Bool("headless", false, "render offscreen with a scripted pointer and write WebP frames")

	// framesFlag overrides headless.frames.
	framesFlag = flag.Int("frames", 0, "number of headless frames (overrides headless.frames)")

	// outDirFlag overrides headless.out_dir.
	outDirFlag = flag.String("out", "", "headless output directory (overrides headless.out_dir)")

	// imagesFlag adds full-window layers when the configuration lists none.
	imagesFlag = flag.String("images", "", "comma-separated image paths or URLs drawn over the whole window")

	// backendFlag overrides backend.kind.
	backendFlag = flag.String("backend", "", "simulation backend: cpu or opencl (overrides backend.kind)")

	// preferFP16Flag enables 16-bit wave buffers on devices that support half precision.
	preferFP16Flag = flag.Bool("prefer-fp16", true, "use 16-bit floats for the OpenCL solver when supported")

	verifyOpenCLFlag = flag.Bool("verify-opencl", false, "recompute every OpenCL step on the CPU and fail on mismatch")

	// workersFlag overrides backend.workers.
	workersFlag = flag.Int("workers", 0, "CPU stepper workers, 0 = one per CPU (overrides backend.workers)")

	// remoteAddrFlag overrides remote.addr.
	remoteAddrFlag = flag.String("remote", "", "listen address for the websocket pointer feed (overrides remote.addr)")

	// telemetryCSVFlag overrides telemetry.csv.
	telemetryCSVFlag = flag.String("telemetry", "", "per-frame CSV output path (overrides telemetry.csv)")

	// enableAudioFlag toggles the tone driven by the height under the pointer.
	enableAudioFlag = flag.Bool("enable-audio", false, "play the water height under the pointer as audio")

	// recordDefaultPGO triggers a scripted walk to produce default.pgo.
	recordDefaultPGO = flag.Bool("record-default-pgo", false, "walk the pointer randomly for 15s while capturing default.pgo")
)

// applyFlagOverrides copies explicitly set flags into cfg.
func applyFlagOverrides(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "frames":
			cfg.Headless.Frames = *framesFlag
		case "out":
			cfg.Headless.OutDir = *outDirFlag
		case "backend":
			cfg.Backend.Kind = *backendFlag
		case "prefer-fp16":
			cfg.Backend.PreferFP16 = *preferFP16Flag
		case "verify-opencl":
			cfg.Backend.Verify = *verifyOpenCLFlag
		case "workers":
			cfg.Backend.Workers = *workersFlag
		case "remote":
			cfg.Remote.Addr = *remoteAddrFlag
		case "telemetry":
			cfg.Telemetry.CSV = *telemetryCSVFlag
		case "enable-audio":
			cfg.Audio.Enabled = *enableAudioFlag
		}
	})
	if len(cfg.Layers) == 0 && *imagesFlag != "" {
		for _, src := range strings.Split(*imagesFlag, ",") {
			if src = strings.TrimSpace(src); src != "" {
				cfg.Layers = append(cfg.Layers, config.LayerConfig{Source: src})
			}
		}
	}
	if cfg.Backend.Kind != config.BackendCPU && cfg.Backend.Kind != config.BackendOpenCL {
		slog.Warn("unknown backend, using cpu", "backend", cfg.Backend.Kind)
		cfg.Backend.Kind = config.BackendCPU
	}
}
