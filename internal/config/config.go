// Package config provides configuration loading and hot reload for the renderer.
package config

import (
	_ "embed"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"ripplefx/internal/ripple"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of the renderer.
type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Grid      GridConfig      `yaml:"grid"`
	Ripple    ripple.Params   `yaml:"ripple"`
	Layers    []LayerConfig   `yaml:"layers"`
	Backend   BackendConfig   `yaml:"backend"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Remote    RemoteConfig    `yaml:"remote"`
	Headless  HeadlessConfig  `yaml:"headless"`
	Audio     AudioConfig     `yaml:"audio"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

// GridConfig holds the simulation grid size.
type GridConfig struct {
	Resolution int `yaml:"resolution"` // cells per side of each buffer
}

// LayerConfig registers one image and the window rectangle it is drawn into.
type LayerConfig struct {
	Source string      `yaml:"source"` // file path or http(s) URL
	Plane  PlaneConfig `yaml:"plane"`
}

// PlaneConfig is a rectangle in window pixels. A zero width or height means
// the whole window.
type PlaneConfig struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"w"`
	Height int `yaml:"h"`
}

// Rect resolves the plane against the window size.
func (p PlaneConfig) Rect(windowW, windowH int) image.Rectangle {
	w, h := p.Width, p.Height
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, windowW, windowH)
	}
	return image.Rect(p.X, p.Y, p.X+w, p.Y+h)
}

// BackendConfig selects the simulation stepper.
type BackendConfig struct {
	Kind       string `yaml:"kind"`    // "cpu" or "opencl"
	Workers    int    `yaml:"workers"` // CPU workers, 0 = NumCPU
	PreferFP16 bool   `yaml:"prefer_fp16"`
	Verify     bool   `yaml:"verify"`
}

// TelemetryConfig controls per-frame recording.
type TelemetryConfig struct {
	CSV         string        `yaml:"csv"`
	LogInterval time.Duration `yaml:"log_interval"`
}

// RemoteConfig enables the websocket pointer feed.
type RemoteConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// HeadlessConfig drives offscreen rendering.
type HeadlessConfig struct {
	Frames  int    `yaml:"frames"`
	OutDir  string `yaml:"out_dir"`
	Every   int    `yaml:"every"`   // write every Nth frame
	Animate bool   `yaml:"animate"` // also write an animated WebP per layer
}

// AudioConfig controls the pointer height tone.
type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Gain    float64 `yaml:"gain"`
	Loop    string  `yaml:"loop"` // optional WAV mixed in while the pointer moves
}

const (
	BackendCPU    = "cpu"
	BackendOpenCL = "opencl"
)

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.clampRipple()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Grid.Resolution < 2 || c.Grid.Resolution > ripple.MaxResolution {
		return fmt.Errorf("grid.resolution %d outside [2, %d]", c.Grid.Resolution, ripple.MaxResolution)
	}
	switch c.Backend.Kind {
	case BackendCPU, BackendOpenCL:
	default:
		return fmt.Errorf("backend.kind %q: want %q or %q", c.Backend.Kind, BackendCPU, BackendOpenCL)
	}
	for i, l := range c.Layers {
		if l.Source == "" {
			return fmt.Errorf("layers[%d]: empty source", i)
		}
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Headless.Every < 1 {
		c.Headless.Every = 1
	}
	return nil
}

var clampWarnings sync.Map

// clampRipple forces the ripple parameters into range. Each distinct
// offending value is reported once per process.
func (c *Config) clampRipple() {
	before := c.Ripple
	fixed, names := c.Ripple.Clamp()
	for _, name := range names {
		key := fmt.Sprintf("%s=%v", name, rippleField(before, name))
		if _, seen := clampWarnings.LoadOrStore(key, struct{}{}); seen {
			continue
		}
		slog.Warn("ripple parameter out of range, clamped", "param", name,
			"value", rippleField(before, name), "clamped", rippleField(fixed, name))
	}
	c.Ripple = fixed
}

func rippleField(p ripple.Params, name string) float64 {
	switch name {
	case "intensity":
		return p.Intensity
	case "scale":
		return p.Radius
	case "viscosity":
		return p.Viscosity
	case "decay":
		return p.Decay
	case "distortion_strength":
		return p.DistortionStrength
	case "aberration":
		return p.Aberration
	case "light_intensity":
		return p.LightIntensity
	case "specular_power":
		return p.SpecularPower
	}
	return 0
}
