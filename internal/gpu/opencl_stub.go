//go:build !opencl

package gpu

import (
	"errors"

	"ripplefx/internal/ripple"
)

// Available reports whether this build carries the OpenCL backend.
const Available = false

// Options configures the OpenCL stepper.
type Options struct {
	PreferFP16 bool
	Verify     bool
}

// OpenCLStepper is unavailable without the opencl build tag.
type OpenCLStepper struct{}

// NewOpenCLStepper always fails in builds without OpenCL.
func NewOpenCLStepper(size int, opts Options) (*OpenCLStepper, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (s *OpenCLStepper) Name() string { return "opencl" }

func (s *OpenCLStepper) DeviceName() string { return "" }

func (s *OpenCLStepper) Step(buf *ripple.TripleBuffer, u *ripple.Uniforms) error {
	return errors.New("OpenCL stepper unavailable")
}

func (s *OpenCLStepper) Close() error { return nil }
