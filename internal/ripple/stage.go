package ripple

import "fmt"

// Stepper executes the simulation program: it reads the current and prev roles
// of buf and writes the next role. It must not advance the roles.
type Stepper interface {
	Name() string
	Step(buf *TripleBuffer, u *Uniforms) error
	Close() error
}

// Stage owns the three height buffers and advances the wave one step per frame.
type Stage struct {
	buf     *TripleBuffer
	stepper Stepper
	steps   uint64
}

// NewStage allocates and zeroes the buffers. A nil stepper selects the CPU
// stepper with one worker per CPU.
func NewStage(resolution int, stepper Stepper) (*Stage, error) {
	buf, err := NewTripleBuffer(resolution)
	if err != nil {
		return nil, err
	}
	buf.Clear()
	if stepper == nil {
		stepper = NewCPUStepper(0)
	}
	return &Stage{buf: buf, stepper: stepper}, nil
}

// Step runs one simulation step with u and advances the buffer roles.
func (s *Stage) Step(u Uniforms) error {
	if err := s.stepper.Step(s.buf, &u); err != nil {
		return fmt.Errorf("%s step %d: %w", s.stepper.Name(), s.steps, err)
	}
	s.buf.Advance()
	s.steps++
	return nil
}

// Output returns the freshest height field. Consumers must not retain it past
// the next Step.
func (s *Stage) Output() []float32 { return s.buf.Output() }

// Resolution returns the grid side length.
func (s *Stage) Resolution() int { return s.buf.Size() }

// Buffers exposes the triple buffer, mainly for inspection in tests and tools.
func (s *Stage) Buffers() *TripleBuffer { return s.buf }

// Steps returns the number of completed steps.
func (s *Stage) Steps() uint64 { return s.steps }

// Backend names the stepper in use.
func (s *Stage) Backend() string { return s.stepper.Name() }

// HeightAt returns the output height under a normalized position.
func (s *Stage) HeightAt(p Sample) float32 {
	size := s.buf.Size()
	return s.buf.At(int(p.Pos.X()*float32(size)), int(p.Pos.Y()*float32(size)))
}

// Close releases the stepper.
func (s *Stage) Close() error {
	return s.stepper.Close()
}
