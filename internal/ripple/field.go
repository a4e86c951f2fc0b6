package ripple

import (
	"errors"
	"fmt"
)

// MaxResolution bounds the grid side so the three buffers stay allocatable.
const MaxResolution = 8192

// ErrResourceExhausted reports that the simulation buffers or programs could not
// be allocated. It is only returned before the first frame.
var ErrResourceExhausted = errors.New("ripple: simulation resources unavailable")

// TripleBuffer stores the three height buffers used by the wave solver in a fixed
// arena. Roles rotate through a single index c: prev=(c+2)%3, current=c,
// next=(c+1)%3. Rows are stored bottom-up, matching the pointer's y axis.
type TripleBuffer struct {
	size int
	bufs [3][]float32
	c    int
}

// NewTripleBuffer allocates three zeroed size×size buffers.
func NewTripleBuffer(size int) (*TripleBuffer, error) {
	if size < 2 || size > MaxResolution {
		return nil, fmt.Errorf("%w: resolution %d outside [2, %d]", ErrResourceExhausted, size, MaxResolution)
	}
	b := &TripleBuffer{size: size}
	for i := range b.bufs {
		b.bufs[i] = make([]float32, size*size)
	}
	return b, nil
}

// Size returns the grid side length.
func (b *TripleBuffer) Size() int { return b.size }

// Index returns the rotating role index c.
func (b *TripleBuffer) Index() int { return b.c }

// Roles returns the physical buffer indices holding the prev, current and next roles.
func (b *TripleBuffer) Roles() (prev, current, next int) {
	return (b.c + 2) % 3, b.c, (b.c + 1) % 3
}

// Buffer returns physical buffer i.
func (b *TripleBuffer) Buffer(i int) []float32 { return b.bufs[i] }

// Prev returns the buffer holding the prev role.
func (b *TripleBuffer) Prev() []float32 { return b.bufs[(b.c+2)%3] }

// Current returns the buffer holding the current role.
func (b *TripleBuffer) Current() []float32 { return b.bufs[b.c] }

// Next returns the buffer the next step writes into.
func (b *TripleBuffer) Next() []float32 { return b.bufs[(b.c+1)%3] }

// Output returns the freshest height field. Right after a step this is the
// buffer that step wrote.
func (b *TripleBuffer) Output() []float32 { return b.Current() }

// Advance rotates roles: next becomes current, current becomes prev and the old
// prev becomes the next buffer to overwrite.
func (b *TripleBuffer) Advance() {
	b.c = (b.c + 1) % 3
}

// Clear zeroes all three buffers.
func (b *TripleBuffer) Clear() {
	for i := range b.bufs {
		clear(b.bufs[i])
	}
}

// Fill sets every cell of all three buffers to v.
func (b *TripleBuffer) Fill(v float32) {
	for i := range b.bufs {
		for j := range b.bufs[i] {
			b.bufs[i][j] = v
		}
	}
}

// At reads the output buffer with clamped coordinates.
func (b *TripleBuffer) At(x, y int) float32 {
	return b.Output()[clampCoord(y, 0, b.size-1)*b.size+clampCoord(x, 0, b.size-1)]
}

// clampCoord constrains v to lie within the inclusive [min, max] range.
func clampCoord(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
