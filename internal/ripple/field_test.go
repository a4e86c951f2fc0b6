package ripple

import (
	"errors"
	"testing"
)

func TestTripleBufferRolesCycle(t *testing.T) {
	for start := 0; start < 3; start++ {
		b, err := NewTripleBuffer(8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 0; i < start; i++ {
			b.Advance()
		}
		if b.Index() != start {
			t.Fatalf("expected index %d, got %d", start, b.Index())
		}
		p0, c0, n0 := b.Roles()
		if p0 == c0 || c0 == n0 || p0 == n0 {
			t.Fatalf("roles must be distinct, got prev=%d current=%d next=%d", p0, c0, n0)
		}
		b.Advance()
		p1, c1, n1 := b.Roles()
		if c1 != n0 {
			t.Errorf("expected current after advance to be old next %d, got %d", n0, c1)
		}
		if n1 != p0 {
			t.Errorf("expected next after advance to be old prev %d, got %d", p0, n1)
		}
		if p1 != c0 {
			t.Errorf("expected prev after advance to be old current %d, got %d", c0, p1)
		}
		b.Advance()
		b.Advance()
		p3, c3, n3 := b.Roles()
		if p3 != p0 || c3 != c0 || n3 != n0 {
			t.Errorf("expected roles to repeat after 3 advances from index %d", start)
		}
	}
}

func TestStageStepExposesWrittenBuffer(t *testing.T) {
	stage, err := NewStage(16, NewCPUStepper(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stage.Close()
	buf := stage.Buffers()
	_, _, next := buf.Roles()
	written := &buf.Buffer(next)[0]

	u := NewUniforms(testParams(), Sample{})
	if err := stage.Step(u); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if &stage.Output()[0] != written {
		t.Error("expected output to alias the buffer written by the step")
	}
	if _, cur, _ := buf.Roles(); cur != next {
		t.Errorf("expected current role %d after step, got %d", next, cur)
	}
}

func TestNewTripleBufferRejectsBadResolution(t *testing.T) {
	for _, size := range []int{0, 1, -4, MaxResolution + 1} {
		if _, err := NewTripleBuffer(size); !errors.Is(err, ErrResourceExhausted) {
			t.Errorf("size %d: expected ErrResourceExhausted, got %v", size, err)
		}
	}
}

func TestStageStartsCleared(t *testing.T) {
	stage, err := NewStage(8, NewCPUStepper(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j, v := range stage.Buffers().Buffer(i) {
			if v != 0 {
				t.Fatalf("buffer %d cell %d: expected 0, got %f", i, j, v)
			}
		}
	}
}

func TestAtClampsCoordinates(t *testing.T) {
	b, _ := NewTripleBuffer(4)
	out := b.Output()
	out[0] = 1
	out[15] = 2
	if got := b.At(-3, -3); got != 1 {
		t.Errorf("expected clamped read 1, got %f", got)
	}
	if got := b.At(10, 10); got != 2 {
		t.Errorf("expected clamped read 2, got %f", got)
	}
}
