package gpu

import (
	"math"
	"testing"
)

func TestHalfKnownValues(t *testing.T) {
	cases := []struct {
		f    float32
		bits uint16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{float32(math.Inf(1)), 0x7c00},
		{1e6, 0x7c00}, // overflow saturates to +Inf
	}
	for _, tc := range cases {
		if got := halfBits(tc.f); got != tc.bits {
			t.Errorf("halfBits(%v): expected %#04x, got %#04x", tc.f, tc.bits, got)
		}
	}
}

func TestHalfRoundTripPrecision(t *testing.T) {
	src := []float32{0.06, -0.0123, 0.3, 1.75, -3.5, 1e-5}
	packed := make([]uint16, len(src))
	out := make([]float32, len(src))
	packHalf(packed, src)
	unpackHalf(out, packed)
	for i, v := range src {
		// 11 significant bits
		tol := math.Max(math.Abs(float64(v))/1024, 6e-8)
		if math.Abs(float64(out[i]-v)) > tol {
			t.Errorf("value %v came back as %v", v, out[i])
		}
	}
}

func TestHalfNaNStaysNaN(t *testing.T) {
	got := halfValue(halfBits(float32(math.NaN())))
	if !math.IsNaN(float64(got)) {
		t.Errorf("expected NaN, got %v", got)
	}
}
