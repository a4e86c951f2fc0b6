package ripple

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// FieldStats summarizes a height field.
type FieldStats struct {
	Energy  float64 // mean squared height
	Peak    float64 // largest |height|
	MeanAbs float64
}

// Measure computes FieldStats for field.
func Measure(field []float32) FieldStats {
	n := len(field)
	if n == 0 {
		return FieldStats{}
	}
	v := blas32.Vector{N: n, Inc: 1, Data: field}
	nrm := float64(blas32.Nrm2(v))
	peak := math.Abs(float64(field[blas32.Iamax(v)]))
	return FieldStats{
		Energy:  nrm * nrm / float64(n),
		Peak:    peak,
		MeanAbs: float64(blas32.Asum(v)) / float64(n),
	}
}

// LogValue implements slog.LogValuer.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("energy", s.Energy),
		slog.Float64("peak", s.Peak),
		slog.Float64("mean_abs", s.MeanAbs),
	)
}
