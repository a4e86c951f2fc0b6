package ripple

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// VelocityThreshold is the pointer speed below which no ripple is injected.
	VelocityThreshold = 0.0001
	// TrailSamples is the number of points sampled along the pointer segment.
	TrailSamples = 8
	// TrailRadiusScale shrinks the radius used for trail samples.
	TrailRadiusScale = 0.7
	// velocityGain saturates the velocity term at velocity 0.1.
	velocityGain = 10
)

// Smoothstep is the GLSL smoothstep. Reversed edges produce a falling curve.
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := mgl32.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// injection is the precomputed ripple source for one step.
type injection struct {
	active      bool
	pos         mgl32.Vec2
	path        [TrailSamples]mgl32.Vec2
	radius      float32
	trailRadius float32
	amplitude   float32

	// cells outside [x0, x1]×[y0, y1] get no contribution
	x0, x1 int
	y0, y1 int
}

// InjectionAmplitude returns the ripple scale for u, or 0 when the pointer is too
// slow or the radius is degenerate and nothing should be injected.
func InjectionAmplitude(u *Uniforms) float32 {
	if u.Velocity <= VelocityThreshold || u.Radius <= 0 || u.Intensity <= 0 {
		return 0
	}
	return u.Intensity * float32(math.Min(float64(u.Velocity)*velocityGain, 1))
}

// newInjection builds the ripple source from u.
func newInjection(u *Uniforms, size int) injection {
	inj := injection{}
	amp := InjectionAmplitude(u)
	if amp == 0 {
		return inj
	}
	inj.active = true
	inj.pos = u.Pointer
	inj.radius = u.Radius
	inj.trailRadius = u.Radius * TrailRadiusScale
	inj.amplitude = amp
	minX, minY := u.Pointer.X(), u.Pointer.Y()
	maxX, maxY := minX, minY
	for i := range inj.path {
		t := float32(i) / TrailSamples
		p := u.PrevPointer.Add(u.Pointer.Sub(u.PrevPointer).Mul(t))
		inj.path[i] = p
		minX, maxX = min(minX, p.X()), max(maxX, p.X())
		minY, maxY = min(minY, p.Y()), max(maxY, p.Y())
	}
	fs := float32(size)
	inj.x0 = clampCoord(int(math.Floor(float64((minX-u.Radius)*fs-1))), 0, size-1)
	inj.x1 = clampCoord(int(math.Ceil(float64((maxX+u.Radius)*fs+1))), 0, size-1)
	inj.y0 = clampCoord(int(math.Floor(float64((minY-u.Radius)*fs-1))), 0, size-1)
	inj.y1 = clampCoord(int(math.Ceil(float64((maxY+u.Radius)*fs+1))), 0, size-1)
	return inj
}

func falloff(radius, d float32) float32 {
	s := Smoothstep(radius, 0, d)
	return s * s
}

// at returns the scaled ripple contribution at p.
func (inj *injection) at(p mgl32.Vec2) float32 {
	r := falloff(inj.radius, p.Sub(inj.pos).Len())
	for _, q := range inj.path {
		if v := falloff(inj.trailRadius, p.Sub(q).Len()); v > r {
			r = v
		}
	}
	return r * inj.amplitude
}

// stepRows advances rows [y0, y1) of next from current and prev. Neighbour reads
// past the grid edge reuse the edge value.
func stepRows(next, cur, prev []float32, size, y0, y1 int, u *Uniforms, inj *injection) {
	visc := u.Viscosity
	decay := u.Decay
	inv := 1 / float32(size)
	last := size - 1
	for y := y0; y < y1; y++ {
		base := y * size
		up := min(y+1, last) * size
		down := max(y-1, 0) * size
		center := cur[base : base+size]
		top := cur[up : up+size]
		bottom := cur[down : down+size]
		prevRow := prev[base : base+size]
		nextRow := next[base : base+size]
		inject := inj.active && y >= inj.y0 && y <= inj.y1
		fy := (float32(y) + 0.5) * inv
		for x := 0; x < size; x++ {
			c := center[x]
			left := center[max(x-1, 0)]
			right := center[min(x+1, last)]
			avg := 0.25 * (left + right + top[x] + bottom[x])
			wave := 2*avg - prevRow[x]
			wave = c + (wave-c)*visc
			wave *= decay
			if inject && x >= inj.x0 && x <= inj.x1 {
				wave += inj.at(mgl32.Vec2{(float32(x) + 0.5) * inv, fy})
			}
			nextRow[x] = wave
		}
	}
}

// StepInto computes one full step into next without touching any roles. Other
// backends use it as the reference when verifying their output.
func StepInto(next, cur, prev []float32, size int, u *Uniforms) {
	inj := newInjection(u, size)
	stepRows(next, cur, prev, size, 0, size, u, &inj)
}
