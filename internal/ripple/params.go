package ripple

import "github.com/go-gl/mathgl/mgl32"

// Params is the caller-owned parameter set read at the start of every frame.
type Params struct {
	Intensity          float64 `yaml:"intensity"`
	Radius             float64 `yaml:"scale"`
	Viscosity          float64 `yaml:"viscosity"`
	Decay              float64 `yaml:"decay"`
	DistortionStrength float64 `yaml:"distortion_strength"`
	Aberration         float64 `yaml:"aberration"`
	LightIntensity     float64 `yaml:"light_intensity"`
	SpecularPower      float64 `yaml:"specular_power"`
}

// Clamp returns p with every field forced into its documented domain, plus the
// yaml names of the fields that had to be changed.
func (p Params) Clamp() (Params, []string) {
	var fixed []string
	nonNeg := func(v *float64, name string) {
		if *v < 0 || *v != *v {
			*v = 0
			fixed = append(fixed, name)
		}
	}
	unit := func(v *float64, name string) {
		switch {
		case *v != *v || *v < 0:
			*v = 0
			fixed = append(fixed, name)
		case *v > 1:
			*v = 1
			fixed = append(fixed, name)
		}
	}
	nonNeg(&p.Intensity, "intensity")
	nonNeg(&p.Radius, "scale")
	unit(&p.Viscosity, "viscosity")
	unit(&p.Decay, "decay")
	nonNeg(&p.DistortionStrength, "distortion_strength")
	nonNeg(&p.Aberration, "aberration")
	nonNeg(&p.LightIntensity, "light_intensity")
	nonNeg(&p.SpecularPower, "specular_power")
	return p, fixed
}

// Uniforms is the value set that drives a single frame. It is assembled fresh
// each frame from Params and the pointer sample and handed to the stage and the
// compositors; nothing keeps a reference to it afterwards.
type Uniforms struct {
	Intensity          float32
	Radius             float32
	Viscosity          float32
	Decay              float32
	DistortionStrength float32
	Aberration         float32
	LightIntensity     float32
	SpecularPower      float32

	Pointer     mgl32.Vec2
	PrevPointer mgl32.Vec2
	Velocity    float32
}

// NewUniforms clamps p and combines it with the frame's pointer sample.
func NewUniforms(p Params, s Sample) Uniforms {
	p, _ = p.Clamp()
	return Uniforms{
		Intensity:          float32(p.Intensity),
		Radius:             float32(p.Radius),
		Viscosity:          float32(p.Viscosity),
		Decay:              float32(p.Decay),
		DistortionStrength: float32(p.DistortionStrength),
		Aberration:         float32(p.Aberration),
		LightIntensity:     float32(p.LightIntensity),
		SpecularPower:      float32(p.SpecularPower),
		Pointer:            s.Pos,
		PrevPointer:        s.Prev,
		Velocity:           float32(s.Velocity),
	}
}

// ShaderUniforms returns the composite program's uniform values for one layer.
// Keys match the uniform declarations in the Kage composite program.
func (u Uniforms) ShaderUniforms(imageAspect, planeAspect float32, field FieldTransform, resolution int) map[string]any {
	if field.Scale == (mgl32.Vec2{}) {
		field.Scale = mgl32.Vec2{1, 1}
	}
	return map[string]any{
		"FieldOffset":        []float32{field.Offset.X(), field.Offset.Y()},
		"FieldScale":         []float32{field.Scale.X(), field.Scale.Y()},
		"DistortionStrength": u.DistortionStrength,
		"Aberration":         u.Aberration,
		"LightIntensity":     u.LightIntensity,
		"SpecularPower":      u.SpecularPower,
		"ImageAspect":        imageAspect,
		"PlaneAspect":        planeAspect,
		"Texel":              1 / float32(resolution),
		"NormalStrength":     float32(NormalStrength),
		"HeightRange":        float32(HeightRange),
		"LightDir":           []float32{lightDir.X(), lightDir.Y(), lightDir.Z()},
	}
}
