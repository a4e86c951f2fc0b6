package ripple

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// NormalStrength scales height differences into normal deviation. It is a
	// fixed visual constant, not a parameter.
	NormalStrength = 50.0
	// MaskLow and MaskHigh bound the ripple mask ramp over |normal.xy|.
	MaskLow  = 0.01
	MaskHigh = 0.1
	// FresnelScale weights the fresnel rim relative to LightIntensity.
	FresnelScale = 0.1
	// UVMin and UVMax keep refracted lookups inside the texture.
	UVMin = 0.001
	UVMax = 0.999
)

var (
	lightDir = mgl32.Vec3{-0.5, 0.5, 1}.Normalize()
	viewDir  = mgl32.Vec3{0, 0, 1}
	halfDir  = lightDir.Add(viewDir).Normalize()
)

// Texture is a sampleable image addressed by uv in [0,1]², origin bottom-left.
type Texture interface {
	At(uv mgl32.Vec2) mgl32.Vec4
}

// HeightField is a read-only view of a simulation output buffer.
type HeightField struct {
	Data []float32
	Size int
}

// At returns the height of the cell containing uv, clamping at the edges.
func (h HeightField) At(uv mgl32.Vec2) float32 {
	fs := float32(h.Size)
	x := clampCoord(int(math.Floor(float64(uv.X()*fs))), 0, h.Size-1)
	y := clampCoord(int(math.Floor(float64(uv.Y()*fs))), 0, h.Size-1)
	return h.Data[y*h.Size+x]
}

// Normal derives a surface normal at uv from central differences one
// simulation texel apart.
func (h HeightField) Normal(uv mgl32.Vec2) mgl32.Vec3 {
	texel := 1 / float32(h.Size)
	left := h.At(uv.Sub(mgl32.Vec2{texel, 0}))
	right := h.At(uv.Add(mgl32.Vec2{texel, 0}))
	top := h.At(uv.Add(mgl32.Vec2{0, texel}))
	bottom := h.At(uv.Sub(mgl32.Vec2{0, texel}))
	return mgl32.Vec3{
		(left - right) * NormalStrength,
		(bottom - top) * NormalStrength,
		1,
	}.Normalize()
}

// CoverUV remaps uv so an image of imageAspect fills a plane of planeAspect
// without distortion, cropping the excess symmetrically.
func CoverUV(uv mgl32.Vec2, imageAspect, planeAspect float32) mgl32.Vec2 {
	if imageAspect <= 0 || planeAspect <= 0 {
		return uv
	}
	rx := min(planeAspect/imageAspect, 1)
	ry := min(imageAspect/planeAspect, 1)
	return mgl32.Vec2{
		uv.X()*rx + (1-rx)*0.5,
		uv.Y()*ry + (1-ry)*0.5,
	}
}

// RippleMask is 0 on flat water and ramps to 1 as the normal tilts.
func RippleMask(n mgl32.Vec3) float32 {
	return Smoothstep(MaskLow, MaskHigh, n.Vec2().Len())
}

// Lighting returns the specular and fresnel terms for normal n.
func Lighting(n mgl32.Vec3, u *Uniforms) (specular, fresnel float32) {
	mask := RippleMask(n)
	if mask == 0 {
		return 0, 0
	}
	nh := max(n.Dot(halfDir), 0)
	specular = float32(math.Pow(float64(nh), float64(u.SpecularPower))) * u.LightIntensity * mask
	rim := 1 - max(n.Dot(viewDir), 0)
	fresnel = rim * rim * u.LightIntensity * FresnelScale * mask
	return specular, fresnel
}

// FieldTransform maps a plane uv onto the field, which spans the tracker
// viewport. The zero value is the identity.
type FieldTransform struct {
	Offset mgl32.Vec2
	Scale  mgl32.Vec2
}

// PlaneToField returns the transform for a plane drawn at plane inside
// viewport, both in device coordinates with y down.
func PlaneToField(plane, viewport Rect) FieldTransform {
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return FieldTransform{}
	}
	return FieldTransform{
		Offset: mgl32.Vec2{
			float32((plane.Left - viewport.Left) / viewport.Width),
			float32(1 - (plane.Top+plane.Height-viewport.Top)/viewport.Height),
		},
		Scale: mgl32.Vec2{
			float32(plane.Width / viewport.Width),
			float32(plane.Height / viewport.Height),
		},
	}
}

// Apply maps plane uv to field uv.
func (t FieldTransform) Apply(uv mgl32.Vec2) mgl32.Vec2 {
	if t.Scale == (mgl32.Vec2{}) {
		return uv
	}
	return mgl32.Vec2{t.Offset.X() + uv.X()*t.Scale.X(), t.Offset.Y() + uv.Y()*t.Scale.Y()}
}

// Layer is the per-image input to Shade.
type Layer struct {
	Texture     Texture
	ImageAspect float32
	PlaneAspect float32
	Field       FieldTransform
}

// Shade composites one fragment at plane position uv (origin bottom-left).
// The texture is addressed in plane space, the height field at the
// fragment's screen position.
func Shade(field HeightField, layer Layer, u *Uniforms, uv mgl32.Vec2) mgl32.Vec4 {
	covered := CoverUV(uv, layer.ImageAspect, layer.PlaneAspect)
	n := field.Normal(layer.Field.Apply(uv))

	d := covered.Add(n.Vec2().Mul(u.DistortionStrength))
	d = mgl32.Vec2{mgl32.Clamp(d.X(), UVMin, UVMax), mgl32.Clamp(d.Y(), UVMin, UVMax)}

	shift := mgl32.Vec2{u.Aberration * (mgl32.Abs(n.X()) + mgl32.Abs(n.Y())), 0}
	base := layer.Texture.At(d)
	r := layer.Texture.At(d.Add(shift)).X()
	b := layer.Texture.At(d.Sub(shift)).Z()

	spec, fres := Lighting(n, u)
	light := spec + fres
	return mgl32.Vec4{r + light, base.Y() + light, b + light, base.W()}
}
