// Package layer holds the images displaced by the ripple field and loads them
// in the background.
package layer

import (
	"errors"
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrAssetUnavailable reports that an image could not be fetched or decoded.
var ErrAssetUnavailable = errors.New("layer: asset unavailable")

// DefaultAspect is the image aspect assumed until the asset resolves.
const DefaultAspect = 1.0

// Texture is a decoded image resampled onto the simulation grid.
type Texture struct {
	img *image.NRGBA
	w   int
	h   int
}

// NewTexture wraps an NRGBA image.
func NewTexture(img *image.NRGBA) *Texture {
	b := img.Bounds()
	return &Texture{img: img, w: b.Dx(), h: b.Dy()}
}

// Image returns the backing pixels.
func (t *Texture) Image() *image.NRGBA { return t.img }

// At samples the texel containing uv (origin bottom-left) with clamp-to-edge,
// returning straight-alpha RGBA in [0,1].
func (t *Texture) At(uv mgl32.Vec2) mgl32.Vec4 {
	x := int(math.Floor(float64(uv.X() * float32(t.w))))
	y := int(math.Floor(float64((1 - uv.Y()) * float32(t.h))))
	x = min(max(x, 0), t.w-1)
	y = min(max(y, 0), t.h-1)
	b := t.img.Bounds()
	i := t.img.PixOffset(b.Min.X+x, b.Min.Y+y)
	p := t.img.Pix[i : i+4 : i+4]
	return mgl32.Vec4{
		float32(p[0]) / 255,
		float32(p[1]) / 255,
		float32(p[2]) / 255,
		float32(p[3]) / 255,
	}
}

// result is what a finished load leaves in a layer's completion slot.
type result struct {
	tex    *Texture
	aspect float32
	err    error
}

// Layer is one displayed image: its texture, natural aspect and the plane it
// is drawn on. The loader fills a one-shot completion slot; the frame driver
// adopts it with Poll at the start of a frame.
type Layer struct {
	Source string
	Plane  image.Rectangle

	slot    atomic.Pointer[result]
	adopted bool
	tex     *Texture
	aspect  float32
	err     error

	released bool
	gen      uint64
}

// New registers a layer for source drawn on plane.
func New(source string, plane image.Rectangle) *Layer {
	return &Layer{Source: source, Plane: plane, aspect: DefaultAspect}
}

// complete stores the load result. Only the first completion is kept.
func (l *Layer) complete(r *result) bool {
	return l.slot.CompareAndSwap(nil, r)
}

// Poll adopts a finished load, if any, and reports whether the texture changed.
// Call it once at the start of a frame from the frame driver.
func (l *Layer) Poll() bool {
	if l.adopted || l.released {
		return false
	}
	r := l.slot.Load()
	if r == nil {
		return false
	}
	l.adopted = true
	if r.err != nil {
		l.err = r.err
		slog.Warn("image layer unavailable, keeping default aspect", "source", l.Source, "error", r.err)
		return false
	}
	l.tex = r.tex
	if r.aspect > 0 {
		l.aspect = r.aspect
	}
	l.gen++
	return true
}

// Texture returns the adopted texture, or nil while loading or after a failure.
func (l *Layer) Texture() *Texture { return l.tex }

// Generation increments every time a new texture is adopted.
func (l *Layer) Generation() uint64 { return l.gen }

// Err returns the load error, if the load failed.
func (l *Layer) Err() error { return l.err }

// ImageAspect is the natural width/height of the image, DefaultAspect until loaded.
func (l *Layer) ImageAspect() float32 { return l.aspect }

// PlaneAspect is the width/height of the surface the layer is drawn on.
func (l *Layer) PlaneAspect() float32 {
	if l.Plane.Dy() == 0 {
		return DefaultAspect
	}
	return float32(l.Plane.Dx()) / float32(l.Plane.Dy())
}

// Released reports whether Release was called.
func (l *Layer) Released() bool { return l.released }

// Release drops the texture. Results arriving later are ignored.
func (l *Layer) Release() {
	l.released = true
	l.tex = nil
	l.complete(&result{err: errors.New("layer released")})
}
