package pipeline

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"ripplefx/internal/layer"
	"ripplefx/internal/ripple"
)

// CPUCompositor shades every layer on the CPU into an NRGBA image the size of
// the layer's plane. It backs headless rendering and tests.
type CPUCompositor struct {
	field   ripple.HeightField
	outputs map[*layer.Layer]*image.NRGBA
	workers int
}

// NewCPUCompositor returns a compositor that splits each image across
// workers goroutines; workers < 1 uses one per CPU.
func NewCPUCompositor(workers int) *CPUCompositor {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &CPUCompositor{outputs: make(map[*layer.Layer]*image.NRGBA), workers: workers}
}

// Begin records the frame's height field.
func (c *CPUCompositor) Begin(field ripple.HeightField) error {
	c.field = field
	return nil
}

// Composite shades l into its output image.
func (c *CPUCompositor) Composite(l *layer.Layer, u *ripple.Uniforms, toField ripple.FieldTransform) error {
	w, h := l.Plane.Dx(), l.Plane.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	dst := c.outputs[l]
	if dst == nil || dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
		c.outputs[l] = dst
	}
	in := ripple.Layer{
		Texture:     l.Texture(),
		ImageAspect: l.ImageAspect(),
		PlaneAspect: l.PlaneAspect(),
		Field:       toField,
	}

	rows := (h + c.workers - 1) / c.workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < h; y0 += rows {
		y1 := min(y0+rows, h)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				v := 1 - (float32(y)+0.5)/float32(h)
				for x := 0; x < w; x++ {
					uv := mgl32.Vec2{(float32(x) + 0.5) / float32(w), v}
					dst.SetNRGBA(x, y, toNRGBA(ripple.Shade(c.field, in, u, uv)))
				}
			}
		}(y0, y1)
	}
	wg.Wait()
	return nil
}

// Output returns the last image composited for l, or nil.
func (c *CPUCompositor) Output(l *layer.Layer) *image.NRGBA { return c.outputs[l] }

// Release forgets the output image of l.
func (c *CPUCompositor) Release(l *layer.Layer) { delete(c.outputs, l) }

// Close drops every output.
func (c *CPUCompositor) Close() error {
	clear(c.outputs)
	return nil
}

func toNRGBA(v mgl32.Vec4) color.NRGBA {
	q := func(f float32) uint8 {
		return uint8(mgl32.Clamp(f, 0, 1)*255 + 0.5)
	}
	return color.NRGBA{R: q(v.X()), G: q(v.Y()), B: q(v.Z()), A: q(v.W())}
}
