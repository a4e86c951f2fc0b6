package main

import (
	_ "embed"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"ripplefx/internal/layer"
	"ripplefx/internal/ripple"
)

//go:embed shaders/composite.kage
var compositeShaderSrc []byte

// layerSurface holds the GPU copies of one layer: its resampled texture and
// the composited result at grid resolution.
type layerSurface struct {
	tex *ebiten.Image
	out *ebiten.Image
}

// shaderCompositor runs the Kage composite program. All images handed to the
// program share the grid size, so each layer is composited into an R×R
// offscreen image and scaled onto its plane when drawn.
type shaderCompositor struct {
	shader    *ebiten.Shader
	size      int
	height    *ebiten.Image
	heightPix []byte
	surfaces  map[*layer.Layer]*layerSurface
}

func newShaderCompositor(size int) (*shaderCompositor, error) {
	shader, err := ebiten.NewShader(compositeShaderSrc)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling composite shader: %v", ripple.ErrResourceExhausted, err)
	}
	return &shaderCompositor{
		shader:    shader,
		size:      size,
		height:    ebiten.NewImage(size, size),
		heightPix: make([]byte, size*size*4),
		surfaces:  make(map[*layer.Layer]*layerSurface),
	}, nil
}

// Begin uploads the height field.
func (c *shaderCompositor) Begin(field ripple.HeightField) error {
	if field.Size != c.size {
		return fmt.Errorf("height field is %d cells wide, compositor expects %d", field.Size, c.size)
	}
	ripple.EncodeHeights(c.heightPix, field.Data, c.size)
	c.height.WritePixels(c.heightPix)
	return nil
}

// Composite renders l into its offscreen image.
func (c *shaderCompositor) Composite(l *layer.Layer, u *ripple.Uniforms, toField ripple.FieldTransform) error {
	s := c.surfaces[l]
	if s == nil {
		src := l.Texture().Image()
		if b := src.Bounds(); b.Dx() != c.size || b.Dy() != c.size {
			src = layer.Resample(src, c.size)
		}
		s = &layerSurface{
			tex: ebiten.NewImageFromImage(src),
			out: ebiten.NewImage(c.size, c.size),
		}
		c.surfaces[l] = s
	}
	s.out.Clear()
	op := &ebiten.DrawRectShaderOptions{
		Uniforms: u.ShaderUniforms(l.ImageAspect(), l.PlaneAspect(), toField, c.size),
	}
	op.Images[0] = c.height
	op.Images[1] = s.tex
	s.out.DrawRectShader(c.size, c.size, c.shader, op)
	return nil
}

// Draw scales every composited layer onto its plane, in order.
func (c *shaderCompositor) Draw(screen *ebiten.Image, layers []*layer.Layer) {
	for _, l := range layers {
		s := c.surfaces[l]
		if s == nil {
			continue
		}
		op := &ebiten.DrawImageOptions{Filter: ebiten.FilterLinear}
		op.GeoM.Scale(float64(l.Plane.Dx())/float64(c.size), float64(l.Plane.Dy())/float64(c.size))
		op.GeoM.Translate(float64(l.Plane.Min.X), float64(l.Plane.Min.Y))
		screen.DrawImage(s.out, op)
	}
}

// Release frees the GPU images of l.
func (c *shaderCompositor) Release(l *layer.Layer) {
	if s := c.surfaces[l]; s != nil {
		s.tex.Deallocate()
		s.out.Deallocate()
		delete(c.surfaces, l)
	}
}

// Close frees every image and the program.
func (c *shaderCompositor) Close() error {
	for l := range c.surfaces {
		c.Release(l)
	}
	c.height.Deallocate()
	c.shader.Deallocate()
	return nil
}
