package layer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"
)

// quadrants builds a w×h image whose top half is red and bottom half blue.
func quadrants(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if y >= h/2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeReportsNaturalAspect(t *testing.T) {
	tex, aspect, err := Decode(bytes.NewReader(encodePNG(t, quadrants(200, 100))), 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aspect != 2 {
		t.Errorf("expected aspect 2, got %f", aspect)
	}
	if b := tex.Image().Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("expected 32x32 texture, got %v", b)
	}
}

func TestTextureOriginIsBottomLeft(t *testing.T) {
	tex := NewTexture(quadrants(8, 8))
	top := tex.At(mgl32.Vec2{0.5, 0.9})
	bottom := tex.At(mgl32.Vec2{0.5, 0.1})
	if top.X() != 1 || top.Z() != 0 {
		t.Errorf("expected red near v=1, got %v", top)
	}
	if bottom.Z() != 1 || bottom.X() != 0 {
		t.Errorf("expected blue near v=0, got %v", bottom)
	}
	// clamp-to-edge
	if got := tex.At(mgl32.Vec2{-1, 2}); got.X() != 1 {
		t.Errorf("expected clamped red sample, got %v", got)
	}
}

func TestLoaderCompletesSlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.png")
	if err := os.WriteFile(path, encodePNG(t, quadrants(300, 100)), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	l := New(path, image.Rect(0, 0, 400, 200))
	if l.ImageAspect() != DefaultAspect {
		t.Errorf("expected default aspect before load, got %f", l.ImageAspect())
	}
	ld := NewLoader(16)
	ld.Load(context.Background(), l)
	ld.Wait()

	if !l.Poll() {
		t.Fatal("expected Poll to adopt the texture")
	}
	if l.ImageAspect() != 3 {
		t.Errorf("expected aspect 3, got %f", l.ImageAspect())
	}
	if l.PlaneAspect() != 2 {
		t.Errorf("expected plane aspect 2, got %f", l.PlaneAspect())
	}
	if l.Texture() == nil {
		t.Error("expected a texture")
	}
	if l.Poll() {
		t.Error("expected the slot to be one-shot")
	}
}

func TestLoaderFailureKeepsDefaultAspect(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "missing.png"), image.Rect(0, 0, 10, 10))
	ld := NewLoader(16)
	ld.Load(context.Background(), l)
	ld.Wait()

	if l.Poll() {
		t.Error("expected no texture change on failure")
	}
	if !errors.Is(l.Err(), ErrAssetUnavailable) {
		t.Errorf("expected ErrAssetUnavailable, got %v", l.Err())
	}
	if l.ImageAspect() != DefaultAspect {
		t.Errorf("expected default aspect, got %f", l.ImageAspect())
	}
}

func TestReleasedLayerIgnoresLateResult(t *testing.T) {
	l := New("late.png", image.Rect(0, 0, 10, 10))
	l.Release()
	if l.complete(&result{tex: NewTexture(quadrants(2, 2)), aspect: 4}) {
		t.Error("expected completion after release to be rejected")
	}
	if l.Poll() || l.Texture() != nil || l.ImageAspect() != DefaultAspect {
		t.Error("expected released layer to stay empty")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode(bytes.NewReader([]byte("not an image")), 8); err == nil {
		t.Error("expected an error for garbage input")
	}
}

func TestLoaderDecodesEveryFormat(t *testing.T) {
	cases := []struct {
		name   string
		encode func(io.Writer, image.Image) error
	}{
		{"png", png.Encode},
		{"tga", tga.Encode},
		{"bmp", bmp.Encode},
		{"webp", func(w io.Writer, img image.Image) error { return nativewebp.Encode(w, img, nil) }},
	}
	dir := t.TempDir()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tc.encode(&buf, quadrants(90, 30)); err != nil {
				t.Fatalf("encoding %s: %v", tc.name, err)
			}
			path := filepath.Join(dir, "layer."+tc.name)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}
			l := New(path, image.Rect(0, 0, 10, 10))
			ld := NewLoader(16)
			ld.Load(context.Background(), l)
			ld.Wait()

			if !l.Poll() {
				t.Fatalf("expected %s to load, got %v", tc.name, l.Err())
			}
			if l.ImageAspect() != 3 {
				t.Errorf("expected aspect 3, got %f", l.ImageAspect())
			}
			top := l.Texture().At(mgl32.Vec2{0.5, 0.9})
			if top.X() < 0.9 || top.Z() > 0.1 {
				t.Errorf("expected red near the top, got %v", top)
			}
		})
	}
}
