package snapshot

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"testing"

	"golang.org/x/image/webp"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 80, A: 255})
		}
	}
	return img
}

func TestWriteFrameIsLossless(t *testing.T) {
	w, err := NewWriter(t.TempDir(), false, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src := gradient(16, 8)
	if err := w.WriteFrame(0, 7, src); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(w.FramePath(0, 7))
	if err != nil {
		t.Fatalf("opening frame: %v", err)
	}
	defer f.Close()
	got, err := webp.Decode(f)
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Fatalf("expected bounds %v, got %v", src.Bounds(), got.Bounds())
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			want := src.NRGBAAt(x, y)
			r, g, b, _ := got.At(x, y).RGBA()
			if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
				t.Fatalf("pixel (%d,%d): expected %v, got %v", x, y, want, got.At(x, y))
			}
		}
	}
	if w.Written() != 1 {
		t.Errorf("expected 1 written frame, got %d", w.Written())
	}
}

func TestCloseWritesAnimation(t *testing.T) {
	w, err := NewWriter(t.TempDir(), true, 33)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := gradient(8, 8)
	for i := uint64(0); i < 3; i++ {
		if err := w.WriteFrame(1, i, img); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		// the writer must not alias the caller's buffer
		img.Pix[0] += 40
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(w.AnimationPath(1))
	if err != nil {
		t.Fatalf("reading animation: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data, []byte("ANIM")) {
		t.Error("expected an animated WebP container")
	}
	if n := bytes.Count(data, []byte("ANMF")); n < 3 {
		t.Errorf("expected at least 3 animation frames, got %d", n)
	}
}

func TestCloseWithoutAnimation(t *testing.T) {
	w, err := NewWriter(t.TempDir(), false, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.WriteFrame(0, 0, gradient(4, 4))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(w.AnimationPath(0)); !os.IsNotExist(err) {
		t.Errorf("expected no animation file, got %v", err)
	}
}
