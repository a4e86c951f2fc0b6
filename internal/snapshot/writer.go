// Package snapshot writes composited frames to disk as lossless WebP.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
)

// Writer stores frames per layer under a directory and can assemble them into
// one animated WebP per layer on Close.
type Writer struct {
	dir        string
	animate    bool
	frameDelay uint
	frames     map[int][]image.Image
	written    int
}

// NewWriter creates dir. frameDelayMs is the animation delay between
// consecutive written frames.
func NewWriter(dir string, animate bool, frameDelayMs uint) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Writer{
		dir:        dir,
		animate:    animate,
		frameDelay: max(frameDelayMs, 1),
		frames:     make(map[int][]image.Image),
	}, nil
}

// FramePath returns where frame of layer is written.
func (w *Writer) FramePath(layer int, frame uint64) string {
	return filepath.Join(w.dir, fmt.Sprintf("layer%d", layer), fmt.Sprintf("frame_%05d.webp", frame))
}

// AnimationPath returns where the animation of layer is written.
func (w *Writer) AnimationPath(layer int) string {
	return filepath.Join(w.dir, fmt.Sprintf("layer%d.webp", layer))
}

// Written returns the number of still frames written.
func (w *Writer) Written() int { return w.written }

// WriteFrame encodes img. The image is copied when animating, so callers may
// reuse it.
func (w *Writer) WriteFrame(layer int, frame uint64, img *image.NRGBA) error {
	path := w.FramePath(layer, frame)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating layer directory: %w", err)
	}
	if err := encodeFile(path, func(f *os.File) error {
		return nativewebp.Encode(f, img, nil)
	}); err != nil {
		return err
	}
	w.written++
	if w.animate {
		cp := image.NewNRGBA(img.Bounds())
		copy(cp.Pix, img.Pix)
		w.frames[layer] = append(w.frames[layer], cp)
	}
	return nil
}

// Close writes the animations, if enabled.
func (w *Writer) Close() error {
	var errs []error
	for layer, frames := range w.frames {
		if len(frames) == 0 {
			continue
		}
		ani := &nativewebp.Animation{
			Images:    frames,
			Durations: make([]uint, len(frames)),
			Disposals: make([]uint, len(frames)),
		}
		for i := range ani.Durations {
			ani.Durations[i] = w.frameDelay
		}
		path := w.AnimationPath(layer)
		if err := encodeFile(path, func(f *os.File) error {
			return nativewebp.EncodeAll(f, ani, nil)
		}); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Info("animation written", "path", path, "frames", len(frames))
	}
	clear(w.frames)
	return errors.Join(errs...)
}

func encodeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("WebP encode %s: %w", path, err)
	}
	return f.Close()
}
