package layer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// format pairs a magic prefix with its decoder. '?' in magic matches any byte.
type format struct {
	name   string
	magic  string
	decode func(io.Reader) (image.Image, error)
}

// formats are sniffed in order. TGA has no magic and registers an empty one
// with the image package, which would shadow every other format under
// image.Decode, so decoders are dispatched here instead.
var formats = []format{
	{"png", "\x89PNG\r\n\x1a\n", png.Decode},
	{"jpeg", "\xff\xd8", jpeg.Decode},
	{"gif", "GIF8?", gif.Decode},
	{"bmp", "BM????\x00\x00\x00\x00", bmp.Decode},
	{"tiff", "II*\x00", tiff.Decode},
	{"tiff", "MM\x00*", tiff.Decode},
	{"webp", "RIFF????WEBPVP8", webp.Decode},
}

func matchMagic(magic string, b []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && magic[i] != b[i] {
			return false
		}
	}
	return true
}

// decodeImage sniffs the format of r and decodes it. Anything without a known
// magic is tried as TGA.
func decodeImage(r io.Reader) (image.Image, string, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(16)
	for _, f := range formats {
		if matchMagic(f.magic, head) {
			img, err := f.decode(br)
			return img, f.name, err
		}
	}
	img, err := tga.Decode(br)
	return img, "tga", err
}

// Loader fetches and decodes layer images on background goroutines.
type Loader struct {
	// Resolution is the side of the square grid textures are resampled to.
	Resolution int
	// Client fetches http(s) sources.
	Client *http.Client

	wg sync.WaitGroup
}

// NewLoader returns a loader resampling textures to resolution×resolution.
func NewLoader(resolution int) *Loader {
	return &Loader{
		Resolution: resolution,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Load starts fetching l.Source. The result lands in the layer's completion
// slot; failures are not retried.
func (ld *Loader) Load(ctx context.Context, l *Layer) {
	ld.wg.Add(1)
	go func() {
		defer ld.wg.Done()
		start := time.Now()
		tex, aspect, err := ld.fetch(ctx, l.Source)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.complete(&result{err: err})
			return
		}
		if l.complete(&result{tex: tex, aspect: aspect}) {
			slog.Debug("image layer decoded", "source", l.Source, "aspect", aspect, "elapsed", time.Since(start))
		}
	}()
}

// Wait blocks until every started load has finished.
func (ld *Loader) Wait() {
	ld.wg.Wait()
}

func (ld *Loader) fetch(ctx context.Context, source string) (*Texture, float32, error) {
	raw, err := ld.read(ctx, source)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s: %v", ErrAssetUnavailable, source, err)
	}
	tex, aspect, err := Decode(bytes.NewReader(raw), ld.Resolution)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: decode %s: %v", ErrAssetUnavailable, source, err)
	}
	return tex, aspect, nil
}

func (ld *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	client := ld.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Decode reads a PNG, JPEG, GIF, BMP, TIFF, WebP or TGA image, returning the image resampled to a
// resolution×resolution texture and its natural aspect ratio.
func Decode(r io.Reader, resolution int) (*Texture, float32, error) {
	img, name, err := decodeImage(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, 0, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}
	aspect := float32(b.Dx()) / float32(b.Dy())
	return NewTexture(Resample(img, resolution)), aspect, nil
}

// Resample scales src onto a square opaque NRGBA canvas with Catmull-Rom
// filtering. Transparent regions end up over black.
func Resample(src image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.NRGBA{A: 0xff}), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
