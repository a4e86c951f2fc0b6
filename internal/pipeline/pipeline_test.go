package pipeline

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"ripplefx/internal/layer"
	"ripplefx/internal/ripple"
)

type recordingCompositor struct {
	begins     int
	composites map[string]int
	released   int
	closed     int
}

func newRecordingCompositor() *recordingCompositor {
	return &recordingCompositor{composites: make(map[string]int)}
}

func (r *recordingCompositor) Begin(ripple.HeightField) error { r.begins++; return nil }

func (r *recordingCompositor) Composite(l *layer.Layer, _ *ripple.Uniforms, _ ripple.FieldTransform) error {
	r.composites[l.Source]++
	return nil
}

func (r *recordingCompositor) Release(*layer.Layer) { r.released++ }

func (r *recordingCompositor) Close() error { r.closed++; return nil }

func testParams() ripple.Params {
	return ripple.Params{
		Intensity:          0.06,
		Radius:             0.05,
		Viscosity:          0.98,
		Decay:              0.985,
		DistortionStrength: 0.02,
		Aberration:         0.01,
		LightIntensity:     1,
		SpecularPower:      32,
	}
}

func newTestPipeline(t *testing.T, res int, comp Compositor) *Pipeline {
	t.Helper()
	stage, err := ripple.NewStage(res, ripple.NewCPUStepper(2))
	if err != nil {
		t.Fatalf("creating stage: %v", err)
	}
	p := New(stage, comp, ripple.Rect{Width: 100, Height: 100}, Options{MeasureField: true})
	t.Cleanup(func() { p.Close() })
	return p
}

func writeSolidPNG(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	path := filepath.Join(t.TempDir(), "solid.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return path
}

func TestPointerRippleRaisesCellUnderPointer(t *testing.T) {
	p := newTestPipeline(t, 128, newRecordingCompositor())
	params := testParams()

	p.Move(10, 50)
	if _, err := p.Frame(params); err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	p.Move(50, 50)
	stats, err := p.Frame(params)
	if err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if !stats.Inside || stats.Velocity < 0.1 {
		t.Fatalf("expected a saturated inside sample, got %+v", stats)
	}

	buf := p.Stage().Buffers()
	center := buf.At(64, 64)
	// 0.2 above the pointer, away from the trail along y=0.5
	far := buf.At(64, 64+26)
	if center <= far {
		t.Errorf("expected center %f > far %f", center, far)
	}
	if stats.Field.Peak <= 0 {
		t.Errorf("expected a non-zero field peak, got %+v", stats.Field)
	}
}

func TestStillPointerLeavesFieldFlat(t *testing.T) {
	p := newTestPipeline(t, 32, newRecordingCompositor())
	for i := 0; i < 5; i++ {
		stats, err := p.Frame(testParams())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if stats.Field.Peak != 0 {
			t.Fatalf("expected a flat field without pointer input, got %+v", stats.Field)
		}
	}
}

func TestFlatFieldCompositesUnlitTexture(t *testing.T) {
	want := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	comp := NewCPUCompositor(2)
	p := newTestPipeline(t, 16, comp)
	l := p.AddLayer(writeSolidPNG(t, want), image.Rect(0, 0, 32, 32))
	p.WaitForLayers()
	if l.Texture() == nil {
		t.Fatalf("expected the layer to load, got %v", l.Err())
	}

	if _, err := p.Frame(testParams()); err != nil {
		t.Fatalf("frame: %v", err)
	}
	out := comp.Output(l)
	if out == nil {
		t.Fatal("expected an output image")
	}
	near := func(a, b uint8) bool { return a+1 >= b && b+1 >= a }
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			got := out.NRGBAAt(x, y)
			if !near(got.R, want.R) || !near(got.G, want.G) || !near(got.B, want.B) {
				t.Fatalf("pixel (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestRippleLightsCompositedPixels(t *testing.T) {
	base := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	comp := NewCPUCompositor(1)
	p := newTestPipeline(t, 64, comp)
	l := p.AddLayer(writeSolidPNG(t, base), image.Rect(0, 0, 64, 64))
	p.WaitForLayers()

	params := testParams()
	params.Radius = 0.1
	params.Intensity = 0.5
	p.Move(20, 50)
	p.Frame(params)
	p.Move(50, 50)
	if _, err := p.Frame(params); err != nil {
		t.Fatalf("frame: %v", err)
	}

	out := comp.Output(l)
	// the top-left corner is far from the ripple and stays unlit
	unlit := out.NRGBAAt(0, 0).G
	if unlit+1 < base.G || unlit > base.G+1 {
		t.Errorf("expected unlit corner near %d, got %d", base.G, unlit)
	}
	brighter := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if out.NRGBAAt(x, y).G > unlit+2 {
				brighter++
			}
		}
	}
	if brighter == 0 {
		t.Error("expected some pixels to pick up specular or fresnel light")
	}
}

func TestPartialPlaneSamplesFieldUnderPointer(t *testing.T) {
	base := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	comp := NewCPUCompositor(2)
	p := newTestPipeline(t, 64, comp)
	// left half of the 100x100 viewport
	l := p.AddLayer(writeSolidPNG(t, base), image.Rect(0, 0, 50, 100))
	p.WaitForLayers()

	params := testParams()
	params.Radius = 0.1
	params.Intensity = 0.5
	p.Move(20, 50)
	p.Frame(params)
	// drop the entry stroke from the origin, keep only the 20..30 segment
	p.Stage().Buffers().Clear()
	p.Move(30, 50)
	if _, err := p.Frame(params); err != nil {
		t.Fatalf("frame: %v", err)
	}

	out := comp.Output(l)
	unlit := out.NRGBAAt(49, 0).G
	sumX, lit := 0, 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 50; x++ {
			if out.NRGBAAt(x, y).G > unlit+2 {
				sumX += x
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("expected lit pixels around the pointer path")
	}
	// the path runs from x=20 to x=30 in window pixels, which are plane pixels here
	if cx := float64(sumX) / float64(lit); cx < 18 || cx > 32 {
		t.Errorf("expected the ripple centred near x=25, got %.1f", cx)
	}
}

func TestFailedLayerIsSkipped(t *testing.T) {
	comp := newRecordingCompositor()
	p := newTestPipeline(t, 16, comp)
	l := p.AddLayer(filepath.Join(t.TempDir(), "missing.png"), image.Rect(0, 0, 8, 8))
	p.WaitForLayers()

	if _, err := p.Frame(testParams()); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if comp.composites[l.Source] != 0 {
		t.Error("expected no composite for a layer without texture")
	}
	if l.ImageAspect() != layer.DefaultAspect {
		t.Errorf("expected default aspect, got %f", l.ImageAspect())
	}
	if comp.begins != 1 {
		t.Errorf("expected one Begin, got %d", comp.begins)
	}
}

func TestCloseIsIdempotentAndStopsFrames(t *testing.T) {
	comp := newRecordingCompositor()
	p := newTestPipeline(t, 16, comp)
	p.AddLayer("never-loaded.png", image.Rect(0, 0, 4, 4))
	if _, err := p.Frame(testParams()); err != nil {
		t.Fatalf("frame: %v", err)
	}
	steps := p.Stage().Steps()

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if comp.closed != 1 {
		t.Errorf("expected compositor closed once, got %d", comp.closed)
	}

	stats, err := p.Frame(testParams())
	if err != nil || stats.Frame != 0 {
		t.Errorf("expected a no-op frame after close, got %+v err=%v", stats, err)
	}
	if p.Stage().Steps() != steps {
		t.Errorf("expected no steps after close, got %d", p.Stage().Steps()-steps)
	}
	if len(p.Layers()) != 0 {
		t.Errorf("expected layers released, got %d", len(p.Layers()))
	}
}

func TestConcurrentEventsDrainOnce(t *testing.T) {
	p := newTestPipeline(t, 16, newRecordingCompositor())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Move(float64(g*10+1), float64(i))
			}
		}(g)
	}
	wg.Wait()

	stats, err := p.Frame(testParams())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if stats.Events != 400 {
		t.Errorf("expected 400 events, got %d", stats.Events)
	}
	stats, _ = p.Frame(testParams())
	if stats.Events != 0 {
		t.Errorf("expected an empty queue, got %d", stats.Events)
	}
}

func TestLeaveFreezesPointer(t *testing.T) {
	p := newTestPipeline(t, 16, newRecordingCompositor())
	p.Move(50, 50)
	p.Frame(testParams())
	p.Leave()
	stats, _ := p.Frame(testParams())
	if stats.Inside || stats.Velocity != 0 {
		t.Errorf("expected no velocity after leave, got %+v", stats)
	}
	p.Move(60, 50)
	stats, _ = p.Frame(testParams())
	if diff := stats.Velocity - 0.1; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("expected re-entry velocity 0.1, got %f", stats.Velocity)
	}
}
