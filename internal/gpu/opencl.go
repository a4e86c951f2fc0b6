//go:build opencl

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"ripplefx/internal/ripple"
)

// Available reports whether this build carries the OpenCL backend.
const Available = true

const rippleKernelSource = `#ifdef HALF_STORAGE
#define LOAD(b, i) vload_half((i), (b))
#define STORE(b, i, v) vstore_half((v), (i), (b))
typedef half store_t;
#else
#define LOAD(b, i) ((b)[(i)])
#define STORE(b, i, v) ((b)[(i)] = (v))
typedef float store_t;
#endif

inline float falloff(float radius, float d)
{
    if (radius <= 0.0f) {
        return 0.0f;
    }
    float t = clamp((d - radius) / -radius, 0.0f, 1.0f);
    float s = t * t * (3.0f - 2.0f * t);
    return s * s;
}

__kernel void ripple_step(
    const int size,
    const float viscosity,
    const float decay,
    const float amplitude,
    const float radius,
    const float px,
    const float py,
    const float qx,
    const float qy,
    __global const store_t* curr,
    __global const store_t* prev,
    __global store_t* next_buffer)
{
    int idx = get_global_id(0);
    if (idx >= size * size) {
        return;
    }
    int x = idx % size;
    int y = idx / size;
    int last = size - 1;
    int row = y * size;
    float c = LOAD(curr, idx);
    float left = LOAD(curr, row + max(x - 1, 0));
    float right = LOAD(curr, row + min(x + 1, last));
    float top = LOAD(curr, min(y + 1, last) * size + x);
    float bottom = LOAD(curr, max(y - 1, 0) * size + x);
    float avg = 0.25f * (left + right + top + bottom);
    float wave = 2.0f * avg - LOAD(prev, idx);
    wave = c + (wave - c) * viscosity;
    wave *= decay;
    if (amplitude > 0.0f) {
        float inv = 1.0f / (float)size;
        float2 p = (float2)(((float)x + 0.5f) * inv, ((float)y + 0.5f) * inv);
        float2 pos = (float2)(px, py);
        float2 from = (float2)(qx, qy);
        float r = falloff(radius, distance(p, pos));
        for (int i = 0; i < TRAIL_SAMPLES; i++) {
            float2 q = from + (pos - from) * ((float)i / (float)TRAIL_SAMPLES);
            r = fmax(r, falloff(radius * TRAIL_SCALE, distance(p, q)));
        }
        wave += r * amplitude;
    }
    STORE(next_buffer, idx, wave);
}`

// Options configures the OpenCL stepper.
type Options struct {
	// PreferFP16 stores the height buffers as binary16 on the device.
	PreferFP16 bool
	// Verify recomputes every step on the CPU and compares the device result.
	Verify bool
}

// OpenCLStepper runs the ripple program on an OpenCL device. The device holds
// its own copy of the three buffers whose roles mirror the host arena; the
// freshly written buffer is read back after every step for compositing.
type OpenCLStepper struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	bufs       [3]*cl.MemObject
	size       int
	fp16       bool
	verify     bool
	deviceName string

	// role index the device buffers are synced to; -1 forces an upload
	syncedIndex int
	halfScratch []uint16
	verifyOut   []float32
}

// NewOpenCLStepper compiles the ripple program and allocates three device
// buffers of size×size cells. Allocation failures wrap ripple.ErrResourceExhausted.
func NewOpenCLStepper(size int, opts Options) (*OpenCLStepper, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%w: %s: %v", ripple.ErrResourceExhausted, msg, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms available", ripple.ErrResourceExhausted)
	}
	device := pickDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = pickDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no suitable OpenCL devices found", ripple.ErrResourceExhausted)
	}

	s := &OpenCLStepper{
		size:        size,
		fp16:        opts.PreferFP16,
		verify:      opts.Verify,
		deviceName:  device.Name(),
		syncedIndex: -1,
	}
	if err := s.init(device); err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("OpenCL stepper ready", "device", s.deviceName, "fp16", s.fp16, "resolution", size)
	return s, nil
}

func pickDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && !errors.Is(err, cl.ErrDeviceNotFound) {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

// init builds every device object; Close releases whatever was created if it fails.
func (s *OpenCLStepper) init(device *cl.Device) error {
	var err error
	s.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return fmt.Errorf("%w: creating OpenCL context: %v", ripple.ErrResourceExhausted, err)
	}
	s.queue, err = s.context.CreateCommandQueue(device, 0)
	if err != nil {
		return fmt.Errorf("%w: creating OpenCL command queue: %v", ripple.ErrResourceExhausted, err)
	}
	s.program, err = s.context.CreateProgramWithSource([]string{rippleKernelSource})
	if err != nil {
		return fmt.Errorf("creating OpenCL program: %w", err)
	}
	buildOpts := fmt.Sprintf("-DTRAIL_SAMPLES=%d -DTRAIL_SCALE=%gf", ripple.TrailSamples, ripple.TrailRadiusScale)
	if s.fp16 {
		buildOpts += " -DHALF_STORAGE"
	}
	if err := s.program.BuildProgram([]*cl.Device{device}, buildOpts); err != nil {
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return fmt.Errorf("building OpenCL program: %w", err)
	}
	s.kernel, err = s.program.CreateKernel("ripple_step")
	if err != nil {
		return fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	cellBytes := int(unsafe.Sizeof(float32(0)))
	if s.fp16 {
		cellBytes = int(unsafe.Sizeof(uint16(0)))
	}
	for i := range s.bufs {
		s.bufs[i], err = s.context.CreateEmptyBuffer(cl.MemReadWrite, s.size*s.size*cellBytes)
		if err != nil {
			return fmt.Errorf("%w: allocating device buffer %d: %v", ripple.ErrResourceExhausted, i, err)
		}
	}
	if s.fp16 {
		s.halfScratch = make([]uint16, s.size*s.size)
	}
	return nil
}

// Name identifies the backend in logs.
func (s *OpenCLStepper) Name() string {
	if s.fp16 {
		return "opencl-fp16"
	}
	return "opencl"
}

// DeviceName reports the OpenCL device in use.
func (s *OpenCLStepper) DeviceName() string { return s.deviceName }

// Step runs one kernel pass reading the device copies of current and prev and
// writing next, then reads next back into the host arena.
func (s *OpenCLStepper) Step(buf *ripple.TripleBuffer, u *ripple.Uniforms) error {
	if buf.Size() != s.size {
		return fmt.Errorf("unexpected field resolution %d, device holds %d", buf.Size(), s.size)
	}
	if s.syncedIndex != buf.Index() {
		for i := range s.bufs {
			if err := s.upload(i, buf.Buffer(i)); err != nil {
				return err
			}
		}
	}
	prev, cur, next := buf.Roles()
	if err := s.kernel.SetArgs(
		int32(s.size),
		u.Viscosity,
		u.Decay,
		ripple.InjectionAmplitude(u),
		u.Radius,
		u.Pointer.X(),
		u.Pointer.Y(),
		u.PrevPointer.X(),
		u.PrevPointer.Y(),
		s.bufs[cur],
		s.bufs[prev],
		s.bufs[next],
	); err != nil {
		return fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := s.queue.EnqueueNDRangeKernel(s.kernel, nil, []int{s.size * s.size}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing kernel: %w", err)
	}
	if err := s.download(next, buf.Next()); err != nil {
		return err
	}
	if s.verify {
		if err := s.verifyStep(buf, u); err != nil {
			return err
		}
	}
	// the host advances roles right after this returns
	s.syncedIndex = (buf.Index() + 1) % 3
	return nil
}

func (s *OpenCLStepper) upload(i int, host []float32) error {
	if s.fp16 {
		packHalf(s.halfScratch, host)
		ptr := unsafe.Pointer(&s.halfScratch[0])
		if _, err := s.queue.EnqueueWriteBuffer(s.bufs[i], true, 0, len(s.halfScratch)*2, ptr, nil); err != nil {
			return fmt.Errorf("writing device buffer %d: %w", i, err)
		}
		return nil
	}
	if _, err := s.queue.EnqueueWriteBufferFloat32(s.bufs[i], true, 0, host, nil); err != nil {
		return fmt.Errorf("writing device buffer %d: %w", i, err)
	}
	return nil
}

func (s *OpenCLStepper) download(i int, host []float32) error {
	if s.fp16 {
		ptr := unsafe.Pointer(&s.halfScratch[0])
		if _, err := s.queue.EnqueueReadBuffer(s.bufs[i], true, 0, len(s.halfScratch)*2, ptr, nil); err != nil {
			return fmt.Errorf("reading device buffer %d: %w", i, err)
		}
		unpackHalf(host, s.halfScratch)
		return nil
	}
	if _, err := s.queue.EnqueueReadBufferFloat32(s.bufs[i], true, 0, host, nil); err != nil {
		return fmt.Errorf("reading device buffer %d: %w", i, err)
	}
	return nil
}

// verifyStep recomputes the step on the CPU and compares it with the device result.
func (s *OpenCLStepper) verifyStep(buf *ripple.TripleBuffer, u *ripple.Uniforms) error {
	if cap(s.verifyOut) < s.size*s.size {
		s.verifyOut = make([]float32, s.size*s.size)
	}
	want := s.verifyOut[:s.size*s.size]
	ripple.StepInto(want, buf.Current(), buf.Prev(), s.size, u)
	tol := 1e-4
	if s.fp16 {
		tol = 4e-3
	}
	for i, got := range buf.Next() {
		if diff := math.Abs(float64(got - want[i])); diff > tol {
			return fmt.Errorf("device step mismatch at cell %d: device=%f host=%f diff=%f", i, got, want[i], diff)
		}
	}
	return nil
}

// Close releases every device object. It is safe on a partially built stepper.
func (s *OpenCLStepper) Close() error {
	for i, b := range s.bufs {
		if b != nil {
			b.Release()
			s.bufs[i] = nil
		}
	}
	if s.kernel != nil {
		s.kernel.Release()
		s.kernel = nil
	}
	if s.program != nil {
		s.program.Release()
		s.program = nil
	}
	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.context != nil {
		s.context.Release()
		s.context = nil
	}
	return nil
}
