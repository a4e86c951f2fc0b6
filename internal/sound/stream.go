// Package sound turns the height of the water under the pointer into a 16-bit
// stereo PCM stream.
package sound

import (
	"encoding/binary"
	"sync"
)

const (
	pcm16Max = 32767
	// dcAlpha is the per-update weight of the running DC estimate.
	dcAlpha = 0.001
	// levelRelease is the per-frame decay of the loop envelope.
	levelRelease = 0.95
)

// Stream is an io.Reader producing little-endian int16 stereo frames. The
// frame loop calls SetSample once per frame; the audio player reads from
// its own goroutine.
type Stream struct {
	mu     sync.Mutex
	sample float32
	dc     float32
	gain   float32
	level  float32
	loop   *Loop
}

// NewStream returns a stream scaled by gain. loop may be nil.
func NewStream(gain float32, loop *Loop) *Stream {
	return &Stream{gain: gain, loop: loop}
}

// SetSample feeds the height under the pointer and the pointer velocity. The
// height is AC coupled; the velocity opens the loop envelope.
func (s *Stream) SetSample(height, velocity float32) {
	height = min(max(height, -1), 1)
	s.mu.Lock()
	s.dc += dcAlpha * (height - s.dc)
	s.sample = height - s.dc
	s.level = max(s.level*levelRelease, min(velocity*10, 1))
	s.mu.Unlock()
}

// Read fills p with whole stereo frames.
func (s *Stream) Read(p []byte) (int, error) {
	frameBytes := len(p) - len(p)%4
	if frameBytes == 0 {
		return 0, nil
	}
	s.mu.Lock()
	sample := s.sample * s.gain
	level := s.level * s.gain
	s.mu.Unlock()

	for i := 0; i < frameBytes; i += 4 {
		v := sample
		if s.loop != nil {
			v += s.loop.Next() * level
		}
		v = min(max(v, -1), 1)
		pcm := uint16(int16(v * pcm16Max))
		binary.LittleEndian.PutUint16(p[i:], pcm)
		binary.LittleEndian.PutUint16(p[i+2:], pcm)
	}
	return frameBytes, nil
}

// Close implements io.Closer.
func (s *Stream) Close() error { return nil }

// Loop cycles through mono samples. It is only read from the audio goroutine.
type Loop struct {
	samples []float32
	pos     int
}

// NewLoop returns nil for an empty sample set.
func NewLoop(samples []float32) *Loop {
	if len(samples) == 0 {
		return nil
	}
	return &Loop{samples: samples}
}

// Next returns the next sample, wrapping at the end.
func (l *Loop) Next() float32 {
	v := l.samples[l.pos]
	l.pos++
	if l.pos >= len(l.samples) {
		l.pos = 0
	}
	return v
}

// StereoToMono averages interleaved little-endian int16 stereo PCM into
// samples in [-1, 1).
func StereoToMono(pcm []byte) []float32 {
	frameCount := len(pcm) / 4
	if frameCount == 0 {
		return nil
	}
	samples := make([]float32, frameCount)
	for i := range samples {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset : offset+2]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2 : offset+4]))
		samples[i] = (float32(left) + float32(right)) * (0.5 / 32768.0)
	}
	return samples
}
