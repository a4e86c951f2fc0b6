package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"ripplefx/internal/sound"
)

// startAudio plays the height under the pointer, plus the optional loop.
// Failures only disable audio.
func (g *Game) startAudio() {
	var loop *sound.Loop
	if path := g.cfg.Audio.Loop; path != "" {
		samples, err := loadLoopSamples(audioSampleRate, path)
		if err != nil {
			slog.Warn("audio loop unavailable", "path", path, "error", err)
		} else {
			loop = sound.NewLoop(samples)
		}
	}
	if g.audioCtx == nil {
		g.audioCtx = audio.NewContext(audioSampleRate)
	}
	stream := sound.NewStream(float32(g.cfg.Audio.Gain), loop)
	player, err := g.audioCtx.NewPlayer(stream)
	if err != nil {
		slog.Warn("audio player creation failed", "error", err)
		return
	}
	player.SetBufferSize(audioBufferDuration)
	player.Play()
	g.audioStream = stream
	g.audioPlayer = player
}

// loadLoopSamples decodes the WAV at path and returns stereo-averaged samples at sampleRate.
func loadLoopSamples(sampleRate int, path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stream, err := wav.DecodeWithSampleRate(sampleRate, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	decoded, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading decoded %q: %w", path, err)
	}
	samples := sound.StereoToMono(decoded)
	if len(samples) == 0 {
		return nil, fmt.Errorf("wav %q has no usable samples", path)
	}
	return samples, nil
}
