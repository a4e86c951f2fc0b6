package main

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Draw renders the composited layers and the optional debug overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.closed {
		return
	}
	g.display.Draw(screen, g.pipe.Layers())

	if *debugFlag {
		g.drawEnergyGraph(screen)
		s := g.lastStats
		u := g.pipe.Uniforms()
		debugMsg := fmt.Sprintf("FPS: %.1f  TPS: %.1f\nBackend: %s (%dx%d)\nStep: %.2f ms  Frame: %.2f ms\nEnergy: %.5f  Peak: %.3f\nVelocity: %.4f  Intensity: %.3f (+/-)  Radius: %.3f ([/])",
			ebiten.ActualFPS(), ebiten.ActualTPS(),
			g.pipe.Stage().Backend(), g.pipe.Stage().Resolution(), g.pipe.Stage().Resolution(),
			s.Step.Seconds()*1000, s.Total.Seconds()*1000,
			s.Field.Energy, s.Field.Peak,
			s.Velocity, u.Intensity, u.Radius)
		ebitenutil.DebugPrint(screen, debugMsg)
	}
}

// Layout reports the logical screen size used by Ebiten.
func (g *Game) Layout(_, _ int) (int, int) { return g.cfg.Window.Width, g.cfg.Window.Height }

// drawEnergyGraph plots the recent field energy along the bottom edge.
func (g *Game) drawEnergyGraph(screen *ebiten.Image) {
	if len(g.energy) < 2 {
		return
	}
	peak := 0.0
	for _, e := range g.energy {
		peak = max(peak, e)
	}
	if peak == 0 {
		return
	}
	const graphH = 60.0
	b := screen.Bounds()
	step := float32(b.Dx()) / float32(overlayEnergyHistory)
	base := float32(b.Max.Y) - 4
	clr := color.RGBA{0, 200, 255, 200}
	for i := 1; i < len(g.energy); i++ {
		y0 := base - float32(g.energy[i-1]/peak*graphH)
		y1 := base - float32(g.energy[i]/peak*graphH)
		vector.StrokeLine(screen, float32(i-1)*step, y0, float32(i)*step, y1, 1, clr, false)
	}
}
