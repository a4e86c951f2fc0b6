package main

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"ripplefx/internal/pipeline"
	"ripplefx/internal/ripple"
)

// enableAutoWalk schedules a scripted pointer walk for a limited duration.
func (g *Game) enableAutoWalk(duration time.Duration) {
	g.autoWalk = true
	g.autoWalkDeadline = time.Now().Add(duration)
	if g.walk == nil {
		g.walk = pipeline.NewWalk(time.Now().UnixNano(), autoWalkSpeed)
	}
}

// feedPointer queues this tick's pointer events: the scripted walk while it
// runs, otherwise the mouse cursor. Unchanged cursor positions queue nothing,
// which leaves room for the remote feed.
func (g *Game) feedPointer() {
	viewport := g.pipe.Tracker().Rect()
	if g.autoWalk {
		if time.Now().After(g.autoWalkDeadline) {
			g.autoWalk = false
			g.pipe.Leave()
			if g.stopProfile != nil {
				g.stopProfile()
			}
			return
		}
		g.pipe.Move(g.walk.Next(viewport))
		return
	}

	x, y := ebiten.CursorPosition()
	in := ebiten.IsFocused() &&
		float64(x) >= viewport.Left && float64(x) < viewport.Left+viewport.Width &&
		float64(y) >= viewport.Top && float64(y) < viewport.Top+viewport.Height
	switch {
	case !in && g.cursorIn:
		g.pipe.Leave()
	case in && (x != g.cursorX || y != g.cursorY):
		g.pipe.Move(float64(x), float64(y))
	}
	g.cursorIn = in
	g.cursorX, g.cursorY = x, y
}

// handleDebugControls processes the parameter hotkeys.
func (g *Game) handleDebugControls() {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.close()
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.pipe.Stage().Buffers().Clear()
	}
	if !*debugFlag {
		return
	}
	p := &g.cfg.Ripple
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		p.Intensity /= 1.25
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		p.Intensity *= 1.25
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		p.Radius /= 1.25
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		p.Radius *= 1.25
	}
	*p, _ = p.Clamp()
}

// viewportRect is the tracker viewport for a window of w×h logical pixels.
func viewportRect(w, h int) ripple.Rect {
	return ripple.Rect{Width: float64(w), Height: float64(h)}
}
