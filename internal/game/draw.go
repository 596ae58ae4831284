package game

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/olivierh59500/particle-life-go/internal/sim"
)

var background = color.RGBA{10, 10, 16, 255}

// Draw is called each frame by Ebitengine
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	switch g.visMode {
	case VisHeatmap:
		g.drawHeatmap(screen)
	default:
		g.drawParticles(screen)
	}
	ebitenutil.DebugPrint(screen, g.hud())
}

func (g *Game) drawParticles(screen *ebiten.Image) {
	cfg := g.engine.Config()
	w, h := float64(g.width), float64(g.height)
	size := ParticleSize * g.zoom

	for _, p := range g.engine.Particles() {
		sx, sy := g.worldToScreen(p.X, p.Y)
		if sx < -size || sx > w+size || sy < -size || sy > h+size {
			continue
		}
		var col color.RGBA
		if g.visMode == VisSpeed {
			col = speedColor(math.Hypot(p.VX, p.VY), cfg.MaxSpeed)
		} else {
			col = typeColor(p.Type, cfg.NumTypes)
		}
		vector.DrawFilledCircle(screen, float32(sx), float32(sy), float32(size), col, true)
	}
}

// drawHeatmap shades a coarse pixel grid by the force a probe would feel
func (g *Game) drawHeatmap(screen *ebiten.Image) {
	for px := 0; px < g.width; px += HeatmapStep {
		for py := 0; py < g.height; py += HeatmapStep {
			x, y := g.screenToWorld(float64(px)+HeatmapStep/2, float64(py)+HeatmapStep/2)
			if x < sim.WorldMin || x > sim.WorldMax || y < sim.WorldMin || y > sim.WorldMax {
				continue
			}
			vector.DrawFilledRect(screen, float32(px), float32(py), HeatmapStep, HeatmapStep,
				heatColor(g.engine.SampleForceAt(x, y)), false)
		}
	}
}

func (g *Game) hud() string {
	cfg := g.engine.Config()
	m := g.engine.Metrics()
	preset := "-"
	if g.presetIdx >= 0 {
		preset = g.presets[g.presetIdx]
	}
	state := "running"
	if cfg.Paused {
		state = "paused"
	}
	return fmt.Sprintf(
		"TPS %.0f  FPS %.1f  step %.2fms  workers %d\n"+
			"particles %d  types %d  preset %s  %s\n"+
			"boundary %s  view %s  spawn type %d  evolution %t",
		ebiten.ActualTPS(), m.AverageFPS, float64(m.UpdateTime.Microseconds())/1000, m.Workers,
		m.Particles, cfg.NumTypes, preset, state,
		cfg.BoundaryMode, g.visMode, cfg.SpawnParticleType+1, cfg.EvolutionMode,
	)
}

// typeColor spreads the types evenly around the hue circle
func typeColor(t, numTypes int) color.RGBA {
	if numTypes <= 0 {
		numTypes = 1
	}
	h := float64(t) / float64(numTypes) * 360
	return rgba(hsvToRGB(h, 1, 1))
}

// speedColor goes from blue at rest to red at maxSpeed
func speedColor(speed, maxSpeed float64) color.RGBA {
	t := 0.0
	if maxSpeed > 0 {
		t = min(speed/maxSpeed, 1)
	}
	return rgba(hsvToRGB(240*(1-t), 1, 1))
}

func heatColor(mag float64) color.RGBA {
	intensity := uint8(math.Min(mag*50, 255))
	return color.RGBA{intensity, 0, 255 - intensity, 255}
}

func rgba(r, g, b float64) color.RGBA {
	return color.RGBA{uint8(r * 255), uint8(g * 255), uint8(b * 255), 255}
}

// hsvToRGB converts hue in degrees and saturation, value in [0,1]
func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}
