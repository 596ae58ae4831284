// Package game drives a sim.Engine from an Ebitengine window: it maps input to
// engine calls, steps at the tick rate and renders particles and a HUD.
package game

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/olivierh59500/particle-life-go/internal/settings"
	"github.com/olivierh59500/particle-life-go/internal/sim"
	"github.com/olivierh59500/particle-life-go/internal/telemetry"
)

// View constants
const (
	ParticleSize = 2.0
	MinZoom      = 0.1 // Limit zoom out so the world stays visible
	MaxZoom      = 10.0
	ZoomStep     = 0.1
	HeatmapStep  = 16 // heatmap cell size in pixels
)

// VisMode selects how Draw renders the world
type VisMode int

const (
	VisTypes VisMode = iota
	VisSpeed
	VisHeatmap
	numVisModes
)

var visNames = [...]string{"types", "speed", "heatmap"}

func (v VisMode) String() string {
	if v < 0 || v >= numVisModes {
		return "unknown"
	}
	return visNames[v]
}

// Options configures the driver
type Options struct {
	Width, Height int
	MatrixFile    string               // target of the S and L keys
	Preset        string               // currently loaded preset, if any
	Collector     *telemetry.Collector // optional, receives metrics after every tick
	Logger        *zap.Logger
	Done          <-chan struct{}      // closing it ends the game loop
}

// Game implements ebiten.Game on top of a sim.Engine
type Game struct {
	engine    *sim.Engine
	log       *zap.Logger
	collector *telemetry.Collector
	done      <-chan struct{}

	width, height int
	matrixFile    string
	visMode       VisMode
	zoom          float64
	presets       []string
	presetIdx     int
}

var _ ebiten.Game = (*Game)(nil)

// New creates a driver for engine. The engine must not be used elsewhere
// while the game runs.
func New(engine *sim.Engine, opts Options) *Game {
	g := &Game{
		engine:     engine,
		log:        opts.Logger,
		collector:  opts.Collector,
		done:       opts.Done,
		width:      opts.Width,
		height:     opts.Height,
		matrixFile: opts.MatrixFile,
		zoom:       1,
		presets:    sim.PresetNames(),
		presetIdx:  -1,
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	if g.width <= 0 || g.height <= 0 {
		g.width, g.height = 800, 600
	}
	if g.matrixFile == "" {
		g.matrixFile = settings.DefaultMatrixFile
	}
	for i, name := range g.presets {
		if name == opts.Preset {
			g.presetIdx = i
		}
	}
	return g
}

// Update is called each tick by Ebitengine
func (g *Game) Update() error {
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}

	g.handleKeys()
	g.handleMouse()

	g.engine.Step(tickDuration(ebiten.TPS()))
	if g.collector != nil {
		g.collector.Observe(g.engine.Metrics())
	}
	return nil
}

// Layout returns the fixed logical screen size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

func tickDuration(tps int) time.Duration {
	if tps <= 0 {
		return sim.ReferenceStep
	}
	return time.Second / time.Duration(tps)
}

// handleKeys processes keyboard shortcuts
func (g *Game) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		paused := g.engine.TogglePaused()
		g.log.Debug("toggled pause", zap.Bool("paused", paused))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.engine.Reset(true)
		g.presetIdx = -1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.visMode = (g.visMode + 1) % numVisModes
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.nextPreset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.saveMatrix()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.loadMatrix()
	}

	cfg := g.engine.Config()
	changed := false
	if inpututil.IsKeyJustPressed(ebiten.KeyE) {
		cfg.EvolutionMode = !cfg.EvolutionMode
		changed = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		cfg.BoundaryMode = nextBoundary(cfg.BoundaryMode)
		changed = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		if cfg.MouseMode == sim.MouseInteract {
			cfg.MouseMode = sim.MouseSpawn
		} else {
			cfg.MouseMode = sim.MouseInteract
		}
		changed = true
	}
	for i := 0; i < sim.MaxTypes; i++ {
		if inpututil.IsKeyJustPressed(ebiten.Key1 + ebiten.Key(i)) {
			cfg.SpawnParticleType = i
			changed = true
		}
	}
	if changed {
		g.engine.SetConfig(cfg)
	}

	_, wheelY := ebiten.Wheel()
	g.zoom = clampZoom(g.zoom + wheelY*ZoomStep)
}

// handleMouse forwards the cursor and buttons to the engine
func (g *Game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	x, y := g.screenToWorld(float64(mx), float64(my))
	g.engine.SetMousePosition(x, y)

	cfg := g.engine.Config()
	if cfg.MouseMode == sim.MouseInteract {
		g.engine.SetMousePressed(ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))
	} else {
		g.engine.SetMousePressed(false)
		if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
			g.engine.SpawnAtMouse()
		}
	}
	if cfg.EnableParticleSpawning && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		g.engine.SpawnAtMouse()
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonMiddle) {
		g.engine.RemoveAtMouse()
	}
}

func (g *Game) nextPreset() {
	if len(g.presets) == 0 {
		return
	}
	g.presetIdx = (g.presetIdx + 1) % len(g.presets)
	name := g.presets[g.presetIdx]
	if err := g.engine.LoadPreset(name); err != nil {
		g.log.Warn("preset not loaded", zap.String("preset", name), zap.Error(err))
	}
}

func (g *Game) saveMatrix() {
	if err := settings.SaveMatrix(g.matrixFile, g.engine.ForceMatrix()); err != nil {
		g.log.Warn("matrix not saved", zap.Error(err))
		return
	}
	g.log.Info("saved force matrix", zap.String("file", g.matrixFile))
}

func (g *Game) loadMatrix() {
	m, err := settings.LoadMatrix(g.matrixFile)
	if err != nil {
		g.log.Warn("matrix not loaded", zap.Error(err))
		return
	}
	g.engine.SetForceMatrix(m)
	g.presetIdx = -1
	g.log.Info("loaded force matrix", zap.String("file", g.matrixFile), zap.Int("types", m.Size()))
}

func nextBoundary(b sim.BoundaryMode) sim.BoundaryMode {
	return (b + 1) % (sim.BoundaryKill + 1)
}

func clampZoom(z float64) float64 {
	return min(max(z, MinZoom), MaxZoom)
}

// scale is the number of pixels per world unit at the current zoom. The
// world square is fitted to the shorter side so it is never distorted.
func (g *Game) scale() float64 {
	return float64(min(g.width, g.height)) / 2 * g.zoom
}

// worldToScreen maps world coordinates (y up) to pixels (y down)
func (g *Game) worldToScreen(x, y float64) (float64, float64) {
	s := g.scale()
	return float64(g.width)/2 + x*s, float64(g.height)/2 - y*s
}

func (g *Game) screenToWorld(sx, sy float64) (float64, float64) {
	s := g.scale()
	return (sx - float64(g.width)/2) / s, (float64(g.height)/2 - sy) / s
}
