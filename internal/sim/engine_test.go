package sim

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds a seeded engine and replaces its population with ps
func newTestEngine(t *testing.T, cfg Config, ps ...Particle) *Engine {
	t.Helper()
	e := New(cfg, WithSeed(1))
	if ps != nil {
		e.particles.Reset()
		for _, p := range ps {
			e.particles.Append(p)
		}
	}
	return e
}

// frictionless returns a config where a lone particle moves ballistically
func frictionless(mode BoundaryMode) Config {
	cfg := DefaultConfig()
	cfg.NumTypes = 1
	cfg.ParticlesPerType = 1
	cfg.Friction = 1
	cfg.BoundaryMode = mode
	return cfg
}

func TestEngine_PausedStepIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParticlesPerType = 10
	cfg.Paused = true
	e := newTestEngine(t, cfg)

	before := append([]Particle(nil), e.Particles()...)
	e.Step(ReferenceStep)

	assert.Equal(t, before, e.Particles())
	assert.Equal(t, PerformanceMetrics{}, e.Metrics())

	assert.False(t, e.TogglePaused())
	e.Step(ReferenceStep)
	assert.Equal(t, uint64(1), e.Metrics().Steps)
}

// TestEngine_WrapCrossesSeam checks that leaving through +1 re-enters at -1
func TestEngine_WrapCrossesSeam(t *testing.T) {
	e := newTestEngine(t, frictionless(BoundaryWrap),
		Particle{X: 0.999, Y: 0, VX: 0.6},
		Particle{X: 0, Y: -0.999, VY: -0.6},
	)
	e.Step(ReferenceStep)

	ps := e.Particles()
	require.Len(t, ps, 2)
	assert.InDelta(t, -1+0.009, ps[0].X, 1e-9)
	assert.InDelta(t, 0.6, ps[0].VX, 1e-12, "velocity unchanged by wrapping")
	assert.InDelta(t, 1-0.009, ps[1].Y, 1e-9)
}

func TestWrapCoord(t *testing.T) {
	const eps = 1e-3
	assert.InDelta(t, -1+eps, wrapCoord(1+eps), 1e-12)
	assert.InDelta(t, 1-eps, wrapCoord(-1-eps), 1e-12)
	assert.InDelta(t, -1.0, wrapCoord(1), 1e-12)
	assert.InDelta(t, 0.5, wrapCoord(4.5), 1e-12)
	assert.Equal(t, 0.25, wrapCoord(0.25))
}

func TestShortestDelta(t *testing.T) {
	assert.InDelta(t, -0.2, shortestDelta(1.8), 1e-12)
	assert.InDelta(t, 0.2, shortestDelta(-1.8), 1e-12)
	assert.Equal(t, 0.7, shortestDelta(0.7))
}

// TestEngine_BounceReflectsWithDamping checks clamping to the wall and
// v' = -damping * v on the perpendicular axis only
func TestEngine_BounceReflectsWithDamping(t *testing.T) {
	e := newTestEngine(t, frictionless(BoundaryBounce),
		Particle{X: 0.995, Y: 0, VX: 0.6, VY: 0},
		Particle{X: 0, Y: -0.995, VX: 0.1, VY: -0.5},
	)
	e.Step(ReferenceStep)

	ps := e.Particles()
	assert.Equal(t, WorldMax, ps[0].X)
	assert.InDelta(t, -BounceDamping*0.6, ps[0].VX, 1e-12)

	assert.Equal(t, WorldMin, ps[1].Y)
	assert.InDelta(t, -BounceDamping*-0.5, ps[1].VY, 1e-12)
	assert.InDelta(t, 0.1, ps[1].VX, 1e-12)

	for i := 0; i < 200; i++ {
		e.Step(ReferenceStep)
		for _, p := range e.Particles() {
			require.True(t, inWorld(p.X, p.Y), "particle escaped: %+v", p)
		}
	}
}

// TestEngine_KillRemovesCrossers spawns particles on the edge moving out
func TestEngine_KillRemovesCrossers(t *testing.T) {
	e := newTestEngine(t, frictionless(BoundaryKill),
		Particle{X: 0, Y: 0},
		Particle{X: 0.5, Y: -0.5},
	)
	require.Equal(t, 3, e.SpawnAt(WorldMax, 0.5, 3, 0))
	for i := 2; i < 5; i++ {
		p := e.particles.At(i)
		p.X, p.Y = WorldMax, 0.5
		p.VX, p.VY = 0.3, 0
	}
	require.Equal(t, 5, e.ParticleCount())

	e.Step(ReferenceStep)
	assert.Equal(t, 2, e.ParticleCount())
	assert.Equal(t, 3, e.Metrics().Removed)
	assert.Equal(t, 2, e.Metrics().Particles)
}

func TestEngine_SpeedClamped(t *testing.T) {
	cfg := frictionless(BoundaryWrap)
	cfg.MaxSpeed = 0.2
	e := newTestEngine(t, cfg, Particle{VX: 3, VY: 4})
	e.Step(ReferenceStep)

	p := e.Particles()[0]
	assert.InDelta(t, 0.12, p.VX, 1e-12)
	assert.InDelta(t, 0.16, p.VY, 1e-12)
}

// TestEngine_FrictionPerReferenceStep checks friction applies once per
// ReferenceStep and compounds for longer steps
func TestEngine_FrictionPerReferenceStep(t *testing.T) {
	cfg := frictionless(BoundaryWrap)
	cfg.Friction = 0.5
	e := newTestEngine(t, cfg, Particle{VX: 0.4})

	e.Step(ReferenceStep)
	assert.InDelta(t, 0.2, e.Particles()[0].VX, 1e-9)

	e.Step(2 * ReferenceStep)
	assert.InDelta(t, 0.05, e.Particles()[0].VX, 1e-9)
}

func TestEngine_PairForceDirection(t *testing.T) {
	cfg := frictionless(BoundaryBounce)
	cfg.NumTypes = 2
	e := newTestEngine(t, cfg,
		Particle{X: 0, Y: 0, Type: 0},
		Particle{X: 0.16, Y: 0, Type: 1},
	)
	e.SetForce(0, 1, 1)  // 0 chases 1
	e.SetForce(1, 0, -1) // 1 flees 0
	e.Step(ReferenceStep)

	ps := e.Particles()
	// Normalized distance 0.64 is in the lobe
	assert.Greater(t, ps[0].FX, 0.0)
	assert.Greater(t, ps[1].FX, 0.0)
	assert.Zero(t, ps[0].FY)
	assert.Equal(t, 2, e.Metrics().ForceEvaluations)
	assert.Equal(t, 2, e.Metrics().SpatialQueries)
}

func TestEngine_CoincidentParticlesSkipped(t *testing.T) {
	e := newTestEngine(t, frictionless(BoundaryWrap),
		Particle{X: 0.1, Y: 0.1},
		Particle{X: 0.1, Y: 0.1},
	)
	e.Step(ReferenceStep)
	for _, p := range e.Particles() {
		assert.Zero(t, p.FX)
		assert.Zero(t, p.FY)
	}
	assert.Zero(t, e.Metrics().ForceEvaluations)
}

// TestEngine_WrapForceAcrossSeam checks neighbors on opposite edges interact
func TestEngine_WrapForceAcrossSeam(t *testing.T) {
	e := newTestEngine(t, frictionless(BoundaryWrap),
		Particle{X: 0.98, Y: 0},
		Particle{X: -0.98, Y: 0},
	)
	e.Step(ReferenceStep)

	ps := e.Particles()
	// Distance 0.04 across the seam, inside the repulsion ramp
	assert.Less(t, ps[0].FX, 0.0)
	assert.Greater(t, ps[1].FX, 0.0)
}

func TestEngine_MouseRepels(t *testing.T) {
	cfg := frictionless(BoundaryBounce)
	e := newTestEngine(t, cfg,
		Particle{X: 0.1, Y: 0},
		Particle{X: 0.9, Y: 0},
	)
	e.SetMousePosition(0, 0)

	e.Step(ReferenceStep)
	assert.Zero(t, e.Particles()[0].FX, "no force while released")

	e.SetMousePressed(true)
	e.Step(ReferenceStep)
	ps := e.Particles()
	// The force is evaluated before the particle moves, at distance 0.1
	assert.InDelta(t, (1-0.1/DefaultMouseRadius)*DefaultMouseForce, ps[0].FX, 1e-9)
	assert.Zero(t, ps[1].FX, "outside mouse radius")
}

func TestEngine_FieldEffects(t *testing.T) {
	cfg := frictionless(BoundaryBounce)
	cfg.EnableGravity = true
	cfg.GravityStrength = 1
	e := newTestEngine(t, cfg, Particle{X: 0.5, Y: 0})
	e.Step(ReferenceStep)
	assert.InDelta(t, -1/(0.25+gravitySoftening), e.Particles()[0].FX, 1e-9)

	cfg.EnableGravity = false
	cfg.EnableVortex = true
	cfg.VortexStrength = 1
	e = newTestEngine(t, cfg, Particle{X: 0.5, Y: 0})
	e.Step(ReferenceStep)
	p := e.Particles()[0]
	assert.InDelta(t, 0, p.FX, 1e-12)
	assert.InDelta(t, -1/(0.5+vortexSoftening), p.FY, 1e-9)

	cfg.EnableVortex = false
	cfg.EnableFlowField = true
	cfg.FlowStrength = 0.7
	e = newTestEngine(t, cfg, Particle{X: 0.3, Y: -0.2})
	e.Step(ReferenceStep)
	p = e.Particles()[0]
	assert.InDelta(t, 0.7, math.Hypot(p.FX, p.FY), 1e-9)
}

func TestEngine_ResizeTypes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumTypes = 6
	cfg.ParticlesPerType = 5
	e := newTestEngine(t, cfg)
	e.SetForce(1, 2, 0.25)

	e.ResizeTypes(3)
	assert.Equal(t, 3, e.Config().NumTypes)
	assert.Equal(t, 3, e.ForceMatrix().Size())
	assert.Equal(t, 0.25, e.Force(1, 2))
	for _, p := range e.Particles() {
		assert.Less(t, p.Type, 3)
	}

	rows := e.ForceMatrix().Rows()
	e.ResizeTypes(3)
	assert.Equal(t, rows, e.ForceMatrix().Rows(), "resizing to the same size is a no-op")

	e.ResizeTypes(0)
	assert.Equal(t, MinTypes, e.Config().NumTypes)
	e.ResizeTypes(100)
	assert.Equal(t, MaxTypes, e.Config().NumTypes)
	assert.Zero(t, e.Force(7, 7))
}

func TestEngine_SetForceRoundTrip(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	n := e.Config().NumTypes
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := float64(i*n+j)/float64(n*n) - 0.5
			e.SetForce(i, j, v)
			assert.Equal(t, v, e.Force(i, j))
		}
	}
}

func TestEngine_SetConfigClampsAndResizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParticlesPerType = 10
	e := newTestEngine(t, cfg)

	cfg = e.Config()
	cfg.NumTypes = 2
	cfg.InteractionRadius = 0.4
	cfg.SpawnCount = 1000
	e.SetConfig(cfg)

	got := e.Config()
	assert.Equal(t, 2, got.NumTypes)
	assert.Equal(t, MaxSpawnCount, got.SpawnCount)
	assert.Equal(t, 2, e.ForceMatrix().Size())
	assert.Equal(t, 0.4, e.index.CellSize())
	for _, p := range e.Particles() {
		assert.Less(t, p.Type, 2)
	}
}

func TestEngine_LoadPreset(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	require.NoError(t, e.LoadPreset("Snakes"))
	assert.Equal(t, 6, e.Config().NumTypes)
	assert.Equal(t, 0.5, e.Force(0, 1))
	assert.Equal(t, -0.3, e.Force(0, 2))
	assert.Equal(t, -0.2, e.Force(0, 5))
	assert.Equal(t, 6*DefaultParticlesPerType, e.ParticleCount())

	require.NoError(t, e.LoadPreset("Balance"))
	assert.Equal(t, 3, e.Config().NumTypes)
	assert.Equal(t, -0.3, e.Force(0, 1))

	err := e.LoadPreset("Nope")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
	assert.Equal(t, 3, e.Config().NumTypes, "engine unchanged after unknown preset")
}

func TestPresetNames(t *testing.T) {
	assert.Equal(t, []string{"Balance", "Chaos", "Orbits", "Snakes", "Swirls"}, PresetNames())
	for _, name := range PresetNames() {
		p, err := LookupPreset(name)
		require.NoError(t, err)
		require.Len(t, p.Forces, p.NumTypes)
	}
}

func TestEngine_PopulationEdits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParticlesPerType = 10
	e := newTestEngine(t, cfg)
	require.Equal(t, 40, e.ParticleCount())

	e.SetParticleCount(55)
	assert.Equal(t, 55, e.ParticleCount())
	e.RemoveParticles(50)
	assert.Equal(t, 5, e.ParticleCount())
	e.AddParticles(3, 2)
	assert.Equal(t, 8, e.ParticleCount())

	e.SetMousePosition(0.5, 0.5)
	assert.Equal(t, DefaultSpawnCount, e.SpawnAtMouse())
	assert.Equal(t, 8+DefaultSpawnCount, e.ParticleCount())
	assert.GreaterOrEqual(t, e.RemoveAtMouse(), DefaultSpawnCount)

	e.SetMousePosition(-10, -10)
	assert.Zero(t, e.SpawnAtMouse())
	assert.Zero(t, e.RemoveAtMouse())

	e.Regenerate()
	assert.Equal(t, 40, e.ParticleCount())
}

// TestEngine_DeterministicReplay runs the same seeded scenario twice with
// threading disabled and expects identical positions
func TestEngine_DeterministicReplay(t *testing.T) {
	run := func() []Particle {
		cfg := DefaultConfig()
		cfg.NumTypes = 3
		cfg.ParticlesPerType = 10
		cfg.ParallelThreshold = 0
		m, err := ForceMatrixFromRows(presets["Balance"].Forces)
		require.NoError(t, err)

		e := New(cfg, WithSeed(1234), WithForceMatrix(m))
		for i := 0; i < 100; i++ {
			e.Step(ReferenceStep)
		}
		return append([]Particle(nil), e.Particles()...)
	}

	a, b := run(), run()
	require.Len(t, b, len(a))
	for i := range a {
		assert.InDelta(t, a[i].X, b[i].X, 1e-12)
		assert.InDelta(t, a[i].Y, b[i].Y, 1e-12)
	}
}

// TestEngine_ThreadedMatchesSerial: each particle's force is summed by a
// single worker in neighbor order, so fanning out must not change results
func TestEngine_ThreadedMatchesSerial(t *testing.T) {
	run := func(threshold, workers int) *Engine {
		cfg := DefaultConfig()
		cfg.ParticlesPerType = 100
		cfg.ParallelThreshold = threshold
		cfg.Workers = workers
		e := New(cfg, WithSeed(99))
		for i := 0; i < 20; i++ {
			e.Step(ReferenceStep)
		}
		return e
	}

	serial := run(0, 0)
	threaded := run(1, 4)
	assert.Equal(t, 1, serial.Metrics().Workers)
	assert.Equal(t, 4, threaded.Metrics().Workers)
	assert.Equal(t, serial.Metrics().ForceEvaluations, threaded.Metrics().ForceEvaluations)

	a, b := serial.Particles(), threaded.Particles()
	require.Len(t, b, len(a))
	for i := range a {
		assert.InDelta(t, a[i].X, b[i].X, 1e-12)
		assert.InDelta(t, a[i].Y, b[i].Y, 1e-12)
	}
}

// TestEngine_SpatialHashMatchesBruteForce compares one step with and
// without the index, in both wrapped and bounded worlds
func TestEngine_SpatialHashMatchesBruteForce(t *testing.T) {
	for _, mode := range []BoundaryMode{BoundaryWrap, BoundaryBounce} {
		t.Run(mode.String(), func(t *testing.T) {
			run := func(useHash bool) *Engine {
				cfg := DefaultConfig()
				cfg.BoundaryMode = mode
				cfg.ParticlesPerType = 60
				cfg.UseSpatialHash = useHash
				e := New(cfg, WithSeed(5))
				// Spread particles over the whole world so the seam matters
				rng := e.rng
				for i := range e.Particles() {
					p := e.particles.At(i)
					p.X, p.Y = uniform(rng, 1), uniform(rng, 1)
				}
				e.Step(ReferenceStep)
				return e
			}

			hashed, brute := run(true), run(false)
			assert.Equal(t, brute.Metrics().ForceEvaluations, hashed.Metrics().ForceEvaluations)
			assert.Zero(t, brute.Metrics().SpatialQueries)
			a, b := hashed.Particles(), brute.Particles()
			for i := range a {
				assert.InDelta(t, b[i].FX, a[i].FX, 1e-9)
				assert.InDelta(t, b[i].FY, a[i].FY, 1e-9)
			}
		})
	}
}

func TestEngine_MetricsWithClock(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	cfg := DefaultConfig()
	cfg.ParticlesPerType = 5
	e := New(cfg, WithSeed(1), WithClock(clock))

	e.Step(ReferenceStep)
	assert.Zero(t, e.Metrics().AverageFPS, "first step only primes the tracker")

	for i := 0; i < 10; i++ {
		now = now.Add(20 * time.Millisecond)
		e.Step(ReferenceStep)
	}
	assert.InDelta(t, 50, e.Metrics().AverageFPS, 1e-9)
	assert.Equal(t, uint64(11), e.Metrics().Steps)
	assert.Equal(t, 20, e.Metrics().Particles)
	assert.Equal(t, 20, e.Metrics().SpatialQueries)
}

func TestFPSTracker_RollingWindow(t *testing.T) {
	var f fpsTracker
	now := time.Unix(100, 0)
	f.observe(now)
	for i := 0; i < FPSHistory; i++ {
		now = now.Add(10 * time.Millisecond)
		f.observe(now)
	}
	assert.InDelta(t, 100, f.average(), 1e-9)

	// A full window of slower frames replaces the old samples
	for i := 0; i < FPSHistory; i++ {
		now = now.Add(25 * time.Millisecond)
		f.observe(now)
	}
	assert.InDelta(t, 40, f.average(), 1e-6)
}

func TestEngine_EvolutionMutatesMatrix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParticlesPerType = 2
	cfg.EvolutionMode = true
	cfg.EvolutionInterval = 3
	e := New(cfg, WithSeed(8))

	before := e.ForceMatrix().Rows()
	e.Step(ReferenceStep)
	e.Step(ReferenceStep)
	assert.Equal(t, before, e.ForceMatrix().Rows())
	e.Step(ReferenceStep)
	assert.NotEqual(t, before, e.ForceMatrix().Rows())
}

func TestEngine_SampleForceAt(t *testing.T) {
	cfg := frictionless(BoundaryBounce)
	e := newTestEngine(t, cfg, Particle{X: 0.05, Y: 0})
	// Probe inside the repulsion ramp of the only particle
	assert.Greater(t, e.SampleForceAt(0, 0), 0.0)
	assert.Zero(t, e.SampleForceAt(0.8, 0.8))
}

func TestEngine_SetForceMatrixNilIgnored(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	before := e.ForceMatrix().Rows()

	assert.NotPanics(t, func() { e.SetForceMatrix(nil) })
	assert.Equal(t, before, e.ForceMatrix().Rows())
	assert.Equal(t, DefaultNumTypes, e.Config().NumTypes)
}

// TestEngine_CorruptTypePanics checks that a type written past the matrix
// through the Particles slice fails the step instead of reading another cell
func TestEngine_CorruptTypePanics(t *testing.T) {
	cfg := frictionless(BoundaryWrap)
	cfg.NumTypes = 2
	e := newTestEngine(t, cfg,
		Particle{X: 0, Y: 0, Type: 0},
		Particle{X: 0.05, Y: 0, Type: 1},
	)
	e.SetForce(0, 1, 0.5)
	e.Step(ReferenceStep)

	e.Particles()[1].Type = 2 // row 0, column 2 would alias row 1, column 0
	assert.Panics(t, func() { e.Step(ReferenceStep) })
}
