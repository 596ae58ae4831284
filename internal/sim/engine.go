// Package sim implements the particle life simulation core: the spatial index,
// the pairwise force law, the particle arena and the engine that steps them.
// It performs no I/O; rendering and input layers drive it through Engine.
package sim

import (
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Simulation constants
const (
	ReferenceStep  = time.Second / 60 // Friction is applied exactly once per ReferenceStep
	MinDistance    = 1e-3             // pairs closer than this are skipped
	BounceDamping  = 0.8              // fraction of perpendicular speed kept on bounce
	RandomForceMax = 0.5              // RandomizeForceMatrix draws from [-RandomForceMax, RandomForceMax)
)

// workerScratch holds the per-goroutine buffers and counters of the force phase
type workerScratch struct {
	neighbors  []int
	visited    []uint64
	forceEvals int
	queries    int
}

// Engine owns one simulation: its configuration, force matrix, particles and
// spatial index. It is not safe for concurrent use; callers mutate it between
// steps from a single goroutine.
type Engine struct {
	cfg       Config
	particles *ParticleStore
	forces    *ForceMatrix
	index     *SpatialIndex
	rng       *rand.Rand
	noise     *perlin.Perlin
	log       *zap.Logger
	now       func() time.Time
	seed      int64
	initial   *ForceMatrix

	metrics PerformanceMetrics
	fps     fpsTracker
	scratch []workerScratch
	kill    []bool
}

// New creates an engine from cfg (clamped into range), with a random force
// matrix unless WithForceMatrix is given, and a freshly generated population
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		log:  zap.NewNop(),
		now:  time.Now,
		seed: time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cfg = cfg.Clamped()
	e.rng = rand.New(rand.NewSource(e.seed))
	e.noise = newNoise(e.seed)
	e.index = NewSpatialIndex(e.cfg.InteractionRadius)
	e.particles = NewParticleStore(e.cfg.NumTypes * e.cfg.ParticlesPerType)

	if e.initial != nil {
		e.forces = e.initial
		e.initial = nil
		e.forces.Resize(e.cfg.NumTypes)
	} else {
		e.forces = NewForceMatrix(e.cfg.NumTypes)
		e.forces.Randomize(e.rng, -RandomForceMax, RandomForceMax)
	}
	e.particles.Regenerate(e.rng, e.cfg.NumTypes, e.cfg.ParticlesPerType)

	e.log.Info("particle system initialized",
		zap.Int("particles", e.particles.Len()),
		zap.Int("types", e.cfg.NumTypes),
		zap.Int("hardwareThreads", runtime.NumCPU()),
		zap.Stringer("boundary", e.cfg.BoundaryMode),
	)
	return e
}

// Step advances the simulation by dt scaled by TimeScale. It does nothing
// while paused and always runs to completion once started.
func (e *Engine) Step(dt time.Duration) {
	if e.cfg.Paused {
		return
	}

	start := e.now()
	e.metrics.reset()
	h := dt.Seconds() * e.cfg.TimeScale

	// Build spatial bins
	if e.cfg.UseSpatialHash {
		e.buildIndex()
	}

	// Compute forces (parallel above the threshold)
	e.computeForces()

	// Integrate and apply the boundary
	e.integrate(h)

	e.metrics.Steps++
	if e.cfg.EvolutionMode && e.metrics.Steps%uint64(e.cfg.EvolutionInterval) == 0 {
		e.forces.Mutate(e.rng, e.cfg.EvolutionSigma)
		e.log.Debug("force matrix mutated", zap.Uint64("step", e.metrics.Steps))
	}

	e.metrics.Particles = e.particles.Len()
	e.metrics.UpdateTime = e.now().Sub(start)
	e.metrics.AverageFPS = e.fps.observe(start)
}

// buildIndex assigns every particle to its grid cell
func (e *Engine) buildIndex() {
	e.index.Clear()
	for i, p := range e.particles.All() {
		e.index.Insert(i, p.X, p.Y)
	}
}

// computeForces fills FX/FY of every particle. Workers own disjoint
// contiguous index ranges, so no merge lock is needed and the result does
// not depend on the worker count.
func (e *Engine) computeForces() {
	n := e.particles.Len()
	workers := e.workerCount(n)
	e.metrics.Workers = workers
	if len(e.scratch) < workers {
		e.scratch = append(e.scratch, make([]workerScratch, workers-len(e.scratch))...)
	}

	if workers <= 1 {
		e.accumulateRange(0, n, &e.scratch[0])
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		chunk := (n + workers - 1) / workers
		for w := 0; w < workers; w++ {
			lo, hi := w*chunk, min((w+1)*chunk, n)
			if lo >= hi {
				break
			}
			sc := &e.scratch[w]
			g.Go(func() error {
				e.accumulateRange(lo, hi, sc)
				return nil
			})
		}
		_ = g.Wait()
	}

	for w := range e.scratch[:workers] {
		sc := &e.scratch[w]
		e.metrics.ForceEvaluations += sc.forceEvals
		e.metrics.SpatialQueries += sc.queries
		sc.forceEvals, sc.queries = 0, 0
	}
}

// workerCount decides how many goroutines the force phase uses for n particles
func (e *Engine) workerCount(n int) int {
	if e.cfg.ParallelThreshold == 0 || n <= e.cfg.ParallelThreshold {
		return 1
	}
	w := e.cfg.Workers
	if w == 0 {
		w = runtime.NumCPU()
	}
	return max(1, min(w, n))
}

// accumulateRange computes the total force on particles [lo, hi). It only
// reads other particles and only writes FX/FY inside its own range.
func (e *Engine) accumulateRange(lo, hi int, sc *workerScratch) {
	ps := e.particles.All()
	c := &e.cfg
	wrap := c.BoundaryMode == BoundaryWrap

	for i := lo; i < hi; i++ {
		p := &ps[i]
		var fx, fy float64

		if c.UseSpatialHash {
			sc.neighbors, sc.visited = sc.neighbors[:0], sc.visited[:0]
			if wrap {
				sc.neighbors, sc.visited = e.index.queryWrappedInto(sc.neighbors, sc.visited, p.X, p.Y, c.InteractionRadius, WorldMin, WorldMax)
			} else {
				sc.neighbors, sc.visited = e.index.queryInto(sc.neighbors, sc.visited, p.X, p.Y, c.InteractionRadius)
			}
			sc.queries++
			for _, j := range sc.neighbors {
				if j == i {
					continue
				}
				if dfx, dfy, ok := e.pairForce(p, &ps[j], wrap); ok {
					fx += dfx
					fy += dfy
					sc.forceEvals++
				}
			}
		} else {
			for j := range ps {
				if j == i {
					continue
				}
				if dfx, dfy, ok := e.pairForce(p, &ps[j], wrap); ok {
					fx += dfx
					fy += dfy
					sc.forceEvals++
				}
			}
		}

		gx, gy := e.fieldForce(p.X, p.Y)
		mx, my := e.mouseForce(p.X, p.Y)
		p.FX = fx + gx + mx
		p.FY = fy + gy + my
	}
}

// pairForce returns the force q exerts on p, or ok=false when the pair is
// too close to resolve or outside the interaction radius
func (e *Engine) pairForce(p, q *Particle, wrap bool) (fx, fy float64, ok bool) {
	dx, dy := q.X-p.X, q.Y-p.Y
	if wrap {
		dx, dy = shortestDelta(dx), shortestDelta(dy)
	}
	r := math.Sqrt(dx*dx + dy*dy)
	if r < MinDistance || r >= e.cfg.InteractionRadius {
		return 0, 0, false
	}
	a := e.forces.at(p.Type, q.Type)
	f := Force(r/e.cfg.InteractionRadius, a, e.cfg.Repulsion) * e.cfg.ForceFactor
	return dx / r * f, dy / r * f, true
}

// mouseForce pushes particles away from a pressed cursor, fading linearly
// to zero at MouseRadius
func (e *Engine) mouseForce(x, y float64) (fx, fy float64) {
	c := &e.cfg
	if !c.MousePressed {
		return 0, 0
	}
	dx, dy := c.MouseX-x, c.MouseY-y
	d := math.Sqrt(dx*dx + dy*dy)
	if d >= c.MouseRadius || d <= MinDistance {
		return 0, 0
	}
	strength := (1 - d/c.MouseRadius) * c.MouseForce
	return -dx / d * strength, -dy / d * strength
}

// integrate applies forces over h seconds, then the boundary policy.
// Killed particles are collected first and compacted after the pass.
func (e *Engine) integrate(h float64) {
	c := &e.cfg
	ps := e.particles.All()
	damp := math.Pow(c.Friction, h/ReferenceStep.Seconds())

	kill := c.BoundaryMode == BoundaryKill
	if kill {
		e.kill = resizeMarks(e.kill, len(ps))
	}
	marked := 0

	for i := range ps {
		p := &ps[i]
		p.VX = (p.VX + p.FX*h) * damp
		p.VY = (p.VY + p.FY*h) * damp

		// Limit speed
		if speed := math.Sqrt(p.VX*p.VX + p.VY*p.VY); speed > c.MaxSpeed {
			scale := c.MaxSpeed / speed
			p.VX *= scale
			p.VY *= scale
		}

		p.X += p.VX * h
		p.Y += p.VY * h

		switch c.BoundaryMode {
		case BoundaryWrap:
			p.X = wrapCoord(p.X)
			p.Y = wrapCoord(p.Y)
		case BoundaryBounce:
			p.X, p.VX = bounce(p.X, p.VX)
			p.Y, p.VY = bounce(p.Y, p.VY)
		case BoundaryKill:
			if !inWorld(p.X, p.Y) {
				e.kill[i] = true
				marked++
			}
		}
	}

	if marked > 0 {
		e.metrics.Removed = e.particles.Compact(e.kill)
	}
}

func resizeMarks(marks []bool, n int) []bool {
	if cap(marks) < n {
		return make([]bool, n)
	}
	marks = marks[:n]
	clear(marks)
	return marks
}

// shortestDelta maps a raw delta on one axis to its shortest torus equivalent
func shortestDelta(d float64) float64 {
	if d > WorldSpan/2 {
		return d - WorldSpan
	}
	if d < -WorldSpan/2 {
		return d + WorldSpan
	}
	return d
}

// wrapCoord folds a coordinate into [WorldMin, WorldMax)
func wrapCoord(x float64) float64 {
	if x >= WorldMin && x < WorldMax {
		return x
	}
	return x - WorldSpan*math.Floor((x-WorldMin)/WorldSpan)
}

// bounce clamps x to the world and reflects its velocity with damping
func bounce(x, v float64) (float64, float64) {
	switch {
	case x < WorldMin:
		return WorldMin, -BounceDamping * v
	case x > WorldMax:
		return WorldMax, -BounceDamping * v
	}
	return x, v
}
