package sim

import (
	"math"

	"go.uber.org/zap"
)

// Config returns a copy of the current configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// SetConfig applies cfg after clamping it. A changed type count resizes the
// force matrix and remaps particle types immediately.
func (e *Engine) SetConfig(cfg Config) {
	cfg = cfg.Clamped()
	typesChanged := cfg.NumTypes != e.cfg.NumTypes
	e.cfg = cfg
	if typesChanged {
		e.applyNumTypes(cfg.NumTypes)
	}
	if e.index.CellSize() != cfg.InteractionRadius {
		e.index.SetCellSize(cfg.InteractionRadius)
	}
}

// Paused reports whether Step is currently a no-op
func (e *Engine) Paused() bool {
	return e.cfg.Paused
}

// SetPaused switches between the paused and running states
func (e *Engine) SetPaused(paused bool) {
	e.cfg.Paused = paused
}

// TogglePaused flips the run state and returns the new one
func (e *Engine) TogglePaused() bool {
	e.cfg.Paused = !e.cfg.Paused
	return e.cfg.Paused
}

// Metrics returns the metrics of the last running step
func (e *Engine) Metrics() PerformanceMetrics {
	return e.metrics
}

// Particles returns the live particle slice for rendering. It aliases
// engine state: read it between steps and do not retain it.
func (e *Engine) Particles() []Particle {
	return e.particles.All()
}

// ParticleCount returns the current population size
func (e *Engine) ParticleCount() int {
	return e.particles.Len()
}

// Force returns the coefficient from -> to, 0 when out of range
func (e *Engine) Force(from, to int) float64 {
	return e.forces.Get(from, to)
}

// SetForce stores one coefficient, clamped to [-1, 1]
func (e *Engine) SetForce(from, to int, v float64) {
	e.forces.Set(from, to, v)
}

// ForceMatrix returns a copy of the force matrix
func (e *Engine) ForceMatrix() *ForceMatrix {
	return e.forces.Clone()
}

// SetForceMatrix replaces the matrix. Its size becomes the type count
// (clamped to the supported range) and particle types are remapped.
// A nil matrix is ignored.
func (e *Engine) SetForceMatrix(m *ForceMatrix) {
	if m == nil {
		return
	}
	n := clampInt(m.Size(), MinTypes, MaxTypes)
	e.forces = m.Clone()
	e.applyNumTypes(n)
}

// RandomizeForceMatrix draws every coefficient uniformly from
// [-RandomForceMax, RandomForceMax)
func (e *Engine) RandomizeForceMatrix() {
	e.forces.Resize(e.cfg.NumTypes)
	e.forces.Randomize(e.rng, -RandomForceMax, RandomForceMax)
}

// MutateForceMatrix nudges every coefficient by gaussian noise
func (e *Engine) MutateForceMatrix(sigma float64) {
	e.forces.Mutate(e.rng, sigma)
}

// Regenerate replaces the population with ParticlesPerType of each type
func (e *Engine) Regenerate() {
	e.particles.Regenerate(e.rng, e.cfg.NumTypes, e.cfg.ParticlesPerType)
	e.log.Debug("particles created",
		zap.Int("particles", e.particles.Len()),
		zap.Int("types", e.cfg.NumTypes),
	)
}

// Reset regenerates the population, optionally with a new random matrix
func (e *Engine) Reset(randomForces bool) {
	if randomForces {
		e.RandomizeForceMatrix()
	} else {
		e.forces.Resize(e.cfg.NumTypes)
	}
	e.Regenerate()
}

// LoadPreset installs a catalog matrix with its type count and regenerates.
// On error the engine is unchanged.
func (e *Engine) LoadPreset(name string) error {
	p, err := LookupPreset(name)
	if err != nil {
		return err
	}
	m, err := ForceMatrixFromRows(p.Forces)
	if err != nil {
		return err
	}
	e.forces = m
	e.applyNumTypes(p.NumTypes)
	e.Regenerate()
	e.log.Info("loaded preset", zap.String("name", name), zap.Int("types", p.NumTypes))
	return nil
}

// ResizeTypes changes the type count (clamped to [MinTypes, MaxTypes]),
// resizing the matrix and remapping particles in the same call
func (e *Engine) ResizeTypes(n int) {
	e.applyNumTypes(clampInt(n, MinTypes, MaxTypes))
}

func (e *Engine) applyNumTypes(n int) {
	e.cfg.NumTypes = n
	e.cfg.SpawnParticleType = clampInt(e.cfg.SpawnParticleType, 0, n-1)
	e.forces.Resize(n)
	e.particles.RemapTypes(n)
}

// SetParticleCount adds random particles or trims the tail to reach n
func (e *Engine) SetParticleCount(n int) {
	e.particles.SetCount(e.rng, n, e.cfg.NumTypes)
}

// AddParticles appends count particles; typ < 0 picks random types
func (e *Engine) AddParticles(count, typ int) {
	e.particles.AddRandom(e.rng, count, typ, e.cfg.NumTypes)
}

// RemoveParticles removes up to count particles
func (e *Engine) RemoveParticles(count int) {
	e.particles.RemoveTrailing(count)
}

// SpawnAt creates count particles of typ within SpawnRadius of (x, y).
// Points outside the world are ignored. Returns the number created.
func (e *Engine) SpawnAt(x, y float64, count, typ int) int {
	return e.particles.SpawnAt(e.rng, x, y, count, typ, e.cfg.SpawnRadius, e.cfg.NumTypes)
}

// SpawnAtMouse spawns SpawnCount particles of SpawnParticleType at the cursor
func (e *Engine) SpawnAtMouse() int {
	return e.SpawnAt(e.cfg.MouseX, e.cfg.MouseY, e.cfg.SpawnCount, e.cfg.SpawnParticleType)
}

// RemoveNear deletes particles within radius of (x, y)
func (e *Engine) RemoveNear(x, y, radius float64) int {
	return e.particles.RemoveNear(x, y, radius)
}

// RemoveAtMouse deletes particles within MouseRadius of the cursor
func (e *Engine) RemoveAtMouse() int {
	return e.RemoveNear(e.cfg.MouseX, e.cfg.MouseY, e.cfg.MouseRadius)
}

// SetMousePosition records the cursor in world coordinates
func (e *Engine) SetMousePosition(x, y float64) {
	e.cfg.MouseX, e.cfg.MouseY = x, y
}

// SetMousePressed records whether the interaction button is held
func (e *Engine) SetMousePressed(pressed bool) {
	e.cfg.MousePressed = pressed
}

// SampleForceAt returns the magnitude of the neighbor force a probe particle
// of type 0 would feel at (x, y). Used for heatmaps.
func (e *Engine) SampleForceAt(x, y float64) float64 {
	probe := Particle{X: x, Y: y}
	wrap := e.cfg.BoundaryMode == BoundaryWrap
	var fx, fy float64
	ps := e.particles.All()
	for j := range ps {
		if dfx, dfy, ok := e.pairForce(&probe, &ps[j], wrap); ok {
			fx += dfx
			fy += dfy
		}
	}
	return math.Hypot(fx, fy)
}
