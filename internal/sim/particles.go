package sim

import (
	"math"
	"math/rand"
)

// Regions and velocity ranges used when creating particles
const (
	SpawnRegion  = 0.5  // Regenerate places particles in [-SpawnRegion, SpawnRegion]²
	AddRegion    = 0.8  // AddRandom places particles in [-AddRegion, AddRegion]²
	InitialSpeed = 0.03 // max |v| per axis on regenerate
	SpawnJitter  = 0.06 // max |v| per axis for added and spawned particles
)

// Particle is a single simulated point
type Particle struct {
	X, Y   float64 // Position
	VX, VY float64 // Velocity
	FX, FY float64 // Force accumulated during the current step
	Type   int     // Type (0 to NumTypes-1)
}

// ParticleStore is the contiguous arena holding every live particle.
// Indices are only meaningful until the next population change.
type ParticleStore struct {
	particles []Particle
}

// NewParticleStore creates an empty store with room for capacity particles
func NewParticleStore(capacity int) *ParticleStore {
	return &ParticleStore{particles: make([]Particle, 0, max(capacity, 0))}
}

// Len returns the number of live particles
func (s *ParticleStore) Len() int {
	return len(s.particles)
}

// All returns the live particles. The slice aliases the store and is
// invalidated by the next step or population edit.
func (s *ParticleStore) All() []Particle {
	return s.particles
}

// At returns a pointer to particle i
func (s *ParticleStore) At(i int) *Particle {
	return &s.particles[i]
}

// Append adds a fully specified particle
func (s *ParticleStore) Append(p Particle) {
	s.particles = append(s.particles, p)
}

// Reset removes every particle, keeping capacity
func (s *ParticleStore) Reset() {
	s.particles = s.particles[:0]
}

// Regenerate replaces the population with perType particles of each type,
// placed uniformly in the central spawn region
func (s *ParticleStore) Regenerate(rng *rand.Rand, numTypes, perType int) {
	s.Reset()
	if need := numTypes * perType; cap(s.particles) < need {
		s.particles = make([]Particle, 0, need)
	}
	for t := 0; t < numTypes; t++ {
		for i := 0; i < perType; i++ {
			s.particles = append(s.particles, Particle{
				X:    uniform(rng, SpawnRegion),
				Y:    uniform(rng, SpawnRegion),
				VX:   uniform(rng, InitialSpeed),
				VY:   uniform(rng, InitialSpeed),
				Type: t,
			})
		}
	}
}

// AddRandom appends count particles at random positions. A negative typ picks
// a random type per particle, otherwise typ is wrapped into range.
func (s *ParticleStore) AddRandom(rng *rand.Rand, count, typ, numTypes int) {
	for i := 0; i < count; i++ {
		t := typ
		if t < 0 {
			t = rng.Intn(numTypes)
		} else {
			t %= numTypes
		}
		s.particles = append(s.particles, Particle{
			X:    uniform(rng, AddRegion),
			Y:    uniform(rng, AddRegion),
			VX:   uniform(rng, SpawnJitter),
			VY:   uniform(rng, SpawnJitter),
			Type: t,
		})
	}
}

// RemoveTrailing drops up to count particles from the end
func (s *ParticleStore) RemoveTrailing(count int) {
	if count <= 0 {
		return
	}
	s.particles = s.particles[:max(0, len(s.particles)-count)]
}

// SetCount adds random-type particles or trims the tail to reach total
func (s *ParticleStore) SetCount(rng *rand.Rand, total, numTypes int) {
	total = max(total, 0)
	switch n := len(s.particles); {
	case total > n:
		s.AddRandom(rng, total-n, -1, numTypes)
	case total < n:
		s.RemoveTrailing(n - total)
	}
}

// SpawnAt appends count particles uniformly distributed in the disk of the
// given radius around (x, y). Nothing happens when the point is outside the
// world. Returns the number created.
func (s *ParticleStore) SpawnAt(rng *rand.Rand, x, y float64, count, typ int, radius float64, numTypes int) int {
	if !inWorld(x, y) || count <= 0 {
		return 0
	}
	t := ((typ % numTypes) + numTypes) % numTypes
	for i := 0; i < count; i++ {
		ox, oy := diskPoint(rng, radius)
		s.particles = append(s.particles, Particle{
			X:    x + ox,
			Y:    y + oy,
			VX:   uniform(rng, SpawnJitter),
			VY:   uniform(rng, SpawnJitter),
			Type: t,
		})
	}
	return count
}

// RemoveNear deletes every particle within radius of (x, y), inclusive.
// Nothing happens when the point is outside the world. Returns the number removed.
func (s *ParticleStore) RemoveNear(x, y, radius float64) int {
	if !inWorld(x, y) {
		return 0
	}
	r2 := radius * radius
	return s.removeIf(func(_ int, p *Particle) bool {
		dx, dy := p.X-x, p.Y-y
		return dx*dx+dy*dy <= r2
	})
}

// RemapTypes folds out-of-range types back into [0, numTypes)
func (s *ParticleStore) RemapTypes(numTypes int) {
	for i := range s.particles {
		p := &s.particles[i]
		if p.Type >= numTypes || p.Type < 0 {
			p.Type = ((p.Type % numTypes) + numTypes) % numTypes
		}
	}
}

// Compact removes every particle whose entry in marked is true, preserving
// the order of the survivors in a single pass. Returns the number removed.
func (s *ParticleStore) Compact(marked []bool) int {
	return s.removeIf(func(i int, _ *Particle) bool {
		return i < len(marked) && marked[i]
	})
}

func (s *ParticleStore) removeIf(drop func(i int, p *Particle) bool) int {
	w := 0
	for r := range s.particles {
		if drop(r, &s.particles[r]) {
			continue
		}
		if w != r {
			s.particles[w] = s.particles[r]
		}
		w++
	}
	removed := len(s.particles) - w
	s.particles = s.particles[:w]
	return removed
}

func inWorld(x, y float64) bool {
	return x >= WorldMin && x <= WorldMax && y >= WorldMin && y <= WorldMax
}

// uniform returns a value in [-half, half)
func uniform(rng *rand.Rand, half float64) float64 {
	return (rng.Float64()*2 - 1) * half
}

// diskPoint samples a point uniformly inside a disk of the given radius
func diskPoint(rng *rand.Rand, radius float64) (float64, float64) {
	angle := rng.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(rng.Float64())
	return r * math.Cos(angle), r * math.Sin(angle)
}
