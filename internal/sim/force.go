package sim

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Beta is the normalized distance separating the close-range repulsion ramp
// from the attraction/repulsion lobe
const Beta = 0.3

// RepulsionPolicy selects how the close-range ramp (d < Beta) relates to the
// attraction coefficient
type RepulsionPolicy int

const (
	// RepulsionUnconditional applies the ramp at full strength for every pair,
	// so even a zero coefficient keeps particles apart
	RepulsionUnconditional RepulsionPolicy = iota
	// RepulsionScaled multiplies the ramp by |a|; pairs with a zero
	// coefficient do not repel at close range
	RepulsionScaled
)

// String returns the policy name used in settings files and flags
func (p RepulsionPolicy) String() string {
	if p == RepulsionScaled {
		return "scaled"
	}
	return "unconditional"
}

// Force evaluates the pairwise law on normalized distance d for coefficient a.
// Negative results push away from the neighbor, positive pull toward it.
func Force(d, a float64, policy RepulsionPolicy) float64 {
	switch {
	case d < Beta:
		ramp := d/Beta - 1
		if policy == RepulsionScaled {
			ramp *= math.Abs(a)
		}
		return ramp
	case d < 1:
		return a * (1 - math.Abs(2*d-1-Beta)/(1-Beta))
	}
	return 0
}

// ErrMatrixShape is returned when rows do not form a square matrix
var ErrMatrixShape = errors.New("force matrix must be square")

// ForceMatrix holds the attraction coefficient for every (from, to) type pair
type ForceMatrix struct {
	n    int
	vals []float64 // row-major [from*n + to]
}

// NewForceMatrix creates an n x n zero matrix
func NewForceMatrix(n int) *ForceMatrix {
	if n < 0 {
		n = 0
	}
	return &ForceMatrix{n: n, vals: make([]float64, n*n)}
}

// ForceMatrixFromRows builds a matrix from nested rows, clamping each value
func ForceMatrixFromRows(rows [][]float64) (*ForceMatrix, error) {
	m := NewForceMatrix(len(rows))
	for i, row := range rows {
		if len(row) != len(rows) {
			return nil, errors.Wrapf(ErrMatrixShape, "row %d has %d entries, want %d", i, len(row), len(rows))
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// Size returns the side length
func (m *ForceMatrix) Size() int {
	return m.n
}

// Get returns the coefficient for from -> to, or 0 when out of range
func (m *ForceMatrix) Get(from, to int) float64 {
	if !m.valid(from, to) {
		return 0
	}
	return m.vals[from*m.n+to]
}

// Set stores a coefficient clamped to [-1, 1]; out-of-range pairs are ignored
func (m *ForceMatrix) Set(from, to int, v float64) {
	if !m.valid(from, to) || math.IsNaN(v) {
		return
	}
	m.vals[from*m.n+to] = clamp(v, -1, 1)
}

// at is Get for the step loop. Types are remapped whenever the type count
// changes, so an out-of-range pair means particle state was corrupted through
// the Particles slice; it panics instead of reading a neighboring cell.
func (m *ForceMatrix) at(from, to int) float64 {
	if uint(from) >= uint(m.n) || uint(to) >= uint(m.n) {
		panic(errors.Errorf("sim: type pair (%d, %d) outside %dx%d force matrix", from, to, m.n, m.n))
	}
	return m.vals[from*m.n+to]
}

// Resize changes the side length, keeping the overlapping block and
// zero-filling new rows and columns
func (m *ForceMatrix) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n == m.n {
		return
	}
	vals := make([]float64, n*n)
	keep := min(n, m.n)
	for i := 0; i < keep; i++ {
		copy(vals[i*n:i*n+keep], m.vals[i*m.n:i*m.n+keep])
	}
	m.n = n
	m.vals = vals
}

// Randomize fills every cell uniformly from [lo, hi)
func (m *ForceMatrix) Randomize(rng *rand.Rand, lo, hi float64) {
	for i := range m.vals {
		m.vals[i] = clamp(lo+rng.Float64()*(hi-lo), -1, 1)
	}
}

// Mutate adds gaussian noise with the given deviation to every cell
func (m *ForceMatrix) Mutate(rng *rand.Rand, sigma float64) {
	for i := range m.vals {
		m.vals[i] = clamp(m.vals[i]+rng.NormFloat64()*sigma, -1, 1)
	}
}

// Clone returns an independent copy
func (m *ForceMatrix) Clone() *ForceMatrix {
	c := &ForceMatrix{n: m.n, vals: make([]float64, len(m.vals))}
	copy(c.vals, m.vals)
	return c
}

// Rows returns the matrix as nested rows, for serialization
func (m *ForceMatrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = make([]float64, m.n)
		copy(rows[i], m.vals[i*m.n:(i+1)*m.n])
	}
	return rows
}

func (m *ForceMatrix) valid(from, to int) bool {
	return from >= 0 && from < m.n && to >= 0 && to < m.n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalText encodes the policy by name
func (p RepulsionPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts "unconditional" or "scaled"
func (p *RepulsionPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unconditional":
		*p = RepulsionUnconditional
	case "scaled":
		*p = RepulsionScaled
	default:
		return errors.Errorf("unknown repulsion policy %q", text)
	}
	return nil
}
