package sim

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSpatialIndex_NegativeCoordinates verifies floor-based cell assignment
func TestSpatialIndex_NegativeCoordinates(t *testing.T) {
	s := NewSpatialIndex(0.25)
	s.Insert(0, -0.1, -0.1)
	s.Insert(1, 0.1, 0.1)

	// A tiny query around (-0.1, -0.1) stays inside cell (-1, -1)
	got := s.Query(nil, -0.1, -0.1, 0.01)
	assert.Equal(t, []int{0}, got)

	got = s.Query(nil, 0.1, 0.1, 0.01)
	assert.Equal(t, []int{1}, got)
}

// TestSpatialIndex_Clear verifies buckets are emptied but reusable
func TestSpatialIndex_Clear(t *testing.T) {
	s := NewSpatialIndex(0.3)
	for i := 0; i < 10; i++ {
		s.Insert(i, 0, 0)
	}
	require.Len(t, s.Query(nil, 0, 0, 0.1), 10)

	s.Clear()
	assert.Empty(t, s.Query(nil, 0, 0, 0.1))

	s.Insert(3, 0, 0)
	assert.Equal(t, []int{3}, s.Query(nil, 0, 0, 0.1))
}

// TestSpatialIndex_InvalidCellSize verifies a non-positive size falls back to the default
func TestSpatialIndex_InvalidCellSize(t *testing.T) {
	s := NewSpatialIndex(0)
	assert.Equal(t, DefaultInteractionRadius, s.CellSize())
	s.SetCellSize(-1)
	assert.Equal(t, DefaultInteractionRadius, s.CellSize())
}

// TestSpatialIndex_QuerySuperset checks that no particle truly within the
// radius is missing from the query, for random placements and radii
func TestSpatialIndex_QuerySuperset(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		cell := 0.05 + rng.Float64()*0.4
		radius := 0.02 + rng.Float64()*0.5
		pts := randomPoints(rng, 300)

		s := NewSpatialIndex(cell)
		for i, p := range pts {
			s.Insert(i, p[0], p[1])
		}

		for q := 0; q < 20; q++ {
			x, y := uniform(rng, 1), uniform(rng, 1)
			got := toSet(s.Query(nil, x, y, radius))
			for i, p := range pts {
				if math.Hypot(p[0]-x, p[1]-y) <= radius {
					require.Contains(t, got, i, "trial %d: point %d missing (cell %.3f radius %.3f)", trial, i, cell, radius)
				}
			}
		}
	}
}

// TestSpatialIndex_QueryWrappedSuperset checks the same property with
// torus distances, which exercises queries across the world seam
func TestSpatialIndex_QueryWrappedSuperset(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 50; trial++ {
		cell := 0.05 + rng.Float64()*0.4
		radius := 0.02 + rng.Float64()*0.5
		pts := randomPoints(rng, 300)

		s := NewSpatialIndex(cell)
		for i, p := range pts {
			s.Insert(i, p[0], p[1])
		}

		for q := 0; q < 20; q++ {
			// Bias queries toward the edges
			x := WorldMax - rng.Float64()*radius
			y := WorldMin + rng.Float64()*radius
			if q%2 == 0 {
				x, y = uniform(rng, 1), uniform(rng, 1)
			}
			got := s.QueryWrapped(nil, x, y, radius, WorldMin, WorldMax)
			set := toSet(got)
			assert.Len(t, set, len(got), "wrapped query returned duplicates")

			for i, p := range pts {
				dx, dy := shortestDelta(p[0]-x), shortestDelta(p[1]-y)
				if math.Hypot(dx, dy) <= radius {
					require.Contains(t, set, i, "trial %d: point %d missing across seam", trial, i)
				}
			}
		}
	}
}

// TestSpatialIndex_QueryAppends verifies Query appends to dst without clobbering it
func TestSpatialIndex_QueryAppends(t *testing.T) {
	s := NewSpatialIndex(0.5)
	s.Insert(4, 0.1, 0.1)
	s.Insert(2, 0.2, 0.2)

	got := s.Query([]int{99}, 0.15, 0.15, 0.01)
	sort.Ints(got)
	assert.Equal(t, []int{2, 4, 99}, got)
}

func TestCellKey_NeighborsDistinct(t *testing.T) {
	keys := map[uint64]bool{}
	for cx := -4; cx <= 4; cx++ {
		for cy := -4; cy <= 4; cy++ {
			keys[cellKey(cx, cy)] = true
		}
	}
	assert.Len(t, keys, 81)
}

func randomPoints(rng *rand.Rand, n int) [][2]float64 {
	pts := make([][2]float64, n)
	for i := range pts {
		pts[i] = [2]float64{uniform(rng, 1), uniform(rng, 1)}
	}
	return pts
}

func toSet(idx []int) map[int]struct{} {
	set := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		set[i] = struct{}{}
	}
	return set
}
