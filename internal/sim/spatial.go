package sim

import "math"

// hashMul is an odd 64-bit constant; multiplying by it is a bijection
const hashMul = 0x9E3779B97F4A7C15

// Bin holds the particle indices that fall into one grid cell
type Bin []int

// SpatialIndex is a uniform grid bucketing particle indices by 2-D cell.
// It is rebuilt every step and is only valid for the positions it was built from.
type SpatialIndex struct {
	cellSize float64
	bins     map[uint64]Bin
	visited  []uint64 // scratch for single-threaded queries
}

// NewSpatialIndex creates an empty index with the given cell size
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	s := &SpatialIndex{bins: make(map[uint64]Bin)}
	s.SetCellSize(cellSize)
	return s
}

// CellSize returns the edge length of one grid cell
func (s *SpatialIndex) CellSize() float64 {
	return s.cellSize
}

// SetCellSize changes the cell size and drops all buckets
func (s *SpatialIndex) SetCellSize(size float64) {
	if !(size > 0) || math.IsInf(size, 0) {
		size = DefaultInteractionRadius
	}
	s.cellSize = size
	s.bins = make(map[uint64]Bin)
}

// Clear empties every bucket, keeping the backing storage for reuse
func (s *SpatialIndex) Clear() {
	for k, b := range s.bins {
		s.bins[k] = b[:0]
	}
}

// Insert appends index to the bucket of the cell containing (x, y)
func (s *SpatialIndex) Insert(index int, x, y float64) {
	key := cellKey(s.cell(x), s.cell(y))
	s.bins[key] = append(s.bins[key], index)
}

// Query appends to dst the contents of every cell overlapping the square
// [x-radius, x+radius] x [y-radius, y+radius]. The result is a superset of
// the indices within radius; callers filter by exact distance.
func (s *SpatialIndex) Query(dst []int, x, y, radius float64) []int {
	s.visited = s.visited[:0]
	dst, s.visited = s.queryInto(dst, s.visited, x, y, radius)
	return dst
}

// QueryWrapped is Query on a torus spanning [lo, hi) on both axes: the parts
// of the square that fall past an edge are also looked up on the opposite side.
func (s *SpatialIndex) QueryWrapped(dst []int, x, y, radius, lo, hi float64) []int {
	s.visited = s.visited[:0]
	dst, s.visited = s.queryWrappedInto(dst, s.visited, x, y, radius, lo, hi)
	return dst
}

// queryInto is the allocation-free core of Query; visited collects the keys
// already read so a cell reached twice (by overlapping wrapped images) is
// only appended once.
func (s *SpatialIndex) queryInto(dst []int, visited []uint64, x, y, radius float64) ([]int, []uint64) {
	minX, maxX := s.cell(x-radius), s.cell(x+radius)
	minY, maxY := s.cell(y-radius), s.cell(y+radius)

	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			key := cellKey(cx, cy)
			if seen(visited, key) {
				continue
			}
			visited = append(visited, key)
			if b, ok := s.bins[key]; ok {
				dst = append(dst, b...)
			}
		}
	}
	return dst, visited
}

func (s *SpatialIndex) queryWrappedInto(dst []int, visited []uint64, x, y, radius, lo, hi float64) ([]int, []uint64) {
	var ox, oy [3]float64
	nx := imageOffsets(&ox, x, radius, lo, hi)
	ny := imageOffsets(&oy, y, radius, lo, hi)

	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			dst, visited = s.queryInto(dst, visited, x+ox[i], y+oy[j], radius)
		}
	}
	return dst, visited
}

// imageOffsets fills out with the shifts of c whose query square reaches
// into the world, always starting with the unshifted square
func imageOffsets(out *[3]float64, c, radius, lo, hi float64) int {
	span := hi - lo
	n := 1
	out[0] = 0
	if c-radius < lo {
		out[n] = span
		n++
	}
	if c+radius >= hi {
		out[n] = -span
		n++
	}
	return n
}

// cell maps a coordinate to its cell index; floor keeps negatives correct
func (s *SpatialIndex) cell(v float64) int {
	return int(math.Floor(v / s.cellSize))
}

// cellKey packs the 32-bit cell coordinates into one word and scrambles it
// with xor-shift and multiply steps. Both steps are invertible, so distinct
// cells never share a bucket.
func cellKey(cx, cy int) uint64 {
	k := uint64(uint32(cx))<<32 | uint64(uint32(cy))
	k ^= k >> 31
	return k * hashMul
}

func seen(keys []uint64, key uint64) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
