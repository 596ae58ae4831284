package sim

import "time"

// FPSHistory is the number of frame samples in the rolling FPS average
const FPSHistory = 60

// PerformanceMetrics describes the most recent step
type PerformanceMetrics struct {
	UpdateTime       time.Duration // wall-clock time spent inside Step
	ForceEvaluations int           // pairs that contributed a force
	SpatialQueries   int           // neighbor queries against the index
	Particles        int           // population after the step
	Workers          int           // goroutines used by the force phase
	Removed          int           // particles removed by the kill boundary
	AverageFPS       float64       // mean rate between running steps over the history
	Steps            uint64        // running steps since construction
}

func (m *PerformanceMetrics) reset() {
	m.ForceEvaluations = 0
	m.SpatialQueries = 0
	m.Removed = 0
}

// fpsTracker keeps a fixed ring of instantaneous frame rates
type fpsTracker struct {
	samples [FPSHistory]float64
	next    int
	filled  int
	sum     float64
	last    time.Time
}

// observe records the interval since the previous call and returns the
// current average; the first call only primes the tracker
func (f *fpsTracker) observe(now time.Time) float64 {
	prev := f.last
	f.last = now
	if prev.IsZero() {
		return f.average()
	}
	elapsed := now.Sub(prev)
	if elapsed <= 0 {
		return f.average()
	}

	fps := float64(time.Second) / float64(elapsed)
	if f.filled == FPSHistory {
		f.sum -= f.samples[f.next]
	} else {
		f.filled++
	}
	f.samples[f.next] = fps
	f.sum += fps
	f.next = (f.next + 1) % FPSHistory
	return f.average()
}

func (f *fpsTracker) average() float64 {
	if f.filled == 0 {
		return 0
	}
	return f.sum / float64(f.filled)
}
