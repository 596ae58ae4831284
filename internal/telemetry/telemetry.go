// Package telemetry exports engine performance metrics to Prometheus.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/olivierh59500/particle-life-go/internal/sim"
)

const namespace = "particle_life"

// Collector holds the latest metrics snapshot published by the step loop.
// The engine is not safe for concurrent use, so scrapes never touch it.
type Collector struct {
	mu   sync.Mutex
	last sim.PerformanceMetrics

	particles  *prometheus.Desc
	updateTime *prometheus.Desc
	fps        *prometheus.Desc
	forces     *prometheus.Desc
	queries    *prometheus.Desc
	workers    *prometheus.Desc
	removed    *prometheus.Desc
	steps      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reporting zeros until the first Observe
func NewCollector() *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		particles:  desc("particles", "Live particles after the last step."),
		updateTime: desc("update_seconds", "Wall-clock time of the last step."),
		fps:        desc("average_fps", "Rolling average of steps per second."),
		forces:     desc("force_evaluations", "Pair forces applied in the last step."),
		queries:    desc("spatial_queries", "Neighbor queries issued in the last step."),
		workers:    desc("workers", "Goroutines used by the last force phase."),
		removed:    desc("removed_particles", "Particles removed by the kill boundary in the last step."),
		steps:      desc("steps_total", "Simulation steps taken."),
	}
}

// Observe publishes a new snapshot
func (c *Collector) Observe(m sim.PerformanceMetrics) {
	c.mu.Lock()
	c.last = m
	c.mu.Unlock()
}

// Describe sends the fixed set of metric descriptors
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.particles
	ch <- c.updateTime
	ch <- c.fps
	ch <- c.forces
	ch <- c.queries
	ch <- c.workers
	ch <- c.removed
	ch <- c.steps
}

// Collect reports the latest snapshot as gauges plus the step counter
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	m := c.last
	c.mu.Unlock()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(c.particles, float64(m.Particles))
	gauge(c.updateTime, m.UpdateTime.Seconds())
	gauge(c.fps, m.AverageFPS)
	gauge(c.forces, float64(m.ForceEvaluations))
	gauge(c.queries, float64(m.SpatialQueries))
	gauge(c.workers, float64(m.Workers))
	gauge(c.removed, float64(m.Removed))
	ch <- prometheus.MustNewConstMetric(c.steps, prometheus.CounterValue, float64(m.Steps))
}

// Handler serves /metrics for the given gatherer
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown metrics server")
	}
	return nil
}
