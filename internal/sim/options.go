package sim

import (
	"time"

	"go.uber.org/zap"
)

// Option customizes an Engine at construction
type Option func(*Engine)

// WithLogger sets the structured logger; the default discards everything
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSeed makes particle placement, matrix randomization and the flow field
// reproducible
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithClock replaces time.Now for metrics, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithForceMatrix starts the engine from m instead of a random matrix.
// The matrix is resized to the configured type count.
func WithForceMatrix(m *ForceMatrix) Option {
	return func(e *Engine) {
		if m != nil {
			e.initial = m.Clone()
		}
	}
}
