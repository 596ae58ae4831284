package sim

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Perlin parameters for the flow field
const (
	flowAlpha   = 2.0
	flowBeta    = 2.0
	flowOctaves = 3
)

// Softening terms keep field forces finite at their centers
const (
	gravitySoftening = 0.1
	vortexSoftening  = 0.1
)

// fieldForce sums the enabled global field contributions at (x, y).
// They do not depend on neighbors, so they are evaluated once per particle.
func (e *Engine) fieldForce(x, y float64) (fx, fy float64) {
	c := &e.cfg

	if c.EnableGravity {
		dx, dy := c.GravityCenterX-x, c.GravityCenterY-y
		if d := math.Hypot(dx, dy); d > MinDistance {
			f := c.GravityStrength / (d*d + gravitySoftening)
			fx += dx / d * f
			fy += dy / d * f
		}
	}

	if c.EnableVortex {
		dx, dy := c.VortexCenterX-x, c.VortexCenterY-y
		if d := math.Hypot(dx, dy); d > MinDistance {
			f := c.VortexStrength / (d + vortexSoftening)
			fx += -dy / d * f
			fy += dx / d * f
		}
	}

	if c.EnableFlowField {
		// Noise2D is roughly in [-1, 1]; map it to an angle
		angle := (e.noise.Noise2D(x*c.FlowScale, y*c.FlowScale) + 1) * math.Pi
		fx += math.Cos(angle) * c.FlowStrength
		fy += math.Sin(angle) * c.FlowStrength
	}
	return fx, fy
}

func newNoise(seed int64) *perlin.Perlin {
	return perlin.NewPerlin(flowAlpha, flowBeta, flowOctaves, seed)
}
