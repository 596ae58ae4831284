package sim

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// World bounds shared by every boundary mode
const (
	WorldMin  = -1.0
	WorldMax  = 1.0
	WorldSpan = WorldMax - WorldMin
)

// Limits enforced when a Config is applied
const (
	MinTypes            = 1
	MaxTypes            = 8
	MaxParticlesPerType = 10000
	MinInteraction      = 0.01
	MaxSpawnCount       = 50
	MaxTimeScale        = 10.0
)

// Defaults, in world units per second where a rate is involved
const (
	DefaultNumTypes          = 4
	DefaultParticlesPerType  = 200
	DefaultInteractionRadius = 0.25
	DefaultForceFactor       = 18.0
	DefaultFriction          = 0.98
	DefaultMaxSpeed          = 0.6
	DefaultMouseRadius       = 0.25
	DefaultMouseForce        = 6.0
	DefaultSpawnRadius       = 0.1
	DefaultSpawnCount        = 5
	DefaultParallelThreshold = 2000
	DefaultEvolutionInterval = 1000
	DefaultEvolutionSigma    = 0.1
	DefaultFlowScale         = 2.0
)

// BoundaryMode decides what happens to particles reaching the world edge
type BoundaryMode int

const (
	BoundaryBounce BoundaryMode = iota
	BoundaryWrap
	BoundaryKill
)

var boundaryNames = [...]string{"bounce", "wrap", "kill"}

func (b BoundaryMode) String() string {
	if b < 0 || int(b) >= len(boundaryNames) {
		return "unknown"
	}
	return boundaryNames[b]
}

// ErrUnknownBoundary is returned by ParseBoundaryMode
var ErrUnknownBoundary = errors.New("unknown boundary mode")

// ParseBoundaryMode maps a name such as "wrap" to its mode
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	for i, name := range boundaryNames {
		if strings.EqualFold(s, name) {
			return BoundaryMode(i), nil
		}
	}
	return BoundaryWrap, errors.Wrapf(ErrUnknownBoundary, "%q", s)
}

// MarshalText encodes the mode by name
func (b BoundaryMode) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a mode name
func (b *BoundaryMode) UnmarshalText(text []byte) error {
	mode, err := ParseBoundaryMode(string(text))
	if err != nil {
		return err
	}
	*b = mode
	return nil
}

// MouseMode selects what the primary mouse button does
type MouseMode int

const (
	MouseSpawn MouseMode = iota
	MouseInteract
)

// Config holds every tunable simulation parameter
type Config struct {
	// Structure
	NumTypes         int `json:"numTypes"`
	ParticlesPerType int `json:"particlesPerType"`

	// Physics
	InteractionRadius float64         `json:"interactionRadius"`
	ForceFactor       float64         `json:"forceFactor"`
	Friction          float64         `json:"friction"`
	MaxSpeed          float64         `json:"maxSpeed"`
	UseSpatialHash    bool            `json:"useSpatialHash"`
	BoundaryMode      BoundaryMode    `json:"boundaryMode"`
	Repulsion         RepulsionPolicy `json:"repulsion"`

	// Global fields. Centers stay flat: YAML 1.1 reads a bare "y" key as a boolean.
	EnableGravity   bool    `json:"enableGravity"`
	GravityStrength float64 `json:"gravityStrength"`
	GravityCenterX  float64 `json:"gravityCenterX"`
	GravityCenterY  float64 `json:"gravityCenterY"`
	EnableVortex    bool    `json:"enableVortex"`
	VortexStrength  float64 `json:"vortexStrength"`
	VortexCenterX   float64 `json:"vortexCenterX"`
	VortexCenterY   float64 `json:"vortexCenterY"`
	EnableFlowField bool    `json:"enableFlowField"`
	FlowStrength    float64 `json:"flowStrength"`
	FlowScale       float64 `json:"flowScale"`

	// Mouse
	MouseX       float64   `json:"-"`
	MouseY       float64   `json:"-"`
	MousePressed bool      `json:"-"`
	MouseRadius  float64   `json:"mouseRadius"`
	MouseForce   float64   `json:"mouseForce"`
	MouseMode    MouseMode `json:"mouseMode"`

	// Spawning
	EnableParticleSpawning bool    `json:"enableParticleSpawning"`
	SpawnParticleType      int     `json:"spawnParticleType"`
	SpawnRadius            float64 `json:"spawnRadius"`
	SpawnCount             int     `json:"spawnCount"`

	// Run state
	Paused    bool    `json:"paused"`
	TimeScale float64 `json:"timeScale"`

	// Threading; Workers 0 means one per CPU, ParallelThreshold 0 disables fan-out
	Workers           int `json:"workers"`
	ParallelThreshold int `json:"parallelThreshold"`

	// Evolution slowly mutates the force matrix
	EvolutionMode     bool    `json:"evolutionMode"`
	EvolutionInterval int     `json:"evolutionInterval"`
	EvolutionSigma    float64 `json:"evolutionSigma"`
}

// DefaultConfig returns the configuration a new engine starts with
func DefaultConfig() Config {
	return Config{
		NumTypes:               DefaultNumTypes,
		ParticlesPerType:       DefaultParticlesPerType,
		InteractionRadius:      DefaultInteractionRadius,
		ForceFactor:            DefaultForceFactor,
		Friction:               DefaultFriction,
		MaxSpeed:               DefaultMaxSpeed,
		UseSpatialHash:         true,
		BoundaryMode:           BoundaryWrap,
		Repulsion:              RepulsionUnconditional,
		GravityStrength:        0.5,
		VortexStrength:         0.5,
		FlowStrength:           0.5,
		FlowScale:              DefaultFlowScale,
		MouseX:                 -10,
		MouseY:                 -10,
		MouseRadius:            DefaultMouseRadius,
		MouseForce:             DefaultMouseForce,
		MouseMode:              MouseInteract,
		EnableParticleSpawning: true,
		SpawnRadius:            DefaultSpawnRadius,
		SpawnCount:             DefaultSpawnCount,
		TimeScale:              1,
		ParallelThreshold:      DefaultParallelThreshold,
		EvolutionInterval:      DefaultEvolutionInterval,
		EvolutionSigma:         DefaultEvolutionSigma,
	}
}

// Clamped returns a copy with every field forced into its valid range.
// The step loop relies on this never producing a zero divisor or bad index.
func (c Config) Clamped() Config {
	c.NumTypes = clampInt(c.NumTypes, MinTypes, MaxTypes)
	c.ParticlesPerType = clampInt(c.ParticlesPerType, 1, MaxParticlesPerType)

	c.InteractionRadius = clampFinite(c.InteractionRadius, MinInteraction, 1, DefaultInteractionRadius)
	c.ForceFactor = clampFinite(c.ForceFactor, 0, math.MaxFloat64, DefaultForceFactor)
	c.Friction = clampFinite(c.Friction, 0, 1, DefaultFriction)
	c.MaxSpeed = clampFinite(c.MaxSpeed, 0, math.MaxFloat64, DefaultMaxSpeed)
	if c.BoundaryMode < BoundaryBounce || c.BoundaryMode > BoundaryKill {
		c.BoundaryMode = BoundaryWrap
	}
	if c.Repulsion != RepulsionScaled {
		c.Repulsion = RepulsionUnconditional
	}

	c.GravityStrength = finiteOr(c.GravityStrength, 0)
	c.GravityCenterX = finiteOr(c.GravityCenterX, 0)
	c.GravityCenterY = finiteOr(c.GravityCenterY, 0)
	c.VortexStrength = finiteOr(c.VortexStrength, 0)
	c.VortexCenterX = finiteOr(c.VortexCenterX, 0)
	c.VortexCenterY = finiteOr(c.VortexCenterY, 0)
	c.FlowStrength = finiteOr(c.FlowStrength, 0)
	c.FlowScale = clampFinite(c.FlowScale, 0, math.MaxFloat64, DefaultFlowScale)

	c.MouseRadius = clampFinite(c.MouseRadius, MinInteraction, WorldSpan, DefaultMouseRadius)
	c.MouseForce = finiteOr(c.MouseForce, DefaultMouseForce)
	if c.MouseMode != MouseSpawn {
		c.MouseMode = MouseInteract
	}

	c.SpawnParticleType = clampInt(c.SpawnParticleType, 0, c.NumTypes-1)
	c.SpawnRadius = clampFinite(c.SpawnRadius, 0, WorldSpan, DefaultSpawnRadius)
	c.SpawnCount = clampInt(c.SpawnCount, 1, MaxSpawnCount)

	c.TimeScale = clampFinite(c.TimeScale, 0, MaxTimeScale, 1)
	c.Workers = max(c.Workers, 0)
	c.ParallelThreshold = max(c.ParallelThreshold, 0)

	c.EvolutionInterval = max(c.EvolutionInterval, 1)
	c.EvolutionSigma = clampFinite(c.EvolutionSigma, 0, 1, DefaultEvolutionSigma)
	return c
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFinite(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return clamp(v, lo, hi)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
