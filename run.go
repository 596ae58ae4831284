package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olivierh59500/particle-life-go/internal/game"
	"github.com/olivierh59500/particle-life-go/internal/settings"
	"github.com/olivierh59500/particle-life-go/internal/sim"
	"github.com/olivierh59500/particle-life-go/internal/telemetry"
)

// headlessLogEvery is how often headless runs log progress at debug level
const headlessLogEvery = 100

// RunOptions is everything Run needs, resolved from flags and files
type RunOptions struct {
	Config      sim.Config
	Preset      string
	Seed        int64
	SeedSet     bool
	Matrix      *sim.ForceMatrix
	MatrixFile  string
	Width       int
	Height      int
	Headless    bool
	Steps       int
	MetricsAddr string

	Logger *zap.Logger
	Out    io.Writer

	runGame func(ebiten.Game) error // ebiten.RunGame unless replaced in tests
}

// ToOptions layers the config file and then explicitly set flags over the defaults
func (f *RunFlags) ToOptions(fs *pflag.FlagSet, out io.Writer) (*RunOptions, error) {
	log, err := newLogger(f.Verbose)
	if err != nil {
		return nil, err
	}
	o := &RunOptions{
		Config:      sim.DefaultConfig(),
		Preset:      f.Preset,
		Seed:        f.Seed,
		SeedSet:     fs.Changed("seed"),
		MatrixFile:  f.MatrixFile,
		Width:       f.Width,
		Height:      f.Height,
		Headless:    f.Headless,
		Steps:       f.Steps,
		MetricsAddr: f.MetricsAddr,
		Logger:      log,
		Out:         out,
	}

	if f.ConfigFile != "" {
		if o.Config, err = settings.LoadConfig(f.ConfigFile, o.Config); err != nil {
			return nil, err
		}
		log.Debug("loaded settings", zap.String("file", f.ConfigFile))
	}
	if fs.Changed("types") {
		o.Config.NumTypes = f.Types
	}
	if fs.Changed("per-type") {
		o.Config.ParticlesPerType = f.PerType
	}
	if fs.Changed("boundary") {
		if o.Config.BoundaryMode, err = sim.ParseBoundaryMode(f.Boundary); err != nil {
			return nil, err
		}
	}
	if fs.Changed("workers") {
		o.Config.Workers = f.Workers
	}
	if fs.Changed("threshold") {
		o.Config.ParallelThreshold = f.Threshold
	}
	o.Config = o.Config.Clamped()

	if o.MatrixFile == "" {
		o.MatrixFile = settings.DefaultMatrixFile
	} else if _, statErr := os.Stat(o.MatrixFile); statErr == nil {
		if o.Matrix, err = settings.LoadMatrix(o.MatrixFile); err != nil {
			return nil, err
		}
		o.Config.NumTypes = o.Matrix.Size()
	}
	return o, nil
}

// Validate rejects option combinations Run cannot honor
func (o *RunOptions) Validate() error {
	if o.Preset != "" {
		if _, err := sim.LookupPreset(o.Preset); err != nil {
			return errors.Wrapf(err, "available presets are %v", sim.PresetNames())
		}
	}
	if o.Headless && o.Steps < 0 {
		return errors.Errorf("--steps must not be negative, got %d", o.Steps)
	}
	if !o.Headless && (o.Width <= 0 || o.Height <= 0) {
		return errors.Errorf("window size must be positive, got %dx%d", o.Width, o.Height)
	}
	return nil
}

// Run builds the engine and drives it until the window closes, the headless
// step budget is spent or ctx is cancelled. The window loop runs on the
// calling goroutine, which must be the main one; only the metrics server runs
// in the background.
func (o *RunOptions) Run(ctx context.Context) error {
	engine, err := o.newEngine()
	if err != nil {
		return err
	}
	collector := telemetry.NewCollector()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if o.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		g.Go(func() error {
			return telemetry.Serve(gctx, o.MetricsAddr, reg, o.Logger)
		})
	}

	if o.Headless {
		err = o.runHeadless(gctx, engine, collector)
	} else {
		err = o.runWindow(gctx, engine, collector)
	}
	cancel()
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}
	return err
}

func (o *RunOptions) newEngine() (*sim.Engine, error) {
	opts := []sim.Option{sim.WithLogger(o.Logger.Named("sim"))}
	if o.SeedSet {
		opts = append(opts, sim.WithSeed(o.Seed))
	}
	if o.Matrix != nil {
		opts = append(opts, sim.WithForceMatrix(o.Matrix))
	}
	engine := sim.New(o.Config, opts...)
	if o.Preset != "" {
		if err := engine.LoadPreset(o.Preset); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func (o *RunOptions) runHeadless(ctx context.Context, engine *sim.Engine, collector *telemetry.Collector) error {
	for i := 1; i <= o.Steps; i++ {
		select {
		case <-ctx.Done():
			o.Logger.Info("headless run interrupted", zap.Int("step", i))
			return nil
		default:
		}

		engine.Step(sim.ReferenceStep)
		m := engine.Metrics()
		collector.Observe(m)
		if i%headlessLogEvery == 0 {
			o.Logger.Debug("progress",
				zap.Int("step", i),
				zap.Int("particles", m.Particles),
				zap.Duration("update", m.UpdateTime),
			)
		}
	}

	m := engine.Metrics()
	o.Logger.Info("headless run finished",
		zap.Uint64("steps", m.Steps),
		zap.Int("particles", m.Particles),
		zap.Float64("averageFPS", m.AverageFPS),
	)
	fmt.Fprintf(o.Out, "steps %d  particles %d  last step %s  avg %.1f steps/s\n",
		m.Steps, m.Particles, m.UpdateTime, m.AverageFPS)
	return nil
}

func (o *RunOptions) runWindow(ctx context.Context, engine *sim.Engine, collector *telemetry.Collector) error {
	ebiten.SetWindowSize(o.Width, o.Height)
	ebiten.SetWindowTitle("Particle Life Simulation")
	ebiten.SetTPS(60) // Target 60 ticks per second

	g := game.New(engine, game.Options{
		Width:      o.Width,
		Height:     o.Height,
		MatrixFile: o.MatrixFile,
		Preset:     o.Preset,
		Collector:  collector,
		Logger:     o.Logger.Named("game"),
		Done:       ctx.Done(),
	})
	run := o.runGame
	if run == nil {
		run = ebiten.RunGame
	}
	// RunGame must be called on the main thread
	return errors.Wrap(run(g), "run game")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	return log, errors.Wrap(err, "build logger")
}
