package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootExample = `# open a window with the default 4 types and 200 particles each
%[1]s

# start from a preset with the kill boundary
%[1]s --preset Snakes --boundary kill

# run 600 steps without a window and expose metrics
%[1]s --headless --steps 600 --metrics-addr :9090
`

// RunFlags are the command line flags, bound before they become options
type RunFlags struct {
	ConfigFile  string
	Types       int
	PerType     int
	Preset      string
	Boundary    string
	Workers     int
	Threshold   int
	Seed        int64
	Width       int
	Height      int
	Headless    bool
	Steps       int
	MetricsAddr string
	MatrixFile  string
	Verbose     bool
}

// AddFlags registers every flag on fs
func (f *RunFlags) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigFile, "config", "", "YAML or JSON settings file applied before the other flags")
	fs.IntVar(&f.Types, "types", 0, "number of particle types (1-8)")
	fs.IntVar(&f.PerType, "per-type", 0, "particles generated per type")
	fs.StringVar(&f.Preset, "preset", "", "start from a named force matrix preset")
	fs.StringVar(&f.Boundary, "boundary", "", "world edge behavior: wrap, bounce or kill")
	fs.IntVar(&f.Workers, "workers", 0, "force phase goroutines, 0 for one per CPU")
	fs.IntVar(&f.Threshold, "threshold", 0, "particle count above which the force phase runs in parallel, 0 disables it")
	fs.Int64Var(&f.Seed, "seed", 0, "random seed, time based when unset")
	fs.IntVar(&f.Width, "width", 800, "window width in pixels")
	fs.IntVar(&f.Height, "height", 600, "window height in pixels")
	fs.BoolVar(&f.Headless, "headless", false, "step without opening a window")
	fs.IntVar(&f.Steps, "steps", 600, "steps to run in headless mode")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&f.MatrixFile, "matrix-file", "", "force matrix file for the save and load keys, loaded at startup when it exists")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "development logging at debug level")
}

// NewRootCommand builds the particle-life command
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:           "particle-life",
		Short:         "Interactive particle life simulation",
		Long:          "Simulates typed particles that attract and repel each other according to a force matrix.",
		Example:       fmt.Sprintf(rootExample, "particle-life"),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := flags.ToOptions(c.Flags(), out)
			if err != nil {
				return err
			}
			defer opts.Logger.Sync() //nolint:errcheck
			if err := opts.Validate(); err != nil {
				return err
			}
			return opts.Run(c.Context())
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	flags.AddFlags(cmd.Flags())
	return cmd
}

// main executes the command on the main goroutine, which Ebitengine locks to
// the OS main thread; the window loop must stay on it.
func main() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
