package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/sweep"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type sweepConfig struct {
	Grid      string
	Results   string
	EngineDir string
	Timeout   time.Duration
	KeepGoing bool
	List      bool
}

func NewSweepCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &sweepConfig{}
	com := &cobra.Command{
		Use:   "sweep",
		Short: "Run the benchmark engine over a parameter grid.",
		Long: `Runs the learned-index benchmark engine once for every combination
in a grid file (.toml, .yaml or .yml) and appends one row per run to
the results table.

Runs go in dataset, workload, partition count, model, table size
order, one at a time. Rows are synced as they are written, so an
interrupted sweep keeps everything it finished. Without --keep-going
the first failed run stops the sweep; with it, the run is recorded
with FAILED or TIMEOUT in place of its metrics.

Example grid:

    version = "1.0"
    results = "results/results.csv"
    timeout = "30m"

    [[datasets]]
    path = "data/books_200M_uint32"
    workloads = ["workloads/books_200M_uint32_workload2000k_alpha1.3"]

    [[models]]
    name = "look_up_table_linear_model"
    partitions = [1000, 10000]
    table-sizes = [100, 1000]
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			np := newNotepad(cmd, stderr)
			g, err := sweep.ReadGrid(appFs, conf.Grid)
			if err != nil {
				return err
			}
			if conf.Results != "" {
				g.Results = conf.Results
			}
			if conf.EngineDir != "" {
				g.EngineDir = conf.EngineDir
			}
			if cmd.Flags().Changed("timeout") || conf.Timeout != 0 {
				g.Timeout.Duration = conf.Timeout
			}
			dtype, err := dataset.ParseDtype(g.Dtype)
			if err != nil {
				return err
			}
			sizes, err := sweep.NewSizer(appFs, dtype)
			if err != nil {
				return err
			}
			runs, err := g.Expand(sizes)
			if err != nil {
				return err
			}
			if conf.List {
				for _, run := range runs {
					inv := run.Invocation()
					fmt.Fprintf(stdout, "%s %s\n", filepath.Join(g.EngineDir, inv.Binary), strings.Join(inv.Args, " "))
				}
				return nil
			}
			if g.Results == "" {
				return errors.Wrap(skewtools.ErrInvalidParameter, "no results table: set results in the grid or pass --results")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			runner := &sweep.Runner{
				Fs: appFs,
				Engine: &sweep.ExecEngine{
					Dir:     g.EngineDir,
					Timeout: g.Timeout.Duration,
					Stderr:  stderr,
					Logger:  np.DEBUG,
				},
				KeepGoing: conf.KeepGoing,
				Logger:    np.INFO,
			}
			_, err = runner.Run(ctx, runs, g.Results)
			return err
		},
	}
	flags := com.Flags()
	flags.StringVarP(&conf.Grid, "grid", "g", "grid.toml", "Grid file describing the sweep.")
	flags.StringVarP(&conf.Results, "results", "r", "", "Results table; overrides the grid.")
	flags.StringVar(&conf.EngineDir, "engine-dir", "", "Directory of engine binaries; overrides the grid.")
	flags.DurationVar(&conf.Timeout, "timeout", 0, "Per-run time limit; overrides the grid. 0 keeps the grid's.")
	flags.BoolVar(&conf.KeepGoing, "keep-going", false, "Record failed runs and continue instead of stopping.")
	flags.BoolVar(&conf.List, "list", false, "Print the engine command lines and exit.")
	return com
}

func init() {
	subcommandFns["sweep"] = NewSweepCommand
}
