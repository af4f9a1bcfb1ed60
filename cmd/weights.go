package cmd

import (
	"io"
	"log"

	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/weights"
	"github.com/learnedindex/skewtools/workload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type weightsConfig struct {
	Dataset   string
	Dtype     string
	Workloads []string
	Output    string
}

func NewWeightsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &weightsConfig{}
	com := &cobra.Command{
		Use:   "weights",
		Short: "Compute per-key access weights from workloads.",
		Long: `Computes one weight per dataset key from a workload: the number of
times the key is queried plus one, divided by the largest such value.
Every weight lies in (0, 1] and the most queried key has weight 1.

The weights for workload W are written to <output>/<basename(W)> as
little-endian float64, the path the weighted models expect.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			np := newNotepad(cmd, stderr)
			return conf.run(np.INFO, np.DEBUG)
		},
	}
	flags := com.Flags()
	flags.StringVarP(&conf.Dataset, "dataset", "d", "", "Dataset file of sorted keys.")
	flags.StringVarP(&conf.Dtype, "dtype", "t", "uint64", "Key width of the dataset: uint64 or uint32.")
	flags.StringSliceVarP(&conf.Workloads, "workload", "w", nil, "Workload file; repeat for several.")
	flags.StringVarP(&conf.Output, "output", "o", "weights", "Directory to write weight files to.")
	return com
}

func (conf *weightsConfig) run(logger, debug *log.Logger) error {
	if conf.Dataset == "" {
		return errors.Wrap(skewtools.ErrInvalidParameter, "a dataset is required")
	}
	if len(conf.Workloads) == 0 {
		return errors.Wrap(skewtools.ErrInvalidParameter, "at least one workload is required")
	}
	dtype, err := dataset.ParseDtype(conf.Dtype)
	if err != nil {
		return err
	}
	keys, err := dataset.Read(appFs, conf.Dataset, dataset.Options{Dtype: dtype, Logger: debug})
	if err != nil {
		return err
	}
	for _, path := range conf.Workloads {
		wl, err := workload.ReadBinary(appFs, path)
		if err != nil {
			return err
		}
		w, err := weights.Compute(keys, wl)
		if err != nil {
			return errors.Wrapf(err, "weights for %s", path)
		}
		if err := weights.Check(w, len(keys)); err != nil {
			return errors.Wrapf(err, "weights for %s", path)
		}
		out := workload.WeightPath(conf.Output, path)
		if err := workload.WriteWeights(appFs, out, w); err != nil {
			return err
		}
		logger.Printf("wrote %d weights for %s to %s", len(w), path, out)
	}
	return nil
}

func init() {
	subcommandFns["weights"] = NewWeightsCommand
}
