package cmd

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/freq"
	"github.com/learnedindex/skewtools/workload"
	"github.com/learnedindex/skewtools/zipf"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type generateConfig struct {
	Dataset     string
	Dtype       string
	Size        int
	Output      string
	Alphas      []float64
	Seed        int64
	Method      string
	TieBreak    string
	CheckSorted bool
	Concurrency int
	Visualize   bool
}

func NewGenerateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &generateConfig{}
	com := &cobra.Command{
		Use:   "generate",
		Short: "Generate Zipf-skewed lookup workloads over a dataset.",
		Long: `Generates lookup workloads whose key popularity follows a Zipf
distribution.

Keys of the dataset are ranked by how often they occur (ties broken by
--tie-break), and each query draws a rank with probability proportional
to 1/rank^alpha. One workload is written per alpha, named
<dataset>_workload<size/1000>k_alpha<alpha> under the output directory.
Alpha must be greater than 1; larger alpha means heavier skew.

With the same dataset, size, alpha, method and seed the output is
byte-identical. Without --seed a seed is taken from the clock and
logged.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			np := newNotepad(cmd, stderr)
			return conf.run(np.INFO, np.DEBUG, stdout)
		},
	}
	flags := com.Flags()
	flags.StringVarP(&conf.Dataset, "dataset", "d", "", "Dataset file of sorted keys.")
	flags.StringVarP(&conf.Dtype, "dtype", "t", "uint64", "Key width of the dataset: uint64 or uint32.")
	flags.IntVarP(&conf.Size, "size", "s", 2000000, "Number of queries per workload.")
	flags.StringVarP(&conf.Output, "output", "o", "workloads", "Directory to write workloads to.")
	flags.Float64SliceVarP(&conf.Alphas, "alpha", "a", []float64{1.3}, "Zipf exponent; repeat or comma separate for several workloads.")
	flags.Int64Var(&conf.Seed, "seed", 0, "Seed for sampling. 0 picks one from the clock.")
	flags.StringVar(&conf.Method, "method", "cdf", "Sampling method: cdf or rejection.")
	flags.StringVar(&conf.TieBreak, "tie-break", "ascending", "Order of equally frequent keys: ascending, descending or first-seen.")
	flags.BoolVar(&conf.CheckSorted, "check-sorted", false, "Fail if the dataset is not sorted ascending.")
	flags.IntVar(&conf.Concurrency, "concurrency", 1, "Number of workloads generated at once.")
	flags.BoolVarP(&conf.Visualize, "visualize", "v", false, "Print a histogram of each workload.")
	return com
}

func (conf *generateConfig) run(logger, debug *log.Logger, stdout io.Writer) error {
	if conf.Dataset == "" {
		return errors.Wrap(skewtools.ErrInvalidParameter, "a dataset is required")
	}
	alphas := uniqueAlphas(conf.Alphas)
	if len(alphas) == 0 {
		return errors.Wrap(skewtools.ErrInvalidParameter, "at least one alpha is required")
	}
	for _, alpha := range alphas {
		if err := zipf.ValidateAlpha(alpha); err != nil {
			return err
		}
	}
	if conf.Concurrency < 1 {
		return errors.Wrapf(skewtools.ErrInvalidParameter, "concurrency must be at least 1, got %d", conf.Concurrency)
	}
	dtype, err := dataset.ParseDtype(conf.Dtype)
	if err != nil {
		return err
	}
	method, err := zipf.ParseMethod(conf.Method)
	if err != nil {
		return err
	}
	tieBreak, err := freq.ParseTieBreak(conf.TieBreak)
	if err != nil {
		return err
	}
	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Printf("using seed %d", seed)
	}

	keys, err := dataset.Read(appFs, conf.Dataset, dataset.Options{Dtype: dtype, CheckSorted: conf.CheckSorted, Logger: debug})
	if err != nil {
		return err
	}
	ranked := freq.Count(keys).Rank(tieBreak)
	logger.Printf("%s: %s keys, %s distinct", conf.Dataset, humanize.Comma(int64(len(keys))), humanize.Comma(int64(len(ranked))))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(conf.Concurrency)
	for _, alpha := range alphas {
		alpha := alpha
		g.Go(func() error {
			sampler, err := zipf.NewSampler(zipf.Config{Alpha: alpha, Size: conf.Size, Seed: seed, Method: method, Logger: debug})
			if err != nil {
				return err
			}
			start := time.Now()
			wl, err := sampler.Sample(ranked)
			if err != nil {
				return errors.Wrapf(err, "alpha %v", alpha)
			}
			path := filepath.Join(conf.Output, workload.Name(conf.Dataset, conf.Size, alpha))
			if err := workload.WriteBinary(appFs, path, wl); err != nil {
				return err
			}
			logger.Printf("wrote %s: %s queries, fingerprint %016x, %v", path, humanize.Comma(int64(len(wl))), workload.Fingerprint(wl), time.Since(start))
			if !conf.Visualize {
				return nil
			}
			buf := &bytes.Buffer{}
			fmt.Fprintf(buf, "%s\n", path)
			if err := zipf.Histogram(buf, wl, 50, 60); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			_, err = stdout.Write(buf.Bytes())
			return err
		})
	}
	return g.Wait()
}

// uniqueAlphas drops repeated alphas, keeping the first occurrence. Equal
// alphas name the same output file.
func uniqueAlphas(alphas []float64) []float64 {
	var out []float64
	seen := make(map[float64]bool, len(alphas))
	for _, a := range alphas {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func init() {
	subcommandFns["generate"] = NewGenerateCommand
}
