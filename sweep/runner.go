package sweep

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Result markers written in place of metrics when KeepGoing is set.
const (
	MarkerFailed  = "FAILED"
	MarkerTimeout = "TIMEOUT"
)

// Runner executes the runs of a grid one at a time.
type Runner struct {
	Fs     afero.Fs
	Engine Engine
	// KeepGoing records a marker row for a failed run and moves on.
	// Otherwise the first failure stops the sweep and no row is written
	// for it.
	KeepGoing bool
	Logger    *log.Logger
}

// Run executes every run in order, appending one row per completed run to
// the table at results. Rows appended before a failure or cancellation stay
// in the table.
func (r *Runner) Run(ctx context.Context, runs []Run, results string) (sum *Summary, err error) {
	if results == "" {
		return nil, errors.Wrap(skewtools.ErrInvalidParameter, "no results table given")
	}
	table, err := OpenResults(r.Fs, results)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := table.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sum = newSummary(uuid.New().String(), len(runs))
	r.logf("sweep %s: %d runs, results in %s", sum.RunID, len(runs), results)
	for i, run := range runs {
		if err := ctx.Err(); err != nil {
			return sum, errors.Wrapf(err, "sweep stopped after %d of %d runs", i, len(runs))
		}
		r.logf("[%d/%d] %s partitions=%d table=%s workload=%s", i+1, len(runs), run.Model, run.Partitions, run.TableSizeField(), run.Workload)
		m, err := r.invoke(ctx, run)
		if err != nil {
			if ctx.Err() != nil {
				return sum, errors.Wrapf(err, "sweep interrupted at run %d of %d", i+1, len(runs))
			}
			if !r.KeepGoing {
				return sum, errors.Wrapf(err, "run %d of %d (%s)", i+1, len(runs), run.Model)
			}
			marker := MarkerFailed
			if errors.Is(err, skewtools.ErrTimeout) {
				marker = MarkerTimeout
				sum.TimedOut++
			} else {
				sum.Failed++
			}
			r.logf("run %d failed, recording %s: %v", i+1, marker, err)
			if err := table.Append(MarkerRow(run, marker)); err != nil {
				return sum, err
			}
			continue
		}
		if err := table.Append(RowFor(run, m)); err != nil {
			return sum, err
		}
		sum.add(run, m)
	}
	r.logSummary(sum)
	return sum, nil
}

func (r *Runner) invoke(ctx context.Context, run Run) (Metrics, error) {
	if run.WeightPath != "" {
		fi, err := r.Fs.Stat(run.WeightPath)
		if err != nil {
			return Metrics{}, errors.Wrapf(skewtools.ErrIO, "weight file for %s: %v", run.Workload, err)
		}
		// one float64 per record
		if fi.Size() != run.Records*8 {
			return Metrics{}, errors.Wrapf(skewtools.ErrShapeMismatch, "weight file %s holds %d bytes, expected %d for %d records",
				run.WeightPath, fi.Size(), run.Records*8, run.Records)
		}
	}
	return r.Engine.Run(ctx, run.Invocation())
}

func (r *Runner) logSummary(sum *Summary) {
	if r.Logger == nil {
		return
	}
	r.Logger.Printf("sweep %s: %d of %d done, %d failed, %d timed out", sum.RunID, sum.Done, sum.Planned, sum.Failed, sum.TimedOut)
	names := make([]string, 0, len(sum.Models))
	for name := range sum.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ms := sum.Models[name]
		r.Logger.Printf("  %s: %d runs, build mean %.4g, query mean %.4g (stddev %.4g, min %.4g, max %.4g)",
			name, ms.Runs, ms.BuildTime.Mean, ms.QueryTime.Mean, ms.QueryTime.Stddev(), ms.QueryTime.Min, ms.QueryTime.Max)
	}
}

func (r *Runner) logf(format string, v ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
	}
}
