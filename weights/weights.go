// Package weights turns a reference workload into per-key sampling weights
// aligned with a dataset.
package weights

import (
	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/freq"
	"github.com/pkg/errors"
)

// Compute returns one weight per dataset key, in dataset order. A key's
// weight is its number of occurrences in workload plus one, divided by
// the largest such value, so every weight lies in (0, 1] and the largest
// is exactly 1. Duplicate dataset keys get identical weights.
//
// Workload keys are matched against dataset keys by bit pattern, since
// workloads store keys as int64.
func Compute(keys []uint64, workload []int64) ([]float64, error) {
	if len(workload) == 0 {
		return nil, errors.Wrap(skewtools.ErrEmptyWorkload, "no queries to count")
	}
	if len(keys) == 0 {
		return nil, errors.Wrap(skewtools.ErrEmptyDataset, "no keys to weight")
	}
	queried := make([]uint64, len(workload))
	for i, k := range workload {
		queried[i] = uint64(k)
	}
	counts := freq.Count(queried).Counts

	out := make([]float64, len(keys))
	max := 0.0
	for i, k := range keys {
		w := float64(counts[k] + 1)
		out[i] = w
		if w > max {
			max = w
		}
	}
	for i := range out {
		out[i] /= max
	}
	return out, nil
}

// Check reports whether weights is a valid weight vector for a dataset of
// n keys.
func Check(weights []float64, n int) error {
	if len(weights) != n {
		return errors.Wrapf(skewtools.ErrShapeMismatch, "have %d weights for %d keys", len(weights), n)
	}
	seenMax := false
	for i, w := range weights {
		if !(w > 0 && w <= 1) {
			return errors.Wrapf(skewtools.ErrFormat, "weight %d is %v, outside (0, 1]", i, w)
		}
		if w == 1 {
			seenMax = true
		}
	}
	if n > 0 && !seenMax {
		return errors.Wrap(skewtools.ErrFormat, "no weight equals 1")
	}
	return nil
}
