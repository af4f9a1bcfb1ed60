package zipf

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Histogram writes a text histogram of keys over bins equal-width bins,
// with bar lengths on a log scale.
func Histogram(w io.Writer, keys []int64, bins int, width int) error {
	if len(keys) == 0 || bins <= 0 {
		_, err := fmt.Fprintln(w, "(empty workload)")
		return err
	}
	lo, hi := keys[0], keys[0]
	for _, k := range keys {
		if k < lo {
			lo = k
		}
		if k > hi {
			hi = k
		}
	}
	span := float64(hi) - float64(lo)
	counts := make([]int, bins)
	for _, k := range keys {
		b := 0
		if span > 0 {
			b = int((float64(k) - float64(lo)) / span * float64(bins))
		}
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}
	maxLog := 0.0
	for _, c := range counts {
		if c > 0 {
			maxLog = math.Max(maxLog, math.Log10(float64(c))+1)
		}
	}
	for i, c := range counts {
		start := float64(lo) + span*float64(i)/float64(bins)
		bar := 0
		if c > 0 && maxLog > 0 {
			bar = int(math.Round((math.Log10(float64(c)) + 1) / maxLog * float64(width)))
		}
		if _, err := fmt.Fprintf(w, "%22.0f | %-*s %d\n", start, width, strings.Repeat("#", bar), c); err != nil {
			return err
		}
	}
	return nil
}
