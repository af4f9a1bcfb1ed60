// Package zipf draws query workloads whose key popularity follows a Zipf
// law over a frequency-ranked key sequence: the key at rank r (1-based) is
// drawn with probability proportional to r ** -alpha.
package zipf

import (
	"log"
	"math"
	"sort"
	"strings"

	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/seq"
	"github.com/pkg/errors"
)

// Method selects how ranks are drawn.
type Method int

const (
	// MethodCDF materializes the probability vector and inverts its
	// cumulative sum by binary search. Exact; needs one float64 per key.
	MethodCDF Method = iota
	// MethodRejection uses rejection-inversion and never builds the
	// vector. Same distribution, constant memory.
	MethodRejection
)

func (m Method) String() string {
	if m == MethodRejection {
		return "rejection"
	}
	return "cdf"
}

// ParseMethod maps a method name to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "cdf":
		return MethodCDF, nil
	case "rejection":
		return MethodRejection, nil
	}
	return MethodCDF, errors.Wrapf(skewtools.ErrInvalidParameter, "unknown sampling method '%s' (must be cdf or rejection)", s)
}

// ValidateAlpha rejects exponents that are not strictly greater than 1.
func ValidateAlpha(alpha float64) error {
	if !(alpha > 1) || math.IsInf(alpha, 1) {
		return errors.Wrapf(skewtools.ErrInvalidParameter, "alpha should be greater than 1, current value is %v", alpha)
	}
	return nil
}

// Probabilities returns the normalized Zipf mass over n ranks:
// element i is (1/(i+1)) ** alpha divided by the sum of all elements.
func Probabilities(n int, alpha float64) ([]float64, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.Wrap(skewtools.ErrEmptyDataset, "no keys to rank")
	}
	p := make([]float64, n)
	var sum float64
	// summing smallest first keeps the rounding error down for large n
	for i := n - 1; i >= 0; i-- {
		p[i] = math.Pow(float64(i+1), -alpha)
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p, nil
}

// Cumulative returns the running sum of p, with the final element pinned
// to exactly 1.
func Cumulative(p []float64) []float64 {
	c := make([]float64, len(p))
	var acc float64
	for i, v := range p {
		acc += v
		c[i] = acc
	}
	if len(c) > 0 {
		c[len(c)-1] = 1
	}
	return c
}

// Config describes one sampling run.
type Config struct {
	Alpha  float64
	Size   int
	Seed   int64
	Method Method
	Logger *log.Logger
}

// Sampler draws workloads for one Config.
type Sampler struct {
	conf Config
	src  *seq.Sequence
}

// NewSampler validates conf and returns a Sampler.
func NewSampler(conf Config) (*Sampler, error) {
	if err := ValidateAlpha(conf.Alpha); err != nil {
		return nil, err
	}
	if conf.Size < 0 {
		return nil, errors.Wrapf(skewtools.ErrInvalidParameter, "workload size must not be negative, got %d", conf.Size)
	}
	if conf.Method != MethodCDF && conf.Method != MethodRejection {
		return nil, errors.Wrapf(skewtools.ErrInvalidParameter, "unknown sampling method %d", conf.Method)
	}
	return &Sampler{conf: conf, src: seq.NewSequence(conf.Seed)}, nil
}

// Sample draws conf.Size keys with replacement from ranked, the distinct
// keys in descending-frequency order. Keys are returned in draw order as
// int64, the workload file element type.
func (s *Sampler) Sample(ranked []uint64) ([]int64, error) {
	if len(ranked) == 0 {
		return nil, errors.Wrap(skewtools.ErrEmptyDataset, "no keys to sample from")
	}
	out := make([]int64, s.conf.Size)
	if s.conf.Size == 0 {
		return out, nil
	}
	draw, err := s.ranker(len(ranked))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = int64(ranked[draw(uint64(i))])
	}
	if s.conf.Logger != nil {
		s.conf.Logger.Printf("sampled %d keys from %d ranks (alpha %v, seed %d, method %s)",
			len(out), len(ranked), s.conf.Alpha, s.conf.Seed, s.conf.Method)
	}
	return out, nil
}

// ranker returns a function mapping a draw index to a 0-based rank.
func (s *Sampler) ranker(n int) (func(uint64) int, error) {
	if n == 1 {
		return func(uint64) int { return 0 }, nil
	}
	switch s.conf.Method {
	case MethodRejection:
		z, err := seq.NewZipf(s.src, s.conf.Alpha, 1, uint64(n-1))
		if err != nil {
			return nil, errors.Wrapf(skewtools.ErrInvalidParameter, "%v", err)
		}
		return func(i uint64) int {
			if k := z.Nth(i); k < uint64(n) {
				return int(k)
			}
			return n - 1
		}, nil
	default:
		p, err := Probabilities(n, s.conf.Alpha)
		if err != nil {
			return nil, err
		}
		cdf := Cumulative(p)
		return func(i uint64) int {
			u := s.src.Float64At(seq.OffsetFor(seq.ClassSample, 0, i))
			return sort.Search(len(cdf), func(j int) bool { return cdf[j] > u })
		}, nil
	}
}
