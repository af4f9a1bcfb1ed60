package seq

import (
	"math"

	"github.com/pkg/errors"
)

// Zipf draws ranks in [0, max] such that the probability of k is
// proportional to (v+k) ** -q, with v >= 1 and q > 1.
//
// It uses rejection-inversion as described in
//
// "Rejection-Inversion to Generate Variates
// from Monotone Discrete Distributions"
// W.Hormann, G.Derflinger [1996]
//
// the same paper behind math/rand's Zipf. Unlike math/rand, draws are
// addressed by index: Nth(i) always returns the same value for the same
// sequence and parameters.
type Zipf struct {
	src          *Sequence
	q, v         float64
	oneMinusQ    float64
	invOneMinusQ float64
	hImax        float64 // h(max + 1/2)
	hSpan        float64 // h(x0) - h(max + 1/2)
	s            float64
}

// NewZipf returns a Zipf over [0, max] drawing its variates from src.
func NewZipf(src *Sequence, q, v float64, max uint64) (*Zipf, error) {
	if src == nil {
		return nil, errors.New("zipf requires a non-nil sequence")
	}
	if !(q > 1) {
		return nil, errors.Errorf("zipf exponent must be > 1, got %v", q)
	}
	if v < 1 {
		return nil, errors.Errorf("zipf offset must be >= 1, got %v", v)
	}
	z := &Zipf{
		src:          src,
		q:            q,
		v:            v,
		oneMinusQ:    1 - q,
		invOneMinusQ: 1 / (1 - q),
	}
	hX0 := z.h(0.5) - math.Exp(math.Log(v)*-q)
	z.hImax = z.h(float64(max) + 0.5)
	z.hSpan = hX0 - z.hImax
	z.s = 1 - z.hInv(z.h(1.5)-math.Exp(math.Log(v+1)*-q))
	return z, nil
}

func (z *Zipf) h(x float64) float64 {
	return math.Exp(z.oneMinusQ*math.Log(z.v+x)) * z.invOneMinusQ
}

func (z *Zipf) hInv(x float64) float64 {
	return -z.v + math.Exp(z.invOneMinusQ*math.Log(z.oneMinusQ*x))
}

// Nth returns the index'th draw.
func (z *Zipf) Nth(index uint64) uint64 {
	offset := OffsetFor(ClassZipf, 0, index)
	for {
		u := z.src.Float64At(offset)
		u = z.hImax + u*z.hSpan
		x := z.hInv(u)
		k := math.Floor(x + 0.5)
		if k-x <= z.s {
			return uint64(k)
		}
		if u >= z.h(k+0.5)-math.Exp(-math.Log(z.v+k)*z.q) {
			return uint64(k)
		}
		// rejected; the expected number of retries is about 0.1.
		offset.Hi++
	}
}
