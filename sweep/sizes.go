package sweep

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/workload"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Sizer derives record counts and workload lengths from file sizes,
// remembering recent answers since a grid names the same files many times.
type Sizer struct {
	fs    afero.Fs
	dtype dataset.Dtype
	cache *lru.Cache
}

type sizeKey struct {
	kind string
	path string
}

// NewSizer returns a Sizer reading through fs.
func NewSizer(fs afero.Fs, dtype dataset.Dtype) (*Sizer, error) {
	c, err := lru.New(256)
	if err != nil {
		return nil, errors.Wrap(err, "creating size cache")
	}
	return &Sizer{fs: fs, dtype: dtype, cache: c}, nil
}

// Records returns the number of keys in the dataset at path.
func (s *Sizer) Records(path string) (int64, error) {
	return s.lookup(sizeKey{"records", path}, func() (int64, error) {
		return dataset.Records(s.fs, path, s.dtype)
	})
}

// Queries returns the number of queries in the workload at path.
func (s *Sizer) Queries(path string) (int64, error) {
	return s.lookup(sizeKey{"queries", path}, func() (int64, error) {
		return workload.Length(s.fs, path)
	})
}

func (s *Sizer) lookup(key sizeKey, compute func() (int64, error)) (int64, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(int64), nil
	}
	n, err := compute()
	if err != nil {
		return 0, errors.Wrapf(err, "sizing %s", key.path)
	}
	s.cache.Add(key, n)
	return n, nil
}
