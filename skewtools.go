// Package skewtools holds the error kinds and build information shared by
// the workload synthesis packages and the skew command.
package skewtools

import (
	"github.com/pkg/errors"
)

var (
	Version   = "v0.0.0"
	BuildTime = "not recorded"
)

// Error kinds. Operations wrap one of these with context, so callers can
// test for a kind with errors.Is or Kind.
var (
	ErrIO               = errors.New("io error")
	ErrFormat           = errors.New("format error")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrEmptyDataset     = errors.New("empty dataset")
	ErrEmptyWorkload    = errors.New("empty workload")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrExternalProcess  = errors.New("external process error")
	ErrTimeout          = errors.New("external process timed out")
)

var kinds = []error{
	ErrIO,
	ErrFormat,
	ErrInvalidParameter,
	ErrEmptyDataset,
	ErrEmptyWorkload,
	ErrShapeMismatch,
	ErrTimeout,
	ErrExternalProcess,
}

// Kind returns the error kind err was built from, or nil if it doesn't
// wrap one of the known kinds.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
