// Package dataset reads sorted fixed-width integer key files. The first
// element of every file is a header (normally the record count) and is
// never treated as a key.
package dataset

import (
	"bufio"
	"encoding/binary"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Dtype is the on-disk element type of a dataset.
type Dtype int

const (
	Uint64 Dtype = iota
	Uint32
)

// Width is the element size in bytes.
func (d Dtype) Width() int {
	if d == Uint32 {
		return 4
	}
	return 8
}

func (d Dtype) String() string {
	if d == Uint32 {
		return "uint32"
	}
	return "uint64"
}

// ParseDtype parses a dtype name. "unit64" is accepted as a spelling of
// uint64 because older workload scripts used it.
func ParseDtype(s string) (Dtype, error) {
	switch strings.ToLower(s) {
	case "uint64", "unit64", "":
		return Uint64, nil
	case "uint32":
		return Uint32, nil
	}
	return Uint64, errors.Wrapf(skewtools.ErrInvalidParameter, "unknown dtype '%s' (must be uint64 or uint32)", s)
}

// Options controls Read.
type Options struct {
	Dtype Dtype
	// CheckSorted makes Read fail if keys are not in ascending order.
	CheckSorted bool
	Logger      *log.Logger
}

// Read loads the keys of the dataset at path, dropping the header element.
// Paths ending in ".zst" are decompressed while reading.
func Read(fs afero.Fs, path string, opts Options) ([]uint64, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "%s does not exist: %v", path, err)
	}
	if fi.IsDir() {
		return nil, errors.Wrapf(skewtools.ErrIO, "%s is a directory", path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "opening %s: %v", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(skewtools.ErrFormat, "creating zstd decoder for %s: %v", path, err)
		}
		defer dec.Close()
		r = dec
	} else if fi.Size()%int64(opts.Dtype.Width()) != 0 {
		return nil, errors.Wrapf(skewtools.ErrFormat, "%s: size %d is not a multiple of %d-byte %s elements",
			path, fi.Size(), opts.Dtype.Width(), opts.Dtype)
	}

	keys, err := Decode(r, opts.Dtype)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if opts.CheckSorted {
		if err := CheckSorted(keys); err != nil {
			return nil, errors.Wrapf(err, "checking %s", path)
		}
	}
	if opts.Logger != nil {
		opts.Logger.Printf("read %d %s keys from %s (%s)", len(keys), opts.Dtype, path, humanize.Bytes(uint64(fi.Size())))
	}
	return keys, nil
}

// Decode reads every element of r as a little-endian integer of the given
// dtype and returns all but the first.
func Decode(r io.Reader, dtype Dtype) ([]uint64, error) {
	width := dtype.Width()
	br := bufio.NewReaderSize(r, 1<<20)
	buf := make([]byte, width)
	var keys []uint64
	header := true
	for {
		n, err := io.ReadFull(br, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(skewtools.ErrFormat, "trailing %d bytes do not make a whole %d-byte element", n, width)
		}
		if err != nil {
			return nil, errors.Wrapf(skewtools.ErrIO, "reading element: %v", err)
		}
		if header {
			header = false
			continue
		}
		if width == 4 {
			keys = append(keys, uint64(binary.LittleEndian.Uint32(buf)))
		} else {
			keys = append(keys, binary.LittleEndian.Uint64(buf))
		}
	}
	if keys == nil {
		keys = []uint64{}
	}
	return keys, nil
}

// CheckSorted returns a format error naming the first key that is smaller
// than its predecessor.
func CheckSorted(keys []uint64) error {
	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			return errors.Wrapf(skewtools.ErrFormat, "key %d at position %d is less than preceding key %d", keys[i], i, keys[i-1])
		}
	}
	return nil
}

// Records returns the number of keys in the dataset at path without
// reading it: the element count minus the header.
func Records(fs afero.Fs, path string, dtype Dtype) (int64, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(skewtools.ErrIO, "%s does not exist: %v", path, err)
	}
	width := int64(dtype.Width())
	if fi.Size()%width != 0 {
		return 0, errors.Wrapf(skewtools.ErrFormat, "%s: size %d is not a multiple of %d", path, fi.Size(), width)
	}
	n := fi.Size()/width - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Write stores header followed by keys at path in the dataset layout.
func Write(fs afero.Fs, path string, dtype Dtype, header uint64, keys []uint64) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return errors.Wrapf(skewtools.ErrIO, "creating %s: %v", path, err)
	}
	bw := bufio.NewWriter(f)
	buf := make([]byte, dtype.Width())
	put := func(v uint64) error {
		if dtype == Uint32 {
			if v > 1<<32-1 {
				return errors.Wrapf(skewtools.ErrInvalidParameter, "value %d does not fit in uint32", v)
			}
			binary.LittleEndian.PutUint32(buf, uint32(v))
		} else {
			binary.LittleEndian.PutUint64(buf, v)
		}
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrapf(skewtools.ErrIO, "%v", err)
		}
		return nil
	}
	if err := put(header); err != nil {
		f.Close()
		return errors.Wrap(err, "writing header")
	}
	for _, k := range keys {
		if err := put(k); err != nil {
			f.Close()
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(skewtools.ErrIO, "flushing %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "closing %s: %v", path, err)
	}
	return nil
}
