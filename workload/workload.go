// Package workload reads and writes the persisted artifacts of workload
// synthesis: binary query workloads (little-endian int64 per query, in
// draw order), their text form, and per-key weight files (little-endian
// float64 per dataset key).
package workload

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

// Name returns the conventional file name for a workload drawn from
// dataset: "<dataset>_workload<size/1000>k_alpha<alpha>".
func Name(dataset string, size int, alpha float64) string {
	return fmt.Sprintf("%s_workload%dk_alpha%s", filepath.Base(dataset), size/1000, FormatAlpha(alpha))
}

// FormatAlpha renders alpha the way it appears in workload names: the
// shortest decimal form, always with a fractional part ("2.0", "1.1").
func FormatAlpha(alpha float64) string {
	s := strconv.FormatFloat(alpha, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// WeightPath returns the conventional weight file for a workload:
// dir/<basename(workload)>.
func WeightPath(dir, workloadPath string) string {
	return filepath.Join(dir, filepath.Base(workloadPath))
}

// Encode writes keys to w as little-endian int64.
func Encode(w io.Writer, keys []int64) error {
	bw := bufio.NewWriter(w)
	var buf [8]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		if _, err := bw.Write(buf[:]); err != nil {
			return errors.Wrapf(skewtools.ErrIO, "writing workload: %v", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "flushing workload: %v", err)
	}
	return nil
}

// Decode reads a binary workload from r.
func Decode(r io.Reader) ([]int64, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var buf [8]byte
	keys := []int64{}
	for {
		n, err := io.ReadFull(br, buf[:])
		if err == io.EOF {
			return keys, nil
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(skewtools.ErrFormat, "trailing %d bytes do not make a whole int64", n)
		}
		if err != nil {
			return nil, errors.Wrapf(skewtools.ErrIO, "reading workload: %v", err)
		}
		keys = append(keys, int64(binary.LittleEndian.Uint64(buf[:])))
	}
}

// WriteBinary stores keys at path, creating or truncating it.
func WriteBinary(fs afero.Fs, path string, keys []int64) error {
	return writeFile(fs, path, func(w io.Writer) error { return Encode(w, keys) })
}

// ReadBinary loads the binary workload at path.
func ReadBinary(fs afero.Fs, path string) ([]int64, error) {
	f, err := openSized(fs, path, 8)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	keys, err := Decode(f)
	return keys, errors.Wrapf(err, "reading %s", path)
}

// Length returns the number of queries in the workload at path without
// reading it.
func Length(fs afero.Fs, path string) (int64, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(skewtools.ErrIO, "%s does not exist: %v", path, err)
	}
	if fi.Size()%8 != 0 {
		return 0, errors.Wrapf(skewtools.ErrFormat, "%s: size %d is not a multiple of 8", path, fi.Size())
	}
	return fi.Size() / 8, nil
}

// ParseText reads whitespace-separated decimal numbers. Integers are kept
// exactly; other numbers are truncated toward zero.
func ParseText(r io.Reader) ([]int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	keys := []int64{}
	for sc.Scan() {
		tok := sc.Text()
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			keys = append(keys, v)
			continue
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
			return nil, errors.Wrapf(skewtools.ErrFormat, "value %d: '%s' is not a representable number", len(keys), tok)
		}
		keys = append(keys, int64(f))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "scanning text workload: %v", err)
	}
	return keys, nil
}

// TextPath appends ".txt" to path unless it already names a text file.
func TextPath(path string) string {
	if strings.Contains(path, ".txt") {
		return path
	}
	return path + ".txt"
}

// ConvertText converts the text workload at input (".txt" is appended when
// missing) to a binary workload at output and returns its length.
func ConvertText(fs afero.Fs, input, output string) (int, error) {
	input = TextPath(input)
	f, err := fs.Open(input)
	if err != nil {
		return 0, errors.Wrapf(skewtools.ErrIO, "opening %s: %v", input, err)
	}
	defer f.Close()
	keys, err := ParseText(f)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", input)
	}
	if err := WriteBinary(fs, output, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Fingerprint hashes keys in their binary layout, so equal fingerprints
// mean byte-identical workload files.
func Fingerprint(keys []int64) uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// WriteWeights stores weights at path as little-endian float64.
func WriteWeights(fs afero.Fs, path string, weights []float64) error {
	return writeFile(fs, path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		var buf [8]byte
		for _, v := range weights {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			if _, err := bw.Write(buf[:]); err != nil {
				return errors.Wrapf(skewtools.ErrIO, "writing weights: %v", err)
			}
		}
		if err := bw.Flush(); err != nil {
			return errors.Wrapf(skewtools.ErrIO, "flushing weights: %v", err)
		}
		return nil
	})
}

// ReadWeights loads the weight file at path. If expected is not negative,
// the file must hold exactly that many weights.
func ReadWeights(fs afero.Fs, path string, expected int) ([]float64, error) {
	f, err := openSized(fs, path, 8)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if expected >= 0 && len(raw) != expected {
		return nil, errors.Wrapf(skewtools.ErrShapeMismatch, "%s holds %d weights, expected %d", path, len(raw), expected)
	}
	weights := make([]float64, len(raw))
	for i, v := range raw {
		weights[i] = math.Float64frombits(uint64(v))
	}
	return weights, nil
}

func openSized(fs afero.Fs, path string, width int64) (afero.File, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "%s does not exist: %v", path, err)
	}
	if fi.Size()%width != 0 {
		return nil, errors.Wrapf(skewtools.ErrFormat, "%s: size %d is not a multiple of %d", path, fi.Size(), width)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "opening %s: %v", path, err)
	}
	return f, nil
}

// writeFile creates path (and its directory) and hands it to write.
func writeFile(fs afero.Fs, path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0777); err != nil {
			return errors.Wrapf(skewtools.ErrIO, "making directory %s: %v", dir, err)
		}
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return errors.Wrapf(skewtools.ErrIO, "creating %s: %v", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "closing %s: %v", path, err)
	}
	return nil
}
