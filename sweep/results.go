package sweep

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Header is the first row of every results table.
var Header = []string{
	"model",
	"num_second_level_models",
	"table_size",
	"train_workload",
	"test_workload",
	"model_size",
	"build_time",
	"test_workload_time",
	"num_last_mile_search",
}

// Row is one results record.
type Row struct {
	Model         string
	Partitions    int
	TableSize     string
	TrainWorkload string
	TestWorkload  string
	Metrics       [4]string
}

// RowFor builds the results row of a run.
func RowFor(r Run, m Metrics) Row {
	return Row{
		Model:         r.Model,
		Partitions:    r.Partitions,
		TableSize:     r.TableSizeField(),
		TrainWorkload: r.TrainWorkload(),
		TestWorkload:  r.Workload,
		Metrics:       m.Raw,
	}
}

// MarkerRow records a run that produced no metrics; marker fills every
// metric column.
func MarkerRow(r Run, marker string) Row {
	return RowFor(r, Metrics{Raw: [4]string{marker, marker, marker, marker}})
}

func (r Row) fields() []string {
	return []string{
		r.Model,
		itoa(r.Partitions),
		r.TableSize,
		r.TrainWorkload,
		r.TestWorkload,
		r.Metrics[0],
		r.Metrics[1],
		r.Metrics[2],
		r.Metrics[3],
	}
}

// ResultsTable is an append-only CSV file. Every appended row is flushed to
// storage before Append returns, so an interrupted sweep keeps the rows it
// finished.
type ResultsTable struct {
	path string
	f    afero.File
	w    *csv.Writer
}

// OpenResults opens the table at path for appending. A missing or empty
// file gets the header; an existing table must start with it.
func OpenResults(fs afero.Fs, path string) (*ResultsTable, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(skewtools.ErrIO, "creating results directory: %v", err)
		}
	}
	var size int64
	if fi, err := fs.Stat(path); err == nil {
		size = fi.Size()
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(skewtools.ErrIO, "stat results %s: %v", path, err)
	}
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "opening results %s: %v", path, err)
	}
	t := &ResultsTable{path: path, f: f, w: csv.NewWriter(f)}
	if size == 0 {
		if err := t.write(Header); err != nil {
			f.Close()
			return nil, err
		}
		return t, nil
	}
	if err := t.checkExisting(size); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// checkExisting verifies the header and terminates a row left unfinished by
// an interrupted writer.
func (t *ResultsTable) checkExisting(size int64) error {
	first, err := bufio.NewReader(io.NewSectionReader(t.f, 0, size)).ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.Wrapf(skewtools.ErrIO, "reading results %s: %v", t.path, err)
	}
	if strings.TrimRight(first, "\r\n") != strings.Join(Header, ",") {
		return errors.Wrapf(skewtools.ErrFormat, "results %s has unexpected header %q", t.path, strings.TrimRight(first, "\r\n"))
	}
	last := make([]byte, 1)
	if _, err := t.f.ReadAt(last, size-1); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "reading results %s: %v", t.path, err)
	}
	if last[0] != '\n' {
		if _, err := t.f.Write([]byte{'\n'}); err != nil {
			return errors.Wrapf(skewtools.ErrIO, "writing results %s: %v", t.path, err)
		}
	}
	return nil
}

// Append writes one row and syncs it.
func (t *ResultsTable) Append(r Row) error {
	return t.write(r.fields())
}

func (t *ResultsTable) write(record []string) error {
	if err := t.w.Write(record); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "writing results %s: %v", t.path, err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "flushing results %s: %v", t.path, err)
	}
	if err := t.f.Sync(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "syncing results %s: %v", t.path, err)
	}
	return nil
}

// Close closes the underlying file.
func (t *ResultsTable) Close() error {
	if err := t.f.Close(); err != nil {
		return errors.Wrapf(skewtools.ErrIO, "closing results %s: %v", t.path, err)
	}
	return nil
}
