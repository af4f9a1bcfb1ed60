package sweep

import (
	"bytes"
	"context"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/workload"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type fakeEngine struct {
	outputs []string
	errs    []error
	calls   []Invocation
}

func (f *fakeEngine) Run(ctx context.Context, inv Invocation) (Metrics, error) {
	i := len(f.calls)
	f.calls = append(f.calls, inv)
	if i < len(f.errs) && f.errs[i] != nil {
		return Metrics{}, f.errs[i]
	}
	return ParseMetrics(f.outputs[i])
}

func linearRuns(partitions ...int) []Run {
	runs := make([]Run, len(partitions))
	for i, p := range partitions {
		runs[i] = Run{
			Model:        "linear_model",
			Binary:       "benchmark_learned_index",
			Partitions:   p,
			Dataset:      "keys",
			Records:      10,
			Workload:     "wl",
			WorkloadSize: 5,
		}
	}
	return runs
}

func TestRunnerAppendsRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "results.csv", []byte(headerLine+"linear_model,1,NA,NA,old,1,2,3,4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	eng := &fakeEngine{outputs: []string{"100\t1\t2\t3\n", "200\t3\t4\t5\n"}}
	logs := &bytes.Buffer{}
	r := &Runner{Fs: fs, Engine: eng, Logger: log.New(logs, "", 0)}
	sum, err := r.Run(context.Background(), linearRuns(10, 20), "results.csv")
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	lines := readLines(t, fs, "results.csv")
	exp := []string{
		headerLine[:len(headerLine)-1],
		"linear_model,1,NA,NA,old,1,2,3,4",
		"linear_model,10,NA,NA,wl,100,1,2,3",
		"linear_model,20,NA,NA,wl,200,3,4,5",
	}
	if len(lines) != len(exp) {
		t.Fatalf("expected %d lines, got %q", len(exp), lines)
	}
	for i := range exp {
		if lines[i] != exp[i] {
			t.Errorf("line %d: got %q, expected %q", i, lines[i], exp[i])
		}
	}
	if sum.Done != 2 || sum.Planned != 2 || sum.RunID == "" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	ms := sum.Models["linear_model"]
	if ms.Runs != 2 || ms.QueryTime.Mean != 3 || ms.BuildTime.Min != 1 || ms.BuildTime.Max != 3 {
		t.Fatalf("unexpected model summary: %+v %+v %+v", ms, ms.BuildTime, ms.QueryTime)
	}
	if !strings.Contains(logs.String(), "2 of 2 done") || !strings.Contains(logs.String(), "stddev 1,") {
		t.Fatalf("summary not logged:\n%s", logs.String())
	}
	if got := eng.calls[1].Args; got[0] != "20" {
		t.Fatalf("second invocation args: %v", got)
	}
}

func TestRunnerStopsOnMalformedOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	eng := &fakeEngine{outputs: []string{"100\t1\t2\t3\n", "1\t2\t3\n", "100\t1\t2\t3\n"}}
	r := &Runner{Fs: fs, Engine: eng}
	_, err := r.Run(context.Background(), linearRuns(1, 2, 3), "results.csv")
	if !errors.Is(err, skewtools.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("expected the sweep to stop after 2 calls, got %d", len(eng.calls))
	}
	if lines := readLines(t, fs, "results.csv"); len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", lines)
	}
}

func TestRunnerKeepGoing(t *testing.T) {
	fs := afero.NewMemMapFs()
	eng := &fakeEngine{
		outputs: []string{"100\t1\t2\t3\n", "", "", "7\t7\t7\t7"},
		errs: []error{
			nil,
			errors.Wrap(skewtools.ErrTimeout, "slow"),
			errors.Wrap(skewtools.ErrExternalProcess, "crashed"),
		},
	}
	r := &Runner{Fs: fs, Engine: eng, KeepGoing: true}
	sum, err := r.Run(context.Background(), linearRuns(1, 2, 3, 4), "results.csv")
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	lines := readLines(t, fs, "results.csv")
	exp := []string{
		"linear_model,1,NA,NA,wl,100,1,2,3",
		"linear_model,2,NA,NA,wl,TIMEOUT,TIMEOUT,TIMEOUT,TIMEOUT",
		"linear_model,3,NA,NA,wl,FAILED,FAILED,FAILED,FAILED",
		"linear_model,4,NA,NA,wl,7,7,7,7",
	}
	if len(lines) != len(exp)+1 {
		t.Fatalf("expected %d lines, got %q", len(exp)+1, lines)
	}
	for i := range exp {
		if lines[i+1] != exp[i] {
			t.Errorf("row %d: got %q, expected %q", i, lines[i+1], exp[i])
		}
	}
	if sum.Done != 2 || sum.TimedOut != 1 || sum.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRunnerMissingWeights(t *testing.T) {
	run := Run{
		Model:        "weighted_linear_model",
		Binary:       "benchmark_weighted_learned_index",
		Partitions:   1,
		Dataset:      "keys",
		Workload:     "wl",
		WeightPath:   "weights/wl",
		Records:      1,
		WorkloadSize: 1,
	}
	eng := &fakeEngine{}
	r := &Runner{Fs: afero.NewMemMapFs(), Engine: eng}
	if _, err := r.Run(context.Background(), []Run{run}, "results.csv"); !errors.Is(err, skewtools.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("engine should not run without weights")
	}
}

func TestRunnerWeightShape(t *testing.T) {
	run := Run{
		Model:        "weighted_linear_model",
		Binary:       "benchmark_weighted_learned_index",
		Partitions:   1,
		Dataset:      "keys",
		Workload:     "wl",
		WeightPath:   "weights/wl",
		Records:      6,
		WorkloadSize: 4,
	}
	tests := []struct {
		name      string
		weights   []float64
		keepGoing bool
		kind      error
		rows      []string
	}{
		{
			name:    "too short",
			weights: []float64{1, 0.5},
			kind:    skewtools.ErrShapeMismatch,
		},
		{
			name:      "too short keep going",
			weights:   []float64{1, 0.5},
			keepGoing: true,
			rows:      []string{"weighted_linear_model,1,NA,wl,wl,FAILED,FAILED,FAILED,FAILED"},
		},
		{
			name:    "matching",
			weights: []float64{1, 0.5, 0.5, 1, 1, 1},
			rows:    []string{"weighted_linear_model,1,NA,wl,wl,1,2,3,4"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := workload.WriteWeights(fs, run.WeightPath, test.weights); err != nil {
				t.Fatal(err)
			}
			eng := &fakeEngine{outputs: []string{"1\t2\t3\t4\n"}}
			r := &Runner{Fs: fs, Engine: eng, KeepGoing: test.keepGoing}
			_, err := r.Run(context.Background(), []Run{run}, "results.csv")
			if test.kind != nil {
				if !errors.Is(err, test.kind) {
					t.Fatalf("expected %v, got %v", test.kind, err)
				}
			} else if err != nil {
				t.Fatalf("running: %v", err)
			}
			wantCalls := 0
			if test.kind == nil && !test.keepGoing {
				wantCalls = 1
			}
			if len(eng.calls) != wantCalls {
				t.Fatalf("expected %d engine calls, got %d", wantCalls, len(eng.calls))
			}
			lines := readLines(t, fs, "results.csv")
			if len(lines) != len(test.rows)+1 {
				t.Fatalf("expected %d rows, got %q", len(test.rows), lines)
			}
			for i, row := range test.rows {
				if lines[i+1] != row {
					t.Errorf("row %d: got %q, expected %q", i, lines[i+1], row)
				}
			}
		})
	}
}

func TestRunnerCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	eng := &fakeEngine{outputs: []string{"1\t1\t1\t1"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Fs: fs, Engine: eng}
	if _, err := r.Run(ctx, linearRuns(1), "results.csv"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("engine ran after cancel")
	}
	if lines := readLines(t, fs, "results.csv"); len(lines) != 1 {
		t.Fatalf("expected only the header, got %q", lines)
	}
}

func TestStats(t *testing.T) {
	s := NewStats()
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(v)
	}
	if math.Abs(s.Mean-5) > 1e-9 || s.Min != 2 || s.Max != 9 || s.Total != 40 || s.Num != 8 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if math.Abs(s.Stddev()-2) > 1e-9 {
		t.Fatalf("stddev: got %v", s.Stddev())
	}
}
