package sweep

import (
	"strings"
	"testing"

	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const headerLine = "model,num_second_level_models,table_size,train_workload,test_workload,model_size,build_time,test_workload_time,num_last_mile_search\n"

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestResultsTableNew(t *testing.T) {
	fs := afero.NewMemMapFs()
	table, err := OpenResults(fs, "out/results.csv")
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	row := Row{Model: "linear_model", Partitions: 1000, TableSize: NA, TrainWorkload: NA, TestWorkload: "wl", Metrics: [4]string{"1024", "0.5", "0.25", "7"}}
	if err := table.Append(row); err != nil {
		t.Fatalf("appending: %v", err)
	}
	// visible before close
	lines := readLines(t, fs, "out/results.csv")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", lines)
	}
	if lines[0]+"\n" != headerLine {
		t.Fatalf("header: got %q", lines[0])
	}
	if lines[1] != "linear_model,1000,NA,NA,wl,1024,0.5,0.25,7" {
		t.Fatalf("row: got %q", lines[1])
	}
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestResultsTableAppendsToExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	existing := headerLine + "linear_model,10,NA,NA,old,1,2,3,4\n"
	if err := afero.WriteFile(fs, "results.csv", []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		table, err := OpenResults(fs, "results.csv")
		if err != nil {
			t.Fatalf("opening: %v", err)
		}
		if err := table.Append(Row{Model: "weighted_linear_model", Partitions: 20, TableSize: NA, TrainWorkload: "wl", TestWorkload: "wl", Metrics: [4]string{"5", "6", "7", "8"}}); err != nil {
			t.Fatalf("appending: %v", err)
		}
		if err := table.Close(); err != nil {
			t.Fatal(err)
		}
		lines := readLines(t, fs, "results.csv")
		if len(lines) != 3+i {
			t.Fatalf("after %d appends: expected %d lines, got %q", i+1, 3+i, lines)
		}
		if lines[1] != "linear_model,10,NA,NA,old,1,2,3,4" {
			t.Fatalf("existing row changed: %q", lines[1])
		}
	}
	if n := strings.Count(strings.Join(readLines(t, fs, "results.csv"), "\n"), "model,num_second_level_models"); n != 1 {
		t.Fatalf("header written %d times", n)
	}
}

func TestResultsTableRepairsPartialRow(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "results.csv", []byte(headerLine+"linear_model,10,NA"), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := OpenResults(fs, "results.csv")
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if err := table.Append(Row{Model: "linear_model", Partitions: 1, TableSize: NA, TrainWorkload: NA, TestWorkload: "wl", Metrics: [4]string{"1", "1", "1", "1"}}); err != nil {
		t.Fatal(err)
	}
	table.Close()
	lines := readLines(t, fs, "results.csv")
	if len(lines) != 3 || lines[2] != "linear_model,1,NA,NA,wl,1,1,1,1" {
		t.Fatalf("unexpected table: %q", lines)
	}
}

func TestResultsTableWrongHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "results.csv", []byte("a,b,c\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenResults(fs, "results.csv"); !errors.Is(err, skewtools.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}
