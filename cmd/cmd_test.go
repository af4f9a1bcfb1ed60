package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/learnedindex/skewtools"
	"github.com/learnedindex/skewtools/dataset"
	"github.com/learnedindex/skewtools/weights"
	"github.com/learnedindex/skewtools/workload"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	old := appFs
	appFs = fs
	t.Cleanup(func() { appFs = old })
	return fs
}

func execute(args ...string) (string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rc := NewRootCommand(strings.NewReader(""), stdout, stderr)
	rc.SetArgs(args)
	err := rc.Execute()
	return stdout.String(), err
}

func writeKeys(t *testing.T, fs afero.Fs, path string, keys []uint64) {
	t.Helper()
	if err := dataset.Write(fs, path, dataset.Uint64, uint64(len(keys)), keys); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
}

func TestGenerateAndWeights(t *testing.T) {
	fs := useMemFs(t)
	writeKeys(t, fs, "data/keys", []uint64{10, 20, 20, 30, 30, 30})

	out, err := execute("generate", "-d", "data/keys", "-s", "2000", "-o", "out", "-a", "1.5,2", "--seed", "7", "-v")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "out/keys_workload2k_alpha2.0") {
		t.Fatalf("expected a histogram for alpha 2.0, got:\n%s", out)
	}

	var fingerprints []uint64
	for _, name := range []string{"out/keys_workload2k_alpha1.5", "out/keys_workload2k_alpha2.0"} {
		wl, err := workload.ReadBinary(fs, name)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if len(wl) != 2000 {
			t.Fatalf("%s: expected 2000 queries, got %d", name, len(wl))
		}
		counts := map[int64]int{}
		for _, k := range wl {
			counts[k]++
		}
		for k := range counts {
			if k != 10 && k != 20 && k != 30 {
				t.Fatalf("%s: key %d is not in the dataset", name, k)
			}
		}
		if counts[30] <= counts[10] {
			t.Fatalf("%s: most frequent key drawn %d times, least frequent %d", name, counts[30], counts[10])
		}
		fingerprints = append(fingerprints, workload.Fingerprint(wl))
	}

	if _, err := execute("generate", "-d", "data/keys", "-s", "2000", "-o", "out", "-a", "1.5", "--seed", "7"); err != nil {
		t.Fatalf("generate again: %v", err)
	}
	wl, err := workload.ReadBinary(fs, "out/keys_workload2k_alpha1.5")
	if err != nil {
		t.Fatal(err)
	}
	if workload.Fingerprint(wl) != fingerprints[0] {
		t.Fatalf("same seed produced a different workload")
	}

	if _, err := execute("weights", "-d", "data/keys", "-w", "out/keys_workload2k_alpha2.0", "-o", "w"); err != nil {
		t.Fatalf("weights: %v", err)
	}
	ws, err := workload.ReadWeights(fs, "w/keys_workload2k_alpha2.0", 6)
	if err != nil {
		t.Fatalf("reading weights: %v", err)
	}
	if err := weights.Check(ws, 6); err != nil {
		t.Fatalf("weights out of range: %v", err)
	}
	if ws[3] != 1 || ws[0] >= ws[1] {
		t.Fatalf("unexpected weights %v", ws)
	}
}

func TestGenerateErrors(t *testing.T) {
	fs := useMemFs(t)
	writeKeys(t, fs, "keys", []uint64{1, 2, 3})
	writeKeys(t, fs, "empty", nil)

	tests := []struct {
		args []string
		kind error
	}{
		{args: []string{"-d", "keys", "-a", "1"}, kind: skewtools.ErrInvalidParameter},
		{args: []string{"-d", "keys", "-a", "0.5"}, kind: skewtools.ErrInvalidParameter},
		{args: []string{"-d", "keys", "--method", "magic"}, kind: skewtools.ErrInvalidParameter},
		{args: []string{"-d", "keys", "-t", "int8"}, kind: skewtools.ErrInvalidParameter},
		{args: []string{"-d", "empty"}, kind: skewtools.ErrEmptyDataset},
		{args: []string{"-d", "missing"}, kind: skewtools.ErrIO},
	}
	for i, test := range tests {
		_, err := execute(append([]string{"generate", "-o", "bad", "-s", "10"}, test.args...)...)
		if !errors.Is(err, test.kind) {
			t.Errorf("test %d %v: expected %v, got %v", i, test.args, test.kind, err)
		}
	}
	if ok, _ := afero.Exists(fs, "bad/keys_workload0k_alpha1.0"); ok {
		t.Fatalf("workload written for an invalid alpha")
	}
}

func TestGenerateRepeatedAlpha(t *testing.T) {
	fs := useMemFs(t)
	writeKeys(t, fs, "keys", []uint64{1, 2, 2})
	if _, err := execute("generate", "-d", "keys", "-s", "500", "-o", "out", "-a", "1.5,1.5,2,1.5", "--seed", "4", "--concurrency", "4"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	files, err := afero.ReadDir(fs, "out")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 workloads, got %d", len(files))
	}
	for _, f := range files {
		if f.Size() != 500*8 {
			t.Fatalf("%s: size %d", f.Name(), f.Size())
		}
	}

	got := uniqueAlphas([]float64{2, 1.5, 2, 3, 1.5})
	if len(got) != 3 || got[0] != 2 || got[1] != 1.5 || got[2] != 3 {
		t.Fatalf("unexpected alphas %v", got)
	}
}

func TestConvert(t *testing.T) {
	fs := useMemFs(t)
	if err := afero.WriteFile(fs, "wl.txt", []byte("5 6.7\n-1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute("convert", "--input", "wl", "--output", "wl.bin"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	keys, err := workload.ReadBinary(fs, "wl.bin")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != 5 || keys[1] != 6 || keys[2] != -1 {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestRank(t *testing.T) {
	fs := useMemFs(t)
	keys := []uint64{1}
	for i := 0; i < 1500; i++ {
		keys = append(keys, 7)
	}
	writeKeys(t, fs, "keys", keys)
	out, err := execute("rank", "-d", "keys", "--top", "5")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 keys and a total, got:\n%s", out)
	}
	if f := strings.Fields(lines[1]); len(f) != 3 || f[1] != "7" || f[2] != "1,500" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if f := strings.Fields(lines[2]); len(f) != 3 || f[1] != "1" || f[2] != "1" {
		t.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestSweepList(t *testing.T) {
	fs := useMemFs(t)
	grid := `version = "1.0"

[[datasets]]
path = "keys"
records = 6
workload-size = 3
workloads = ["wl"]

[[models]]
name = "linear_model"
partitions = [10]

[[models]]
name = "look_up_table_linear_model"
partitions = [10]
table-sizes = [4]
`
	if err := afero.WriteFile(fs, "g.toml", []byte(grid), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute("sweep", "--grid", "g.toml", "--list")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	exp := "build/benchmark_learned_index 10 keys wl 6 3\n" +
		"build/benchmark_look_up_table_learned_index 10 4 keys weights/wl wl 6 3\n"
	if out != exp {
		t.Fatalf("unexpected listing:\n%s\nexpected:\n%s", out, exp)
	}
	if ok, _ := afero.Exists(fs, "results"); ok {
		t.Fatalf("listing should not touch results")
	}
}

func TestDryRun(t *testing.T) {
	useMemFs(t)
	_, err := execute("generate", "--dry-run")
	if err == nil || err.Error() != "dry run" {
		t.Fatalf("expected dry run error, got %v", err)
	}
}
