// Package sweep runs parameter sweeps of an external index-lookup engine.
// A Grid declares datasets, workloads and model variants with their
// parameter ranges; every combination becomes one engine invocation whose
// four metrics are appended as a row of a CSV results table.
package sweep

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/learnedindex/skewtools"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// Duration wraps time.Duration so grids can say "90s" or "2h".
type Duration struct {
	time.Duration
}

// UnmarshalText satisfies encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(b []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(b))
	return err
}

// UnmarshalYAML satisfies yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Grid is a declarative sweep definition.
type Grid struct {
	Version   string         `toml:"version" yaml:"version"`
	EngineDir string         `toml:"engine-dir" yaml:"engine-dir"` // directory holding the engine binaries
	Results   string         `toml:"results" yaml:"results"`       // CSV results table
	WeightDir string         `toml:"weight-dir" yaml:"weight-dir"` // weight files are <weight-dir>/<basename(workload)>
	Dtype     string         `toml:"dtype" yaml:"dtype"`           // dataset dtype, used to derive record counts
	Timeout   Duration       `toml:"timeout" yaml:"timeout"`       // per invocation; zero means none
	Datasets  []*DatasetSpec `toml:"datasets" yaml:"datasets"`
	Models    []*ModelSpec   `toml:"models" yaml:"models"`
}

// DatasetSpec is one dataset and the workloads to run against it.
type DatasetSpec struct {
	Path      string   `toml:"path" yaml:"path"`
	Workloads []string `toml:"workloads" yaml:"workloads"`
	// Records and WorkloadSize are passed to the engine. When zero they
	// are derived from the file sizes.
	Records      int64 `toml:"records" yaml:"records"`
	WorkloadSize int64 `toml:"workload-size" yaml:"workload-size"`
}

// ModelSpec is one model variant and its parameter ranges.
type ModelSpec struct {
	Name       string `toml:"name" yaml:"name"`
	Binary     string `toml:"binary" yaml:"binary"` // overrides the variant's default binary
	Partitions []int  `toml:"partitions" yaml:"partitions"`
	TableSizes []int  `toml:"table-sizes" yaml:"table-sizes"`
}

// ReadGrid reads a grid from a .toml, .yaml or .yml file. Unknown keys are
// rejected.
func ReadGrid(fs afero.Fs, path string) (*Grid, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(skewtools.ErrIO, "reading grid %s: %v", path, err)
	}
	g := &Grid{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, g); err != nil {
			return nil, errors.Wrapf(skewtools.ErrFormat, "parsing grid %s: %v", path, err)
		}
	default:
		md, err := toml.Decode(string(data), g)
		if err != nil {
			return nil, errors.Wrapf(skewtools.ErrFormat, "parsing grid %s: %v", path, err)
		}
		// don't allow keys we haven't heard of
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keyNames := make([]string, len(undecoded))
			for i, key := range undecoded {
				keyNames[i] = key.String()
			}
			return nil, errors.Wrapf(skewtools.ErrFormat, "grid %s: undecoded keys: %s", path, strings.Join(keyNames, ", "))
		}
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrapf(err, "grid %s", path)
	}
	return g, nil
}

// Validate checks the grid and fills in defaults.
func (g *Grid) Validate() error {
	if g.Version != "1.0" {
		if g.Version != "" {
			return errors.Wrapf(skewtools.ErrFormat, "version must be specified as '1.0' (got '%s')", g.Version)
		}
		return errors.Wrap(skewtools.ErrFormat, "version must be specified as '1.0'")
	}
	if g.EngineDir == "" {
		g.EngineDir = "build"
	}
	if g.WeightDir == "" {
		g.WeightDir = "weights"
	}
	if g.Timeout.Duration < 0 {
		return errors.Wrapf(skewtools.ErrInvalidParameter, "timeout must not be negative, got %v", g.Timeout.Duration)
	}
	if len(g.Datasets) == 0 {
		return errors.Wrap(skewtools.ErrInvalidParameter, "no datasets")
	}
	if len(g.Models) == 0 {
		return errors.Wrap(skewtools.ErrInvalidParameter, "no models")
	}
	for i, d := range g.Datasets {
		if d.Path == "" {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "dataset %d has no path", i)
		}
		// the engine reads raw key files only
		if strings.HasSuffix(d.Path, ".zst") {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "dataset %s is compressed; decompress it for the engine", d.Path)
		}
		if len(d.Workloads) == 0 {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "dataset %s has no workloads", d.Path)
		}
		if d.Records < 0 || d.WorkloadSize < 0 {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "dataset %s: sizes must not be negative", d.Path)
		}
	}
	for _, m := range g.Models {
		v, ok := Variants[m.Name]
		if !ok {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "unknown model '%s' (known: %s)", m.Name, strings.Join(VariantNames(), ", "))
		}
		if len(m.Partitions) == 0 {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "model %s has no partitions", m.Name)
		}
		for _, p := range m.Partitions {
			if p <= 0 {
				return errors.Wrapf(skewtools.ErrInvalidParameter, "model %s: partition count %d must be positive", m.Name, p)
			}
		}
		if v.TableSizes && len(m.TableSizes) == 0 {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "model %s needs table-sizes", m.Name)
		}
		if !v.TableSizes && len(m.TableSizes) > 0 {
			return errors.Wrapf(skewtools.ErrInvalidParameter, "model %s takes no table-sizes", m.Name)
		}
		for _, ts := range m.TableSizes {
			if ts <= 0 {
				return errors.Wrapf(skewtools.ErrInvalidParameter, "model %s: table size %d must be positive", m.Name, ts)
			}
		}
	}
	return nil
}

// Expand enumerates every run in the grid, in dataset, workload, partition
// count, model, table size order. Unset sizes are resolved by sizes.
func (g *Grid) Expand(sizes *Sizer) ([]Run, error) {
	var runs []Run
	for _, d := range g.Datasets {
		records := d.Records
		if records == 0 {
			n, err := sizes.Records(d.Path)
			if err != nil {
				return nil, err
			}
			records = n
		}
		for _, wl := range d.Workloads {
			wlSize := d.WorkloadSize
			if wlSize == 0 {
				n, err := sizes.Queries(wl)
				if err != nil {
					return nil, err
				}
				wlSize = n
			}
			for _, nslm := range g.partitionCounts() {
				for _, m := range g.Models {
					if !containsInt(m.Partitions, nslm) {
						continue
					}
					v := Variants[m.Name]
					base := Run{
						Model:        m.Name,
						Binary:       v.Binary,
						Partitions:   nslm,
						Dataset:      d.Path,
						Records:      records,
						Workload:     wl,
						WorkloadSize: wlSize,
					}
					if m.Binary != "" {
						base.Binary = m.Binary
					}
					if v.Weighted {
						base.WeightPath = filepath.Join(g.WeightDir, filepath.Base(wl))
					}
					if !v.TableSizes {
						runs = append(runs, base)
						continue
					}
					for _, ts := range m.TableSizes {
						r := base
						r.TableSize = ts
						runs = append(runs, r)
					}
				}
			}
		}
	}
	return runs, nil
}

// partitionCounts is the union of every model's partition counts, in
// first-seen order.
func (g *Grid) partitionCounts() []int {
	var out []int
	for _, m := range g.Models {
		for _, p := range m.Partitions {
			if !containsInt(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
