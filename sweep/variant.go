package sweep

import (
	"sort"
	"strconv"
)

// Run is one fully resolved point of a sweep.
type Run struct {
	Model        string
	Binary       string
	Partitions   int
	TableSize    int // zero when the variant has no lookup table
	Dataset      string
	Records      int64
	Workload     string
	WorkloadSize int64
	WeightPath   string // empty when the variant takes no weights
}

// Invocation is a command line for the engine.
type Invocation struct {
	Binary string
	Args   []string
}

// Variant describes how one model variant is invoked and recorded.
type Variant struct {
	Binary     string
	Weighted   bool // takes a weight file; trained on the workload it is tested on
	TableSizes bool // sweeps lookup table sizes
	Args       func(r Run) []string
}

// Variants maps model names to their invocation builders. Adding a model
// variant only needs a new entry here.
var Variants = map[string]Variant{
	"linear_model": {
		Binary: "benchmark_learned_index",
		Args: func(r Run) []string {
			return []string{itoa(r.Partitions), r.Dataset, r.Workload, i64toa(r.Records), i64toa(r.WorkloadSize)}
		},
	},
	"weighted_linear_model": {
		Binary:   "benchmark_weighted_learned_index",
		Weighted: true,
		Args: func(r Run) []string {
			return []string{itoa(r.Partitions), r.Dataset, r.WeightPath, r.Workload, i64toa(r.Records), i64toa(r.WorkloadSize)}
		},
	},
	"look_up_table_linear_model": {
		Binary:     "benchmark_look_up_table_learned_index",
		Weighted:   true,
		TableSizes: true,
		Args: func(r Run) []string {
			return []string{itoa(r.Partitions), itoa(r.TableSize), r.Dataset, r.WeightPath, r.Workload, i64toa(r.Records), i64toa(r.WorkloadSize)}
		},
	},
}

// VariantNames lists the known model names, sorted.
func VariantNames() []string {
	names := make([]string, 0, len(Variants))
	for name := range Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invocation builds the engine command line for r.
func (r Run) Invocation() Invocation {
	return Invocation{Binary: r.Binary, Args: Variants[r.Model].Args(r)}
}

// TrainWorkload is the workload the model was fitted to, or "NA".
func (r Run) TrainWorkload() string {
	if Variants[r.Model].Weighted {
		return r.Workload
	}
	return NA
}

// TableSizeField is the table size as recorded in results, or "NA".
func (r Run) TableSizeField() string {
	if r.TableSize == 0 {
		return NA
	}
	return itoa(r.TableSize)
}

func itoa(i int) string { return strconv.Itoa(i) }
func i64toa(i int64) string { return strconv.FormatInt(i, 10) }
