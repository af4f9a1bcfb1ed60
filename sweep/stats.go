package sweep

import "math"

// Stats tracks a running summary of one metric.
type Stats struct {
	Min            float64
	Max            float64
	Mean           float64
	Total          float64
	Num            int64
	sumSquareDelta float64
}

// NewStats gets a Stats object.
func NewStats() *Stats {
	return &Stats{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// Add adds a new observation.
func (s *Stats) Add(v float64) {
	s.Num++
	s.Total += v
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}

	// online variance calculation
	// https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Online_algorithm
	delta := v - s.Mean
	s.Mean += delta / float64(s.Num)
	s.sumSquareDelta += delta * (v - s.Mean)
}

// Stddev is the population standard deviation of the observations.
func (s *Stats) Stddev() float64 {
	if s.Num == 0 {
		return 0
	}
	return math.Sqrt(s.sumSquareDelta / float64(s.Num))
}

// ModelSummary collects the metrics of every successful run of one model.
type ModelSummary struct {
	Runs      int
	BuildTime *Stats
	QueryTime *Stats
}

// Summary describes a finished (or interrupted) sweep.
type Summary struct {
	RunID    string
	Planned  int
	Done     int
	Failed   int
	TimedOut int
	Models   map[string]*ModelSummary
}

func newSummary(id string, planned int) *Summary {
	return &Summary{RunID: id, Planned: planned, Models: make(map[string]*ModelSummary)}
}

func (s *Summary) add(r Run, m Metrics) {
	s.Done++
	ms, ok := s.Models[r.Model]
	if !ok {
		ms = &ModelSummary{BuildTime: NewStats(), QueryTime: NewStats()}
		s.Models[r.Model] = ms
	}
	ms.Runs++
	ms.BuildTime.Add(m.BuildTime)
	ms.QueryTime.Add(m.QueryTime)
}
