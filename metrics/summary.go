package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary Sliding window of most recent values per metric
type Summary struct {
	window int
	values map[string][]float64
}

// Stats Aggregates of one metric over the window
type Stats struct {
	Name   string
	Mean   float64
	StdDev float64
	Last   float64
	Count  int
}

// NewSummary Keeps up to window latest values of each metric
func NewSummary(window int) *Summary {
	if window <= 0 {
		window = 1
	}
	return &Summary{
		window: window,
		values: make(map[string][]float64),
	}
}

func (s *Summary) Emit(name string, value float64, step int) error {
	v := append(s.values[name], value)
	if len(v) > s.window {
		v = v[len(v)-s.window:]
	}
	s.values[name] = v
	return nil
}

// Stats Returns aggregates sorted by metric name
func (s *Summary) Stats() []Stats {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		v := s.values[name]
		st := Stats{Name: name, Count: len(v), Last: v[len(v)-1]}
		if len(v) > 1 {
			st.Mean, st.StdDev = stat.MeanStdDev(v, nil)
		} else {
			st.Mean = v[0]
		}
		out = append(out, st)
	}
	return out
}
