package metrics

import (
	"sync"
)

// Record Single emitted value
type Record struct {
	Name  string
	Value float64
	Step  int
}

// Recorder Append-only in-memory sink
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder Creates empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(name string, value float64, step int) error {
	r.mu.Lock()
	r.records = append(r.records, Record{Name: name, Value: value, Step: step})
	r.mu.Unlock()
	return nil
}

// Records Returns copy of everything emitted so far, in emission order
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Series Returns records with provided name, in emission order
func (r *Recorder) Series(name string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	series := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Name == name {
			series = append(series, rec)
		}
	}
	return series
}

// Names Returns distinct names in order of first emission
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	names := []string{}
	for _, rec := range r.records {
		if _, ok := seen[rec.Name]; ok {
			continue
		}
		seen[rec.Name] = struct{}{}
		names = append(names, rec.Name)
	}
	return names
}
