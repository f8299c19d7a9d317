package metrics

import (
	"github.com/pkg/errors"
)

// Sink Same contract as dcgan.MetricsSink
type Sink interface {
	Emit(name string, value float64, step int) error
}

// Multi Fans every value out to all sinks in order. First failure stops the fan-out
type Multi []Sink

func (m Multi) Emit(name string, value float64, step int) error {
	for i, s := range m {
		if err := s.Emit(name, value, step); err != nil {
			return errors.Wrapf(err, "sink #%d", i)
		}
	}
	return nil
}
