package dcgan

const (
	MetricGeneratorLoss     = "generator loss"
	MetricDiscriminatorLoss = "discriminator loss"
)

// MetricsSink Receives scalar values keyed by name and step index
type MetricsSink interface {
	Emit(name string, value float64, step int) error
}

// SinkFunc Adapter to use ordinary function as MetricsSink
type SinkFunc func(name string, value float64, step int) error

func (f SinkFunc) Emit(name string, value float64, step int) error {
	return f(name, value, step)
}

// DiscardSink Drops everything
var DiscardSink MetricsSink = SinkFunc(func(string, float64, int) error { return nil })
