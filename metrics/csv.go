package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	dcgan "github.com/LdDl/dcgan-go"
	"github.com/pkg/errors"
)

const (
	GeneratorDir     = "gen_train"
	DiscriminatorDir = "disc_train"
	scalarsFile      = "scalars.csv"
)

// CSVSink Appends "step,name,value" rows to a file
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink Creates (or truncates) file at path, creating parent directories
func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "Can't create directory for '%s'", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create '%s'", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "name", "value"}); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "Can't write header")
	}
	return &CSVSink{f: f, w: w}, nil
}

func (s *CSVSink) Emit(name string, value float64, step int) error {
	if err := s.w.Write([]string{strconv.Itoa(step), name, strconv.FormatFloat(value, 'g', -1, 64)}); err != nil {
		return errors.Wrap(err, "Can't write row")
	}
	s.w.Flush()
	return s.w.Error()
}

// Close Flushes and closes file
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// RunSinks Per-network sinks of one run:
//
//	<root>/<runID>/gen_train/scalars.csv  - generator loss
//	<root>/<runID>/disc_train/scalars.csv - discriminator loss
//
type RunSinks struct {
	Dir           string
	generator     *CSVSink
	discriminator *CSVSink
}

// NewRunSinks Creates run directory with one sink per network
func NewRunSinks(root, runID string) (*RunSinks, error) {
	dir := filepath.Join(root, runID)
	generator, err := NewCSVSink(filepath.Join(dir, GeneratorDir, scalarsFile))
	if err != nil {
		return nil, err
	}
	discriminator, err := NewCSVSink(filepath.Join(dir, DiscriminatorDir, scalarsFile))
	if err != nil {
		generator.Close()
		return nil, err
	}
	return &RunSinks{
		Dir:           dir,
		generator:     generator,
		discriminator: discriminator,
	}, nil
}

// Emit Routes value to the sink of the network it belongs to
func (r *RunSinks) Emit(name string, value float64, step int) error {
	switch name {
	case dcgan.MetricGeneratorLoss:
		return r.generator.Emit(name, value, step)
	case dcgan.MetricDiscriminatorLoss:
		return r.discriminator.Emit(name, value, step)
	default:
		return errors.Errorf("metric '%s' does not belong to any network", name)
	}
}

// Close Closes both sinks
func (r *RunSinks) Close() error {
	errGenerator := r.generator.Close()
	errDiscriminator := r.discriminator.Close()
	if errGenerator != nil {
		return errGenerator
	}
	return errDiscriminator
}
