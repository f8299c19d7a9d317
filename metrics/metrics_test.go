package metrics

import (
	"bytes"
	"encoding/csv"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dcgan "github.com/LdDl/dcgan-go"
	"github.com/pkg/errors"
)

// compile-time checks: every sink fits the trainer
var (
	_ dcgan.MetricsSink = (*Recorder)(nil)
	_ dcgan.MetricsSink = (*LogSink)(nil)
	_ dcgan.MetricsSink = (*CSVSink)(nil)
	_ dcgan.MetricsSink = (*RunSinks)(nil)
	_ dcgan.MetricsSink = (*Summary)(nil)
	_ dcgan.MetricsSink = Multi(nil)
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.Emit(dcgan.MetricGeneratorLoss, 1.5, 0)
	rec.Emit(dcgan.MetricDiscriminatorLoss, 0.7, 0)
	rec.Emit(dcgan.MetricGeneratorLoss, 1.2, 1)

	if n := len(rec.Records()); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}
	series := rec.Series(dcgan.MetricGeneratorLoss)
	if len(series) != 2 || series[0].Value != 1.5 || series[1].Step != 1 {
		t.Fatalf("unexpected series %+v", series)
	}
	names := rec.Names()
	if len(names) != 2 || names[0] != dcgan.MetricGeneratorLoss || names[1] != dcgan.MetricDiscriminatorLoss {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf, "", 0), 2)
	for step := 0; step < 4; step++ {
		sink.Emit(dcgan.MetricGeneratorLoss, 0.5, step)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected every second step to be logged, got %q", buf.String())
	}
	if lines[1] != "step=2 generator loss=0.500000" {
		t.Fatalf("unexpected line %q", lines[1])
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRunSinksSeparateDirectories(t *testing.T) {
	root := t.TempDir()
	sinks, err := NewRunSinks(root, "run1")
	if err != nil {
		t.Fatal(err)
	}
	sinks.Emit(dcgan.MetricGeneratorLoss, 0.25, 3)
	sinks.Emit(dcgan.MetricDiscriminatorLoss, 1.5, 3)
	if err := sinks.Emit("accuracy", 1, 3); err == nil {
		t.Fatal("unknown metric must be rejected")
	}
	if err := sinks.Close(); err != nil {
		t.Fatal(err)
	}

	generatorPath := filepath.Join(root, "run1", GeneratorDir, scalarsFile)
	discriminatorPath := filepath.Join(root, "run1", DiscriminatorDir, scalarsFile)
	if generatorPath == discriminatorPath {
		t.Fatal("networks must have distinct directories")
	}
	rows := readRows(t, generatorPath)
	if len(rows) != 2 || rows[1][0] != "3" || rows[1][1] != dcgan.MetricGeneratorLoss || rows[1][2] != "0.25" {
		t.Fatalf("unexpected generator rows %v", rows)
	}
	rows = readRows(t, discriminatorPath)
	if len(rows) != 2 || rows[1][1] != dcgan.MetricDiscriminatorLoss || rows[1][2] != "1.5" {
		t.Fatalf("unexpected discriminator rows %v", rows)
	}
}

func TestMulti(t *testing.T) {
	first, last := NewRecorder(), NewRecorder()
	failure := errors.New("broken")
	m := Multi{first, sinkFunc(func(string, float64, int) error { return failure }), last}
	if err := m.Emit("x", 1, 0); !errors.Is(err, failure) {
		t.Fatalf("expected failure, got %v", err)
	}
	if len(first.Records()) != 1 || len(last.Records()) != 0 {
		t.Fatal("fan-out must stop at first failure")
	}
}

type sinkFunc func(name string, value float64, step int) error

func (f sinkFunc) Emit(name string, value float64, step int) error { return f(name, value, step) }

func TestSummary(t *testing.T) {
	s := NewSummary(3)
	for i, v := range []float64{100, 1, 2, 3} {
		s.Emit("loss", v, i)
	}
	s.Emit("other", 5, 0)
	stats := s.Stats()
	if len(stats) != 2 || stats[0].Name != "loss" || stats[1].Name != "other" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	loss := stats[0]
	if loss.Count != 3 || loss.Last != 3 || math.Abs(loss.Mean-2) > 1e-12 || math.Abs(loss.StdDev-1) > 1e-12 {
		t.Fatalf("unexpected loss stats %+v", loss)
	}
	if stats[1].Mean != 5 || stats[1].StdDev != 0 {
		t.Fatalf("unexpected single value stats %+v", stats[1])
	}
}
