package dcgan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func runBatchNorm(t *testing.T, l *Layer, g *gorgonia.ExprGraph, input *gorgonia.Node, training bool) []float64 {
	t.Helper()
	out, err := l.Fwd(input, training)
	if err != nil {
		t.Fatal(err)
	}
	var outVal gorgonia.Value
	gorgonia.Read(out, &outVal)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	return append([]float64(nil), outVal.Data().([]float64)...)
}

func closeTo(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestBatchNormTraining(t *testing.T) {
	g := gorgonia.NewGraph()
	l := batchNormLayer(g, "bn", 2)
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("input"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 6}))))

	// batch mean [2, 4], batch variance [1, 4]
	got := runBatchNorm(t, l, g, input, true)
	a := 1 / math.Sqrt(1+DefaultBatchNormEpsilon)
	b := 2 / math.Sqrt(4+DefaultBatchNormEpsilon)
	if want := []float64{-a, -b, a, b}; !closeTo(got, want, 1e-9) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := l.UpdateStatistics(); err != nil {
		t.Fatal(err)
	}
	m := DefaultBatchNormMomentum
	if want := []float64{(1 - m) * 2, (1 - m) * 4}; !closeTo(l.RunningMean.Value().Data().([]float64), want, 1e-12) {
		t.Fatalf("running mean: expected %v, got %v", want, l.RunningMean.Value().Data())
	}
	if want := []float64{m + (1-m)*1, m + (1-m)*4}; !closeTo(l.RunningVar.Value().Data().([]float64), want, 1e-12) {
		t.Fatalf("running variance: expected %v, got %v", want, l.RunningVar.Value().Data())
	}
}

func TestBatchNormInference(t *testing.T) {
	g := gorgonia.NewGraph()
	l := batchNormLayer(g, "bn", 2)
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("input"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{1, -3}))))

	// running statistics start at mean 0 and variance 1, single sample is fine here
	got := runBatchNorm(t, l, g, input, false)
	s := 1 / math.Sqrt(1+DefaultBatchNormEpsilon)
	if want := []float64{s, -3 * s}; !closeTo(got, want, 1e-9) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := l.UpdateStatistics(); err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 0}; !closeTo(l.RunningMean.Value().Data().([]float64), want, 0) {
		t.Fatalf("running mean must stay untouched without training run, got %v", l.RunningMean.Value().Data())
	}
}

func TestBatchNormRejectsInput(t *testing.T) {
	g := gorgonia.NewGraph()
	l := batchNormLayer(g, "bn", 3)

	single := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 3), gorgonia.WithName("single"))
	if _, err := l.Fwd(single, true); err == nil {
		t.Fatal("expected error for single sample in training mode")
	}
	wrong := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(4, 5), gorgonia.WithName("wrong"))
	if _, err := l.Fwd(wrong, true); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestTrainerStepBatchNormGenerator(t *testing.T) {
	g := gorgonia.NewGraph()
	imageShape := tensor.Shape{8, 8, 1}
	rng := rand.New(rand.NewSource(5))
	gen, err := DenseGenerator(g, rng, 16, imageShape, []int{12}, 0.2, true)
	if err != nil {
		t.Fatal(err)
	}
	// hidden Linear (no bias), scale, shift, output Linear weight and bias
	if n := len(gen.Learnables()); n != 5 {
		t.Fatalf("generator must have 5 learnables, got %d", n)
	}
	if n := len(gen.Statistics()); n != 2 {
		t.Fatalf("generator must have running mean and variance, got %d nodes", n)
	}
	dis, err := DenseDiscriminator(g, rng, imageShape, []int{12}, 0, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(dis.Statistics()); n != 0 {
		t.Fatalf("discriminator has no batch normalization, got %d statistics nodes", n)
	}
	trainer, err := NewTrainer(g, gen, dis, TrainerConfig{
		BatchSize:              4,
		GeneratorOptimizer:     DefaultOptimizerConfig(),
		DiscriminatorOptimizer: DefaultOptimizerConfig(),
		Rand:                   rand.New(rand.NewSource(6)),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer trainer.Close()

	bn := gen.private.Layers[1]
	if bn.Type != LayerBatchNorm {
		t.Fatalf("expected batchnorm as second generator layer, got %s", bn.Type)
	}
	generatorBefore := SnapshotValues(trainer.GeneratorParams())
	for step := 0; step < 2; step++ {
		losses, err := trainer.Step(blankImages(4, 8, 8, 1), step)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if !finiteNonNegative(losses.Generator) || !finiteNonNegative(losses.Discriminator) {
			t.Fatalf("step %d: losses must be finite and non-negative, got %+v", step, losses)
		}
	}
	if i, ok := changedEverywhere(generatorBefore, SnapshotValues(trainer.GeneratorParams())); !ok {
		t.Fatalf("generator parameter '%s' has not been updated", trainer.GeneratorParams()[i].Name())
	}
	for _, v := range bn.RunningVar.Value().Data().([]float64) {
		if v == 1 {
			t.Fatal("running variance has not been updated")
		}
	}
}
