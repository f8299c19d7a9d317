package dcgan

import (
	"math"
	"math/rand"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func blankImages(n, h, w, c int) *tensor.Dense {
	return tensor.New(tensor.WithShape(n, h, w, c), tensor.WithBacking(make([]float64, n*h*w*c)))
}

// denseNetworks Builds small dense generator and discriminator without dropout (deterministic given seed)
func denseNetworks(t *testing.T, g *gorgonia.ExprGraph, seed int64, noiseDim int, imageShape tensor.Shape) (*GeneratorNet, *DiscriminatorNet) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	gen, err := DenseGenerator(g, rng, noiseDim, imageShape, []int{16}, 0.2, false)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	dis, err := DenseDiscriminator(g, rng, imageShape, []int{16}, 0, 0.2)
	if err != nil {
		t.Fatalf("discriminator: %v", err)
	}
	return gen, dis
}

func newTestTrainer(t *testing.T, seed int64, batchSize, noiseDim int, imageShape tensor.Shape, sink MetricsSink) *Trainer {
	t.Helper()
	g := gorgonia.NewGraph()
	gen, dis := denseNetworks(t, g, seed, noiseDim, imageShape)
	trainer, err := NewTrainer(g, gen, dis, TrainerConfig{
		BatchSize:              batchSize,
		GeneratorOptimizer:     DefaultOptimizerConfig(),
		DiscriminatorOptimizer: DefaultOptimizerConfig(),
		Rand:                   rand.New(rand.NewSource(seed + 1)),
	}, sink)
	if err != nil {
		t.Fatalf("trainer: %v", err)
	}
	t.Cleanup(func() { trainer.Close() })
	return trainer
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func equalSnapshots(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
