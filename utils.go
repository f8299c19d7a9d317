package dcgan

import (
	"fmt"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with standard normally distributed float64 values
//
// rng - source of randomness. If nil then global source of math/rand is used
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func NormRandDense(rng *rand.Rand, batchSize, n int) *tensor.Dense {
	norm := rand.NormFloat64
	if rng != nil {
		norm = rng.NormFloat64
	}
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = norm()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// scalarValue Extracts float64 out of scalar (or single-element) value
func scalarValue(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("value is nil")
	}
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
		return 0, fmt.Errorf("expected single element, got %d", len(data))
	default:
		return 0, fmt.Errorf("unexpected value type %T", data)
	}
}

// SnapshotValues Returns deep copy of float64 values held by nodes
func SnapshotValues(nodes gorgonia.Nodes) [][]float64 {
	snapshot := make([][]float64, len(nodes))
	for i, n := range nodes {
		if n.Value() == nil {
			continue
		}
		data, ok := n.Value().Data().([]float64)
		if !ok {
			continue
		}
		snapshot[i] = append([]float64(nil), data...)
	}
	return snapshot
}
