package dcgan

import (
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// GlorotNormal Returns dense of provided shape filled with values drawn from N(0, 2/(fanIn+fanOut)).
//
// Gorgonia's own initializers seed from the clock, so weights are drawn from caller's source instead:
// same source state gives same networks.
//
func GlorotNormal(rng *rand.Rand, shape ...int) *tensor.Dense {
	fanIn, fanOut := fans(shape)
	stdev := math.Sqrt(2.0 / float64(fanIn+fanOut))
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64() * stdev
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Zeros Returns dense of provided shape filled with zeros
func Zeros(shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Ones Returns dense of provided shape filled with ones
func Ones(shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = 1
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// fans weights are stored as [out, in] or [filters, channels, kH, kW]
func fans(shape []int) (fanIn, fanOut int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	case 2:
		return shape[1], shape[0]
	default:
		receptive := tensor.Shape(shape[2:]).TotalSize()
		return shape[1] * receptive, shape[0] * receptive
	}
}
