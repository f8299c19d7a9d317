package dcgan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DenseGenerator Builds fully-connected generator on provided graph:
//
//	noise [n, noiseDim] -> (Linear [+ BatchNorm] + LeakyReLU) x len(hidden) -> Linear + Tanh -> Reshape [n, H, W, C]
//
// Weights are drawn from rng (Glorot normal), biases start at zero.
// batchNorm - insert batch normalization between every hidden Linear and its activation
//
func DenseGenerator(g *gorgonia.ExprGraph, rng *rand.Rand, noiseDim int, imageShape tensor.Shape, hidden []int, alpha float64, batchNorm bool) (*GeneratorNet, error) {
	if err := checkImageShape(imageShape); err != nil {
		return nil, err
	}
	if noiseDim <= 0 {
		return nil, fmt.Errorf("noise dimension must be positive, got %d", noiseDim)
	}
	layers := make([]*Layer, 0, len(hidden)+2)
	prev := noiseDim
	for i, h := range hidden {
		if h <= 0 {
			return nil, fmt.Errorf("hidden size #%d must be positive, got %d", i, h)
		}
		if !batchNorm {
			layers = append(layers, linearLayer(g, rng, fmt.Sprintf("generator_%d", i), prev, h, LeakyReLU, alpha))
			prev = h
			continue
		}
		// bias of Linear is redundant before normalization
		linear := &Layer{
			WeightNode: newParam(g, fmt.Sprintf("generator_%d_w", i), GlorotNormal(rng, h, prev)),
			Type:       LayerLinear,
		}
		norm := batchNormLayer(g, fmt.Sprintf("generator_bn%d", i), h)
		norm.Activation = LeakyReLU
		if alpha != 0 {
			norm.ActivationOptions = []Options{{Alpha: alpha}}
		}
		layers = append(layers, linear, norm)
		prev = h
	}
	layers = append(layers,
		linearLayer(g, rng, fmt.Sprintf("generator_%d", len(hidden)), prev, imageShape.TotalSize(), Tanh, 0),
		&Layer{Type: LayerReshape, ReshapeDims: imageShape.Clone()},
	)
	return Generator(noiseDim, imageShape, layers...), nil
}

// DenseDiscriminator Builds fully-connected discriminator on provided graph:
//
//	images [n, H, W, C] -> Flatten -> (Linear + LeakyReLU + Dropout) x len(hidden) -> Linear -> logits [n, 1]
//
func DenseDiscriminator(g *gorgonia.ExprGraph, rng *rand.Rand, imageShape tensor.Shape, hidden []int, dropout, alpha float64) (*DiscriminatorNet, error) {
	if err := checkImageShape(imageShape); err != nil {
		return nil, err
	}
	layers := []*Layer{{Type: LayerFlatten}}
	prev := imageShape.TotalSize()
	for i, h := range hidden {
		if h <= 0 {
			return nil, fmt.Errorf("hidden size #%d must be positive, got %d", i, h)
		}
		layers = append(layers, linearLayer(g, rng, fmt.Sprintf("discriminator_%d", i), prev, h, LeakyReLU, alpha))
		if dropout > 0 {
			layers = append(layers, &Layer{Type: LayerDropout, DropProb: dropout})
		}
		prev = h
	}
	layers = append(layers, linearLayer(g, rng, fmt.Sprintf("discriminator_%d", len(hidden)), prev, 1, NoActivation, 0))
	return Discriminator(imageShape, layers...), nil
}

// ConvDiscriminator Builds DCGAN discriminator on provided graph:
//
//	images [n, H, W, C] -> NCHW -> Conv5x5/2(64) + LeakyReLU + Dropout -> Conv5x5/2(128) + LeakyReLU + Dropout -> Flatten -> Linear -> logits [n, 1]
//
func ConvDiscriminator(g *gorgonia.ExprGraph, rng *rand.Rand, imageShape tensor.Shape, dropout, alpha float64) (*DiscriminatorNet, error) {
	if err := checkImageShape(imageShape); err != nil {
		return nil, err
	}
	height, width, channels := imageShape[0], imageShape[1], imageShape[2]
	layers := []*Layer{{Type: LayerPermute, Permute: []int{0, 3, 1, 2}}}
	filters := []int{64, 128}
	for i, f := range filters {
		wShape := []int{f, channels, 5, 5}
		layers = append(layers, &Layer{
			WeightNode:        newParam(g, fmt.Sprintf("discriminator_w%d", i), GlorotNormal(rng, wShape...)),
			Type:              LayerConvolutional,
			Activation:        LeakyReLU,
			ActivationOptions: []Options{{Alpha: alpha}},
			KernelHeight:      5,
			KernelWidth:       5,
			Padding:           []int{2, 2},
			Stride:            []int{2, 2},
			Dilation:          []int{1, 1},
		})
		if dropout > 0 {
			layers = append(layers, &Layer{Type: LayerDropout, DropProb: dropout})
		}
		height, width, channels = convOutSize(height, 5, 2, 2), convOutSize(width, 5, 2, 2), f
	}
	layers = append(layers,
		&Layer{Type: LayerFlatten},
		linearLayer(g, rng, fmt.Sprintf("discriminator_%d", len(filters)), height*width*channels, 1, NoActivation, 0),
	)
	return Discriminator(imageShape, layers...), nil
}

func linearLayer(g *gorgonia.ExprGraph, rng *rand.Rand, name string, in, out int, activation ActivationFunc, alpha float64) *Layer {
	l := &Layer{
		WeightNode: newParam(g, name+"_w", GlorotNormal(rng, out, in)),
		BiasNode:   newParam(g, name+"_b", Zeros(1, out)),
		Type:       LayerLinear,
		Activation: activation,
	}
	if alpha != 0 {
		l.ActivationOptions = []Options{{Alpha: alpha}}
	}
	return l
}

func newParam(g *gorgonia.ExprGraph, name string, value *tensor.Dense) *gorgonia.Node {
	shape := value.Shape().Clone()
	return gorgonia.NewTensor(g, gorgonia.Float64, shape.Dims(), gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithValue(value))
}

func convOutSize(in, kernel, pad, stride int) int {
	return (in+2*pad-kernel)/stride + 1
}

func checkImageShape(imageShape tensor.Shape) error {
	if len(imageShape) != 3 || imageShape.TotalSize() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "image shape must be [H, W, C], got %v", imageShape)
	}
	for _, d := range imageShape {
		if d <= 0 {
			return errors.Wrapf(ErrShapeMismatch, "image shape must be [H, W, C], got %v", imageShape)
		}
	}
	return nil
}
