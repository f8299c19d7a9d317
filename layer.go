package dcgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// WeightNode - for LayerLinear shape is [out, in], for LayerConvolutional [filters, channels, kernelH, kernelW]
// BiasNode - for LayerLinear shape is [1, out]. Not supported for other types
// ReshapeDims - target dimensions excluding batch dimension (LayerReshape)
// Permute - axes order (LayerPermute), e.g. [0, 3, 1, 2] for NHWC -> NCHW
// DropProb - probability of zeroing an element (LayerDropout), applied in training mode only
// RunningMean, RunningVar - [1, features] statistics used outside of training mode (LayerBatchNorm).
// For LayerBatchNorm WeightNode is scale and BiasNode is shift, both [1, features]
// Momentum, Epsilon - running statistics decay and variance offset (LayerBatchNorm)
//
type Layer struct {
	WeightNode        *gorgonia.Node
	BiasNode          *gorgonia.Node
	Activation        ActivationFunc
	ActivationOptions []Options
	Type              LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int
	Permute      []int
	DropProb     float64

	RunningMean *gorgonia.Node
	RunningVar  *gorgonia.Node
	Momentum    float64
	Epsilon     float64

	batchMean gorgonia.Value
	batchVar  gorgonia.Value
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerDropout
	LayerPermute
	LayerBatchNorm
)

func (t LayerType) String() string {
	switch t {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv2d"
	case LayerMaxpool:
		return "maxpool2d"
	case LayerReshape:
		return "reshape"
	case LayerDropout:
		return "dropout"
	case LayerPermute:
		return "permute"
	case LayerBatchNorm:
		return "batchnorm"
	default:
		return fmt.Sprintf("layer(%d)", uint16(t))
	}
}

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerDropout, LayerPermute}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Initializates feedforward for provided input. Returns non-activated output.
//
// input - Input node. First dimension is treated as batch dimension
// training - whether training-only behaviour (dropout) should be applied
//
func (l *Layer) Fwd(input *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	if input == nil {
		return nil, fmt.Errorf("Input node is nil")
	}
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("WeightNode is nil for layer type '%s'", l.Type)
	}
	batchSize := input.Shape()[0]
	switch l.Type {
	case LayerLinear:
		if input.Dims() != 2 {
			return nil, errors.Wrapf(ErrShapeMismatch, "linear layer expects 2 dimensions, got shape %v", input.Shape())
		}
		if input.Shape()[1] != l.WeightNode.Shape()[1] {
			return nil, errors.Wrapf(ErrShapeMismatch, "linear layer expects %d features, got shape %v", l.WeightNode.Shape()[1], input.Shape())
		}
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err := gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
		if l.BiasNode == nil {
			return out, nil
		}
		if batchSize < 2 {
			out, err = gorgonia.Add(out, l.BiasNode)
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias to non-activated output")
			}
			return out, nil
		}
		out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0})
		if err != nil {
			return nil, errors.Wrapf(err, "Can't add [in broadcast term with batch_size = %d] bias to non-activated output", batchSize)
		}
		return out, nil
	case LayerConvolutional:
		if l.BiasNode != nil {
			return nil, fmt.Errorf("Bias is not supported for layer type '%s'", l.Type)
		}
		if input.Dims() != 4 {
			return nil, errors.Wrapf(ErrShapeMismatch, "conv2d layer expects NCHW input, got shape %v", input.Shape())
		}
		out, err := gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
		return out, nil
	case LayerMaxpool:
		out, err := gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
		return out, nil
	case LayerFlatten:
		out, err := gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return out, nil
	case LayerReshape:
		to := append(tensor.Shape{batchSize}, l.ReshapeDims...)
		if to.TotalSize() != input.Shape().TotalSize() {
			return nil, errors.Wrapf(ErrShapeMismatch, "can't reshape %v to %v", input.Shape(), to)
		}
		out, err := gorgonia.Reshape(input, to)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
		return out, nil
	case LayerDropout:
		if !training || l.DropProb <= 0 {
			return input, nil
		}
		out, err := gorgonia.Dropout(input, l.DropProb)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply dropout")
		}
		return out, nil
	case LayerPermute:
		out, err := gorgonia.Transpose(input, l.Permute...)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't permute input with axes %v", l.Permute)
		}
		return out, nil
	case LayerBatchNorm:
		return l.batchNorm(input, training)
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
}

// Apply Feedforward followed by activation
func (l *Layer) Apply(input *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	nonActivated, err := l.Fwd(input, training)
	if err != nil {
		return nil, err
	}
	if l.Activation == nil {
		return nonActivated, nil
	}
	activated, err := l.Activation(nonActivated, l.ActivationOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply activation function to non-activated output")
	}
	return activated, nil
}
