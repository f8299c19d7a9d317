package dcgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	DefaultBatchNormMomentum = 0.99
	DefaultBatchNormEpsilon  = 1e-3
)

// batchNorm Normalizes features of [n, features] input:
//
//	training: (x - mean(batch)) / sqrt(var(batch) + eps) * scale + shift
//	otherwise: same with running statistics
//
// Batch statistics of the last training run are kept for UpdateStatistics
func (l *Layer) batchNorm(input *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	if l.BiasNode == nil || l.RunningMean == nil || l.RunningVar == nil {
		return nil, fmt.Errorf("batchnorm layer needs shift and running statistics")
	}
	if input.Dims() != 2 || input.Shape()[1] != l.WeightNode.Shape()[1] {
		return nil, errors.Wrapf(ErrShapeMismatch, "batchnorm layer expects [n, %d], got shape %v", l.WeightNode.Shape()[1], input.Shape())
	}
	features := input.Shape()[1]
	eps := l.Epsilon
	if eps <= 0 {
		eps = DefaultBatchNormEpsilon
	}

	mean, variance := l.RunningMean, l.RunningVar
	var err error
	if training {
		if input.Shape()[0] < 2 {
			return nil, fmt.Errorf("batchnorm needs at least 2 samples in training mode, got %d", input.Shape()[0])
		}
		if mean, err = featureMean(input, features); err != nil {
			return nil, errors.Wrap(err, "Can't compute batch mean")
		}
	}
	centered, err := gorgonia.BroadcastSub(input, mean, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't center input")
	}
	if training {
		sq, err := gorgonia.Square(centered)
		if err != nil {
			return nil, errors.Wrap(err, "Can't square centered input")
		}
		if variance, err = featureMean(sq, features); err != nil {
			return nil, errors.Wrap(err, "Can't compute batch variance")
		}
		gorgonia.Read(mean, &l.batchMean)
		gorgonia.Read(variance, &l.batchVar)
	}
	shifted, err := gorgonia.Add(variance, gorgonia.NewConstant(eps))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (var+eps)")
	}
	std, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(var+eps)")
	}
	normalized, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't normalize input")
	}
	scaled, err := gorgonia.BroadcastHadamardProd(normalized, l.WeightNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't scale normalized input")
	}
	out, err := gorgonia.BroadcastAdd(scaled, l.BiasNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't shift normalized input")
	}
	return out, nil
}

// UpdateStatistics Moves running statistics towards batch statistics of the last training run.
// Does nothing for other layer types or before the first run
func (l *Layer) UpdateStatistics() error {
	if l.Type != LayerBatchNorm || l.batchMean == nil || l.batchVar == nil {
		return nil
	}
	momentum := l.Momentum
	if momentum <= 0 {
		momentum = DefaultBatchNormMomentum
	}
	for _, pair := range []struct {
		running *gorgonia.Node
		batch   gorgonia.Value
	}{
		{l.RunningMean, l.batchMean},
		{l.RunningVar, l.batchVar},
	} {
		running, ok := pair.running.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("running statistics of node '%s' must be float64", pair.running.Name())
		}
		batch, ok := pair.batch.Data().([]float64)
		if !ok || len(batch) != len(running) {
			return errors.Wrapf(ErrShapeMismatch, "batch statistics do not fit node '%s'", pair.running.Name())
		}
		for i := range running {
			running[i] = momentum*running[i] + (1-momentum)*batch[i]
		}
	}
	return nil
}

// featureMean Mean over batch dimension, shaped [1, features]
func featureMean(x *gorgonia.Node, features int) (*gorgonia.Node, error) {
	m, err := gorgonia.Mean(x, 0)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(m, tensor.Shape{1, features})
}

func batchNormLayer(g *gorgonia.ExprGraph, name string, features int) *Layer {
	return &Layer{
		WeightNode:  newParam(g, name+"_scale", Ones(1, features)),
		BiasNode:    newParam(g, name+"_shift", Zeros(1, features)),
		RunningMean: newParam(g, name+"_running_mean", Zeros(1, features)),
		RunningVar:  newParam(g, name+"_running_var", Ones(1, features)),
		Type:        LayerBatchNorm,
		Momentum:    DefaultBatchNormMomentum,
		Epsilon:     DefaultBatchNormEpsilon,
	}
}
