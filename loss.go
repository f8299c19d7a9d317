package dcgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// BinaryCrossEntropyWithLogits Binary cross entropy between sigmoid(logits) and constant target.
// Logits are raw (unbounded) values: sigmoid is applied internally as
//
//	loss{i} = softplus(x{i}) - t*x{i}
//
// which never evaluates exp() of a large positive number: softplus(-x) is used for t = 1 and softplus(x) for t = 0.
// See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Default reduction is 'mean'
func BinaryCrossEntropyWithLogits(logits *gorgonia.Node, target float64, reduction ...LossReduction) (*gorgonia.Node, error) {
	var perSample *gorgonia.Node
	var err error
	switch target {
	case 1:
		neg, err := gorgonia.Neg(logits)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do -1*x")
		}
		perSample, err = gorgonia.Softplus(neg)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do softplus(-x)")
		}
	case 0:
		perSample, err = gorgonia.Softplus(logits)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do softplus(x)")
		}
	default:
		sp, err := gorgonia.Softplus(logits)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do softplus(x)")
		}
		scaled, err := gorgonia.Mul(logits, gorgonia.NewConstant(target))
		if err != nil {
			return nil, errors.Wrap(err, "Can't do (t*x)")
		}
		perSample, err = gorgonia.Sub(sp, scaled)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do (softplus(x)-t*x)")
		}
	}

	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(perSample)
	case LossReductionMean:
		return gorgonia.Mean(perSample)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// DiscriminatorLoss BCE(ones, real) + BCE(zeros, fake): discriminator should score real samples as 1 and generated as 0
func DiscriminatorLoss(realLogits, fakeLogits *gorgonia.Node) (*gorgonia.Node, error) {
	realLoss, err := BinaryCrossEntropyWithLogits(realLogits, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't compute loss for real samples")
	}
	fakeLoss, err := BinaryCrossEntropyWithLogits(fakeLogits, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't compute loss for generated samples")
	}
	total, err := gorgonia.Add(realLoss, fakeLoss)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	return total, nil
}

// GeneratorLoss BCE(ones, fake): generator wins when discriminator scores generated samples as real
func GeneratorLoss(fakeLogits *gorgonia.Node) (*gorgonia.Node, error) {
	loss, err := BinaryCrossEntropyWithLogits(fakeLogits, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't compute loss for generated samples")
	}
	return loss, nil
}
