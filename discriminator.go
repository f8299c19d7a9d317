package dcgan

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DiscriminatorNet Abstraction for discriminator part of GAN. It's simple neural network actually.
// Output is one raw logit per sample: no sigmoid should be placed on the last layer.
//
// imageShape - [H, W, C] of each accepted image
//
type DiscriminatorNet struct {
	private    *Network
	imageShape tensor.Shape
}

// Discriminator Constructor for DiscriminatorNet
func Discriminator(imageShape tensor.Shape, layers ...*Layer) *DiscriminatorNet {
	return &DiscriminatorNet{
		private: &Network{
			Name:   "discriminator",
			Layers: layers,
		},
		imageShape: imageShape.Clone(),
	}
}

// ImageShape Returns [H, W, C] of accepted images
func (net *DiscriminatorNet) ImageShape() tensor.Shape {
	return net.imageShape.Clone()
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Statistics See Network.Statistics
func (net *DiscriminatorNet) Statistics() gorgonia.Nodes {
	return net.private.Statistics()
}

// UpdateStatistics See Network.UpdateStatistics
func (net *DiscriminatorNet) UpdateStatistics() error {
	return net.private.UpdateStatistics()
}

// Fwd Builds discriminator application for provided images [n, H, W, C]. Output has shape [n, 1]
func (net *DiscriminatorNet) Fwd(images *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	if images.Dims() != 1+len(net.imageShape) || !images.Shape()[1:].Eq(net.imageShape) {
		return nil, errors.Wrapf(ErrShapeMismatch, "[Discriminator] images must have shape [n %v], got %v", net.imageShape, images.Shape())
	}
	out, err := net.private.Fwd(images, training)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	expected := tensor.Shape{images.Shape()[0], 1}
	if !out.Shape().Eq(expected) {
		return nil, errors.Wrapf(ErrShapeMismatch, "[Discriminator] output must have shape %v, got %v", expected, out.Shape())
	}
	return out, nil
}
