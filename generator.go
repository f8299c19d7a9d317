package dcgan

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GeneratorNet Abstraction for generator part of GAN: noise vector -> image tensor
//
// noiseDim - size of each noise vector
// imageShape - [H, W, C] of each produced image
//
type GeneratorNet struct {
	private    *Network
	noiseDim   int
	imageShape tensor.Shape
}

// Generator Constructor for GeneratorNet
func Generator(noiseDim int, imageShape tensor.Shape, layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{
		private: &Network{
			Name:   "generator",
			Layers: layers,
		},
		noiseDim:   noiseDim,
		imageShape: imageShape.Clone(),
	}
}

// NoiseDim Returns size of noise vector
func (net *GeneratorNet) NoiseDim() int {
	return net.noiseDim
}

// ImageShape Returns [H, W, C] of generated images
func (net *GeneratorNet) ImageShape() tensor.Shape {
	return net.imageShape.Clone()
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Statistics See Network.Statistics
func (net *GeneratorNet) Statistics() gorgonia.Nodes {
	return net.private.Statistics()
}

// UpdateStatistics See Network.UpdateStatistics
func (net *GeneratorNet) UpdateStatistics() error {
	return net.private.UpdateStatistics()
}

// Fwd Builds generator application for provided noise [n, noiseDim]. Output has shape [n, H, W, C]
func (net *GeneratorNet) Fwd(noise *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	if noise.Dims() != 2 || noise.Shape()[1] != net.noiseDim {
		return nil, errors.Wrapf(ErrShapeMismatch, "[Generator] noise must have shape [n, %d], got %v", net.noiseDim, noise.Shape())
	}
	out, err := net.private.Fwd(noise, training)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	expected := append(tensor.Shape{noise.Shape()[0]}, net.imageShape...)
	if !out.Shape().Eq(expected) {
		return nil, errors.Wrapf(ErrShapeMismatch, "[Generator] output must have shape %v, got %v", expected, out.Shape())
	}
	return out, nil
}
