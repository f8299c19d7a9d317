package dcgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Network Abstraction for neural network.
//
// Name - prefix for names of produced nodes
// Layers - simple sequence of layers
//
// Network does not own its output: every call of Fwd builds a new application of the same
// learnables, so one network could be applied to several inputs on the same graph.
//
type Network struct {
	Name   string
	Layers []*Layer
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
			if l.BiasNode != nil {
				learnables = append(learnables, l.BiasNode)
			}
		}
	}
	return learnables
}

// Statistics Returns non-learnable state nodes (running statistics of batch normalization)
func (net *Network) Statistics() gorgonia.Nodes {
	var stats gorgonia.Nodes
	for _, l := range net.Layers {
		if l == nil || l.Type != LayerBatchNorm {
			continue
		}
		if l.RunningMean != nil {
			stats = append(stats, l.RunningMean)
		}
		if l.RunningVar != nil {
			stats = append(stats, l.RunningVar)
		}
	}
	return stats
}

// Fwd Initializates feedforward for provided input and returns activated output of last layer
//
// input - Input node
// training - training mode flag (see Layer.Fwd)
//
func (net *Network) Fwd(input *gorgonia.Node, training bool) (*gorgonia.Node, error) {
	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("Network must have one layer atleast")
	}
	lastActivatedLayer := input
	for i := range net.Layers {
		if net.Layers[i] == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		layerActivated, err := net.Layers[i].Apply(lastActivatedLayer, training)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s, Layer #%d]", net.name(), i)
		}
		lastActivatedLayer = layerActivated
	}
	return lastActivatedLayer, nil
}

// UpdateStatistics Updates running statistics of normalization layers after a training run
func (net *Network) UpdateStatistics() error {
	for i, l := range net.Layers {
		if l == nil {
			continue
		}
		if err := l.UpdateStatistics(); err != nil {
			return errors.Wrapf(err, "[%s, Layer #%d]", net.name(), i)
		}
	}
	return nil
}

func (net *Network) name() string {
	if net.Name != "" {
		return net.Name
	}
	return "network"
}
