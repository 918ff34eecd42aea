package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Evaluator owns the VM that runs a network's graph for forward
// evaluation, and copies action values out of the graph. It exists so
// that callers which only read predictions, like the policy
// controller, never touch Gorgonia directly.
//
// The wrapped network's graph must contain only the forward pass: an
// Evaluator must never share a network with a graph holding gradient
// nodes.
type Evaluator struct {
	net NeuralNet
	vm  G.VM
}

// NewEvaluator returns an Evaluator for the given network.
func NewEvaluator(net NeuralNet) *Evaluator {
	return &Evaluator{
		net: net,
		vm:  G.NewTapeMachine(net.Graph()),
	}
}

// ActionValues runs the network forward on a batch of flattened
// observations and returns a copy of the predicted action values,
// len(obs)/Features() rows of Outputs() values each.
func (e *Evaluator) ActionValues(obs []float64) ([]float64, error) {
	input := make([]float64, len(obs))
	copy(input, obs)
	if err := e.net.SetInput(input); err != nil {
		return nil, fmt.Errorf("actionvalues: %v", err)
	}

	if err := e.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("actionvalues: could not run graph: %v", err)
	}

	out := e.net.Output().Data().([]float64)
	values := make([]float64, len(out))
	copy(values, out)

	e.vm.Reset()
	return values, nil
}

// Net returns the wrapped network.
func (e *Evaluator) Net() NeuralNet {
	return e.net
}
