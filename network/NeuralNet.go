// Package network implements the value-network function approximators
// used by the learning core, built on Gorgonia.
package network

import (
	"encoding/gob"

	G "gorgonia.org/gorgonia"
)

// NeuralNet is the capability contract the learning core requires of
// a value network: forward evaluation over a computational graph,
// access to the trainable parameter set, and wholesale parameter
// copying between instances of the same architecture (used for target
// network synchronization and checkpointing). Any architecture
// satisfying this interface is substitutable.
//
// A NeuralNet populates a Gorgonia graph but owns no VM. An external
// VM runs the graph; the VM must be run before reading Output.
type NeuralNet interface {
	// Graph returns the computational graph holding the network
	Graph() *G.ExprGraph

	// CloneWithBatch clones the network into a fresh graph with a new
	// input batch size, copying the current parameter values
	CloneWithBatch(int) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the value of the input node before a forward pass
	SetInput([]float64) error

	// Set copies the full parameter set of another network of the
	// same architecture into this one (hard sync)
	Set(NeuralNet) error

	// Polyak sets the parameters to a Polyak average between the
	// current parameters and those of another network (soft sync)
	Polyak(NeuralNet, float64) error

	// Learnables returns the trainable parameter nodes
	Learnables() G.Nodes

	// Model returns the trainable parameters with their gradients
	Model() []G.ValueGrad

	// Output returns the value of the prediction node after the last
	// run of the graph
	Output() G.Value

	// Prediction returns the graph node holding the network output
	Prediction() *G.Node

	gob.GobEncoder
	gob.GobDecoder
}

// Layer is a single stage of a feedforward network.
type Layer interface {
	fwd(*G.Node) (*G.Node, error)

	// CloneTo clones the layer, parameter values included, into a new
	// computational graph
	CloneTo(*G.ExprGraph) Layer

	Weights() *G.Node
	Bias() *G.Node
}
