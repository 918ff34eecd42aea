package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Default layer sizes of the convolutional Q-network. Two
// convolutional stages extract local spatial patterns over the input
// channels; two fully connected stages collapse the result to one
// value per action.
const (
	conv1Channels = 16
	conv2Channels = 32
	hiddenSize    = 256
)

// convQNet implements a convolutional action-value network. The input
// is a (batch, channels, height, width) occupancy tensor and the
// output is a (batch, actions) matrix of action values.
type convQNet struct {
	g     *G.ExprGraph
	convs []Layer
	fcs   []Layer
	input *G.Node

	channels   int
	height     int
	width      int
	batchSize  int
	numActions int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewConvQNet creates and returns a new convolutional action-value
// network on graph g. The network maps a (batch, channels, height,
// width) input through two 3x3 SAME convolutions (ReLU) and a hidden
// fully connected layer (ReLU) to actions output values. The init
// parameter determines the weight initialization scheme.
func NewConvQNet(channels, height, width, batch, actions int,
	g *G.ExprGraph, init G.InitWFn) (NeuralNet, error) {
	if channels < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("newconvqnet: invalid input shape "+
			"(%v, %v, %v)", channels, height, width)
	}
	if batch < 1 {
		return nil, fmt.Errorf("newconvqnet: batch size must be positive")
	}
	if actions < 1 {
		return nil, fmt.Errorf("newconvqnet: must output at least one " +
			"action value")
	}

	input := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(batch, channels, height, width),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	convs := []Layer{
		newConvLayer(g, channels, conv1Channels, ReLU(), init, "Conv1"),
		newConvLayer(g, conv1Channels, conv2Channels, ReLU(), init, "Conv2"),
	}
	flat := conv2Channels * height * width
	fcs := []Layer{
		newFCLayer(g, flat, hiddenSize, ReLU(), init, "FC1"),
		newFCLayer(g, hiddenSize, actions, Identity(), init, "Out"),
	}

	net := &convQNet{
		g:          g,
		convs:      convs,
		fcs:        fcs,
		input:      input,
		channels:   channels,
		height:     height,
		width:      width,
		batchSize:  batch,
		numActions: actions,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newconvqnet: could not compute forward "+
			"pass: %v", err)
	}

	return net, nil
}

// fwd adds the forward pass on the input node to the graph
func (c *convQNet) fwd(input *G.Node) error {
	pred := input
	var err error

	for i, l := range c.convs {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: conv layer %v: %v", i, err)
		}
	}

	// Collapse the spatial feature maps for the fully connected stages
	flat := conv2Channels * c.height * c.width
	pred, err = G.Reshape(pred, tensor.Shape{c.batchSize, flat})
	if err != nil {
		return fmt.Errorf("fwd: could not flatten conv output: %v", err)
	}

	for i, l := range c.fcs {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: fc layer %v: %v", i, err)
		}
	}

	c.prediction = pred
	G.Read(c.prediction, &c.predVal)

	return nil
}

// Graph returns the computational graph of the network.
func (c *convQNet) Graph() *G.ExprGraph {
	return c.g
}

// CloneWithBatch clones the network into a fresh graph with a new
// input batch size. Parameter values are copied.
func (c *convQNet) CloneWithBatch(batch int) (NeuralNet, error) {
	if batch < 1 {
		return nil, fmt.Errorf("clonewithbatch: batch size must be positive")
	}
	g := G.NewGraph()

	input := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(batch, c.channels, c.height, c.width),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	convs := make([]Layer, len(c.convs))
	for i := range c.convs {
		convs[i] = c.convs[i].CloneTo(g)
	}
	fcs := make([]Layer, len(c.fcs))
	for i := range c.fcs {
		fcs[i] = c.fcs[i].CloneTo(g)
	}

	net := &convQNet{
		g:          g,
		convs:      convs,
		fcs:        fcs,
		input:      input,
		channels:   c.channels,
		height:     c.height,
		width:      c.width,
		batchSize:  batch,
		numActions: c.numActions,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (c *convQNet) BatchSize() int {
	return c.batchSize
}

// Features returns the number of features in a single flattened
// observation vector that the network takes as input.
func (c *convQNet) Features() int {
	return c.channels * c.height * c.width
}

// Outputs returns the number of action values predicted per sample
func (c *convQNet) Outputs() int {
	return c.numActions
}

// SetInput sets the value of the input node before running the
// forward pass. The input is a batch of flattened (channels, height,
// width) tensors.
func (c *convQNet) SetInput(input []float64) error {
	if len(input) != c.Features()*c.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs "+
			"\n\twant(%v)\n\thave(%v)", c.Features()*c.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(c.input.Shape()...),
	)
	return G.Let(c.input, inputTensor)
}

// Set copies the parameter values of source into the network
func (c *convQNet) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := c.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: architecture mismatch \n\twant(%v "+
			"learnables)\n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i, dest := range nodes {
		cloned := sourceNodes[i].Clone()
		err := G.Let(dest, cloned.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the parameters of the network to a Polyak average
// between its current parameters and those of source:
// dest <- (1 - tau)*dest + tau*source.
func (c *convQNet) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := c.Learnables()
	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes of the network
func (c *convQNet) Learnables() G.Nodes {
	// Lazy instantiation
	if c.learnables == nil {
		c.learnables = c.computeLearnables()
	}
	return c.learnables
}

func (c *convQNet) computeLearnables() G.Nodes {
	layers := append([]Layer{}, c.convs...)
	layers = append(layers, c.fcs...)

	learnables := make(G.Nodes, 0, 2*len(layers))
	for _, l := range layers {
		learnables = append(learnables, l.Weights())
		if bias := l.Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return learnables
}

// Model returns the learnable nodes with their gradients.
func (c *convQNet) Model() []G.ValueGrad {
	// Lazy instantiation
	if c.model == nil {
		model := make([]G.ValueGrad, 0, len(c.Learnables()))
		for _, node := range c.Learnables() {
			model = append(model, node)
		}
		c.model = model
	}
	return c.model
}

// Output returns the network output from the last run of the graph.
func (c *convQNet) Output() G.Value {
	return c.predVal
}

// Prediction returns the node of the computational graph holding the
// network output
func (c *convQNet) Prediction() *G.Node {
	return c.prediction
}

// GobEncode implements the gob.GobEncoder interface. The encoding
// holds the architecture dimensions followed by every parameter
// tensor, so a round trip restores a network producing identical
// outputs.
func (c *convQNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	dims := []int{c.channels, c.height, c.width, c.batchSize, c.numActions}
	if err := enc.Encode(dims); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode dimensions: %v",
			err)
	}

	for i, learnable := range c.Learnables() {
		t, ok := learnable.Value().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("gobencode: learnable %v is not a "+
				"dense tensor", i)
		}
		if err := enc.Encode(t); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode learnable "+
				"%v: %v", i, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (c *convQNet) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var dims []int
	if err := dec.Decode(&dims); err != nil {
		return fmt.Errorf("gobdecode: could not decode dimensions: %v", err)
	}
	if len(dims) != 5 {
		return fmt.Errorf("gobdecode: invalid dimension count "+
			"\n\twant(5)\n\thave(%v)", len(dims))
	}

	g := G.NewGraph()
	newNet, err := NewConvQNet(dims[0], dims[1], dims[2], dims[3], dims[4],
		g, G.Zeroes())
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct network: %v", err)
	}
	net := newNet.(*convQNet)

	for i, learnable := range net.Learnables() {
		var t tensor.Dense
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("gobdecode: could not decode learnable "+
				"%v: %v", i, err)
		}
		if err := G.Let(learnable, &t); err != nil {
			return fmt.Errorf("gobdecode: could not set learnable %v: %v",
				i, err)
		}
	}

	*c = *net
	return nil
}
