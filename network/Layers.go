package network

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feedforward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))
	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))
	}
	if f.act == nil || f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// CloneTo clones the fcLayer to a new computational graph
func (f *fcLayer) CloneTo(g *G.ExprGraph) Layer {
	var newBias *G.Node
	if f.bias != nil {
		newBias = f.bias.CloneTo(g)
	}
	return &fcLayer{
		weights: f.weights.CloneTo(g),
		bias:    newBias,
		act:     f.act,
	}
}

func (f *fcLayer) Weights() *G.Node {
	return f.weights
}

func (f *fcLayer) Bias() *G.Node {
	return f.bias
}

// newFCLayer creates a fully connected layer with in input features
// and out output features on graph g.
func newFCLayer(g *G.ExprGraph, in, out int, act *Activation,
	init G.InitWFn, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithName(name+"B"),
		G.WithInit(G.Zeroes()),
	)
	return &fcLayer{weights: weights, bias: bias, act: act}
}

// convLayer implements a 2D convolutional layer. The kernel node has
// shape (outChannels, inChannels, kernelH, kernelW). Convolutional
// layers carry no bias unit.
type convLayer struct {
	kernel *G.Node
	pad    []int
	stride []int
	act    *Activation
}

// fwd adds the forward pass of the convLayer to the computational
// graph. The input must have shape (batch, channels, height, width).
func (c *convLayer) fwd(x *G.Node) (*G.Node, error) {
	kernelShape := c.kernel.Shape()
	x, err := G.Conv2d(
		x,
		c.kernel,
		tensor.Shape{kernelShape[2], kernelShape[3]},
		c.pad,
		c.stride,
		[]int{1, 1},
	)
	if err != nil {
		return nil, err
	}
	if c.act == nil || c.act.IsIdentity() {
		return x, nil
	}
	return c.act.fwd(x)
}

// CloneTo clones the convLayer to a new computational graph
func (c *convLayer) CloneTo(g *G.ExprGraph) Layer {
	return &convLayer{
		kernel: c.kernel.CloneTo(g),
		pad:    c.pad,
		stride: c.stride,
		act:    c.act,
	}
}

func (c *convLayer) Weights() *G.Node {
	return c.kernel
}

func (c *convLayer) Bias() *G.Node {
	return nil
}

// newConvLayer creates a 3x3, stride-1, SAME-padded convolutional
// layer mapping in channels to out channels on graph g.
func newConvLayer(g *G.ExprGraph, in, out int, act *Activation,
	init G.InitWFn, name string) *convLayer {
	kernel := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(out, in, 3, 3),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	return &convLayer{
		kernel: kernel,
		pad:    []int{1, 1},
		stride: []int{1, 1},
		act:    act,
	}
}
