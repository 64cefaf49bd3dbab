// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module = nn.Module

// Container is a module with child modules.
type Container = nn.Container

// Parameter represents a trainable parameter in a neural network.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Dense) *Parameter {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
// A nil rng uses the global random source.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, true, rand.New(rand.NewPCG(1, 2)))
func NewLinear(inFeatures, outFeatures int, useBias bool, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, useBias, rng)
}

// Flatten collapses the input into a 2-D tensor around an axis.
type Flatten = nn.Flatten

// NewFlatten creates a Flatten layer.
//
// Example:
//
//	flatten := nn.NewFlatten(1) // [N, C, H, W] -> [N, C*H*W]
func NewFlatten(axis int) *Flatten {
	return nn.NewFlatten(axis)
}

// LayerNorm applies layer normalization over the trailing dimensions.
type LayerNorm = nn.LayerNorm

// NewLayerNorm creates a LayerNorm with gamma set to ones and beta to zeros.
func NewLayerNorm(normalizedShape tensor.Shape, epsilon float32) *LayerNorm {
	return nn.NewLayerNorm(normalizedShape, epsilon)
}

// Activations

// ReLU applies max(0, x).
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// LeakyReLU applies x for positive inputs and alpha*x otherwise.
type LeakyReLU = nn.LeakyReLU

// NewLeakyReLU creates a new LeakyReLU activation.
func NewLeakyReLU(alpha float32) *LeakyReLU {
	return nn.NewLeakyReLU(alpha)
}

// Sigmoid applies 1 / (1 + exp(-x)).
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a new Sigmoid activation.
func NewSigmoid() *Sigmoid {
	return nn.NewSigmoid()
}

// Tanh applies the hyperbolic tangent.
type Tanh = nn.Tanh

// NewTanh creates a new Tanh activation.
func NewTanh() *Tanh {
	return nn.NewTanh()
}

// Softmax normalizes the input into probabilities along an axis.
type Softmax = nn.Softmax

// NewSoftmax creates a new Softmax over axis. Negative axes count from the end.
func NewSoftmax(axis int) *Softmax {
	return nn.NewSoftmax(axis)
}

// Containers

// Sequential chains modules, feeding each output into the next module.
type Sequential = nn.Sequential

// NewSequential creates a new Sequential container.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, true, nil),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, true, nil),
//	)
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// WalkFunc is called for every module visited by [Walk].
type WalkFunc = nn.WalkFunc

// Walk visits m and its descendants in pre-order with their module paths.
// The root has the empty path.
func Walk(m Module, fn WalkFunc) error {
	return nn.Walk(m, fn)
}

// Describe returns a one-line description of m.
func Describe(m Module) string {
	return nn.Describe(m)
}

// Initialization

// Xavier returns a tensor with Xavier/Glorot uniform initialization.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Dense {
	return nn.Xavier(fanIn, fanOut, shape, rng)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape tensor.Shape) *tensor.Dense {
	return nn.Zeros(shape)
}

// Ones returns a tensor filled with ones.
func Ones(shape tensor.Shape) *tensor.Dense {
	return nn.Ones(shape)
}
