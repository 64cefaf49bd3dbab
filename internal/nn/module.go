// Package nn implements the neural network modules that can be exported to ONNX.
//
// This package provides building blocks for constructing networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors
//   - Linear: Fully connected layer
//   - Activations: ReLU, LeakyReLU, Sigmoid, Tanh, Softmax
//   - Shape and normalization: Flatten, LayerNorm
//   - Sequential: Container for stacking layers
//
// Every module has a CPU Forward so exported models can be checked against
// the in-process result.
package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/onnxexport/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, true, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, true, rng),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Dense) (*tensor.Dense, error)

	// Parameters returns the module's own parameters and those of any
	// nested modules. Activation functions return nil.
	Parameters() []*Parameter

	// StateDict returns a map of parameter names to tensors.
	StateDict() map[string]*tensor.Dense

	// LoadStateDict copies values from stateDict into the module's parameters.
	// Returns an error if a required parameter is missing or has wrong shape.
	LoadStateDict(stateDict map[string]*tensor.Dense) error
}

// Container is implemented by modules that hold child modules.
type Container interface {
	Module
	Children() []Module
}

// WalkFunc is called for each module visited by Walk. Path is the dotted
// child index path from the root ("" for the root, "0", "2.1", ...).
type WalkFunc func(path string, m Module) error

// Walk visits m and its descendants in depth-first pre-order.
func Walk(m Module, fn WalkFunc) error {
	return walk("", m, fn)
}

func walk(path string, m Module, fn WalkFunc) error {
	if err := fn(path, m); err != nil {
		return err
	}
	c, ok := m.(Container)
	if !ok {
		return nil
	}
	for i, child := range c.Children() {
		if err := walk(JoinPath(path, strconv.Itoa(i)), child, fn); err != nil {
			return err
		}
	}
	return nil
}

// JoinPath joins a parent module path and a child component.
func JoinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// Describe returns a short human readable name for a module.
func Describe(m Module) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", m)
}
