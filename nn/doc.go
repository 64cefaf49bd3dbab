// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers that can be exported to ONNX.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Flatten, LayerNorm
//   - Activations: ReLU, LeakyReLU, Sigmoid, Tanh, Softmax
//   - Utilities: Sequential, Module interface, Parameter, Walk
//   - Initialization: Xavier, Zeros, Ones
//
// # Basic Usage
//
//	import (
//	    "math/rand/v2"
//
//	    "github.com/born-ml/onnxexport/nn"
//	)
//
//	func main() {
//	    rng := rand.New(rand.NewPCG(1, 2))
//
//	    // Build a simple MLP
//	    model := nn.NewSequential(
//	        nn.NewLinear(784, 128, true, rng),
//	        nn.NewReLU(),
//	        nn.NewLinear(128, 10, true, rng),
//	    )
//
//	    // Forward pass
//	    output, err := model.Forward(input)
//	}
//
// # Module Paths
//
// Modules inside a Sequential are addressed by their index path: "0" is the
// first child, "2.1" the second child of the third. State dict keys and
// exported ONNX value names both use these paths:
//
//	sd := model.StateDict() // "0.weight", "0.bias", "2.weight", "2.bias"
//
// Walk visits every module with its path:
//
//	nn.Walk(model, func(path string, m nn.Module) error {
//	    fmt.Println(path, m)
//	    return nil
//	})
//
// # Parameter Management
//
//	params := model.Parameters()
//	for _, param := range params {
//	    fmt.Println(param.Name(), param.Tensor().Shape())
//	}
package nn
