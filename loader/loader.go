// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader loads and saves layer weights in SafeTensors format.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/onnxexport/loader"
//	    "github.com/born-ml/onnxexport/nn"
//	)
//
//	model := nn.NewSequential(nn.NewLinear(4, 8, true, nil), nn.NewLayerNorm(tensor.Shape{8}, 1e-5))
//
//	// Weights saved by this package
//	err := loader.LoadModuleWeights("mlp.safetensors", model)
//
//	// Weights saved from PyTorch with model.state_dict()
//	err = loader.LoadModuleWeights("mlp_torch.safetensors", model,
//	    loader.LoadOptions{Format: loader.FormatTorch})
package loader

import (
	"github.com/born-ml/onnxexport/internal/loader"
	"github.com/born-ml/onnxexport/internal/nn"
)

// Weight naming conventions.
const (
	FormatBorn  = loader.FormatBorn
	FormatTorch = loader.FormatTorch
)

// Errors returned by the loader.
var (
	ErrTensorNotFound    = loader.ErrTensorNotFound
	ErrUnsupportedDType  = loader.ErrUnsupportedDType
	ErrWeightMismatch    = loader.ErrWeightMismatch
	ErrUnsupportedFormat = loader.ErrUnsupportedFormat
)

// LoadOptions configures LoadModuleWeights.
type LoadOptions = loader.LoadOptions

// SafeTensorsReader reads tensors from a SafeTensors file.
type SafeTensorsReader = loader.SafeTensorsReader

// OpenSafeTensors opens a SafeTensors file for reading.
// The caller must Close the reader.
func OpenSafeTensors(path string) (*SafeTensorsReader, error) {
	return loader.NewSafeTensorsReader(path)
}

// LoadModuleWeights loads the SafeTensors file at path into module.
// Every parameter of module must be present with a matching shape.
func LoadModuleWeights(path string, module nn.Module, opts ...LoadOptions) error {
	return loader.LoadModuleWeights(path, module, opts...)
}

// SaveModuleWeights writes the state dict of module to path.
func SaveModuleWeights(path string, module nn.Module, metadata map[string]string) error {
	return loader.SaveModuleWeights(path, module, metadata)
}
