// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the Born ONNX exporter.
//
// The package defines:
//   - Dense: row-major float32 tensor used for weights and layer inputs
//   - Shape: tensor dimensions, with Dynamic for sizes unknown until inference
//   - Spec: name, shape and dtype of a model input
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	spec := tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 3}, tensor.Float32)
package tensor

import (
	"github.com/born-ml/onnxexport/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Dynamic marks a dimension whose size is only known at inference time.
const Dynamic = tensor.Dynamic

// Float32 is the only element type layers and exported models use.
const Float32 = tensor.Float32

// Dense is a row-major float32 tensor.
type Dense = tensor.Dense

// Spec describes one model input.
type Spec = tensor.Spec

// New creates a zero-filled tensor.
func New(shape Shape) (*Dense, error) {
	return tensor.New(shape)
}

// FromSlice wraps data in a tensor of the given shape without copying.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(data []float32, shape Shape) (*Dense, error) {
	return tensor.FromSlice(data, shape)
}

// NewSpec creates an input spec. An empty dtype means float32.
//
// Example:
//
//	spec := tensor.NewSpec("image", tensor.Shape{tensor.Dynamic, 1, 28, 28}, tensor.Float32)
func NewSpec(name string, shape Shape, dtype string) Spec {
	return tensor.NewSpec(name, shape, dtype)
}

// SpecOf returns a spec matching the shape of t.
func SpecOf(name string, t *Dense) Spec {
	return tensor.SpecOf(name, t)
}
