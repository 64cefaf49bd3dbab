// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package born2onnx

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/onnx"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// emitFunc appends the nodes for one module and returns its output value.
// It must record the output shape in b.shapes.
type emitFunc func(b *graphBuilder, path string, m nn.Module, input string) (string, error)

// emitters maps concrete module types to their emitters.
var emitters = make(map[reflect.Type]emitFunc)

func register[M nn.Module](fn func(b *graphBuilder, path string, m M, input string) (string, error)) {
	emitters[reflect.TypeFor[M]()] = func(b *graphBuilder, path string, m nn.Module, input string) (string, error) {
		return fn(b, path, m.(M), input)
	}
}

func lookupEmitter(m nn.Module) (emitFunc, bool) {
	fn, ok := emitters[reflect.TypeOf(m)]
	return fn, ok
}

func init() {
	register(emitSequential)
	register(emitLinear)
	register(func(b *graphBuilder, path string, _ *nn.ReLU, input string) (string, error) {
		return b.unary(path, "Relu", input), nil
	})
	register(func(b *graphBuilder, path string, m *nn.LeakyReLU, input string) (string, error) {
		return b.unary(path, "LeakyRelu", input, onnx.FloatAttr("alpha", m.Alpha)), nil
	})
	register(func(b *graphBuilder, path string, _ *nn.Sigmoid, input string) (string, error) {
		return b.unary(path, "Sigmoid", input), nil
	})
	register(func(b *graphBuilder, path string, _ *nn.Tanh, input string) (string, error) {
		return b.unary(path, "Tanh", input), nil
	})
	register(emitSoftmax)
	register(emitFlatten)
	register(emitLayerNorm)
}

// SupportedLayers returns the module types the converter can export.
func SupportedLayers() []string {
	names := make([]string, 0, len(emitters))
	for t := range emitters {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

func shapeError(path, format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", ErrShapeMismatch, valueName(path), fmt.Sprintf(format, args...))
}

// unary emits a shape-preserving single-input operator.
func (b *graphBuilder) unary(path, opType, input string, attrs ...onnx.AttributeProto) string {
	out := valueName(path)
	b.addNode(path, opType, []string{input}, out, attrs...)
	b.shapes[out] = b.shapes[input].clone()
	return out
}

func emitSequential(b *graphBuilder, path string, s *nn.Sequential, input string) (string, error) {
	if s.Len() == 0 {
		return b.unary(path, "Identity", input), nil
	}
	out := input
	for i, child := range s.Children() {
		var err error
		out, err = b.emit(nn.JoinPath(path, fmt.Sprint(i)), child, out)
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

func emitLinear(b *graphBuilder, path string, l *nn.Linear, input string) (string, error) {
	in := b.shapes[input]
	if in.rank() < 2 {
		return "", shapeError(path, "Linear expects an input of rank >= 2, got %v", in)
	}
	if last := in.static(in.rank() - 1); last != tensor.Dynamic && last != l.InFeatures() {
		return "", shapeError(path, "Linear expects %d input features, got %v", l.InFeatures(), in)
	}

	out := valueName(path)
	outShape := in.clone()
	outShape[len(outShape)-1] = staticDim(l.OutFeatures())

	if in.rank() == 2 {
		inputs := []string{input, b.addInitializer(nn.JoinPath(path, "weight"), l.Weight().Tensor())}
		switch {
		case l.Bias() != nil:
			inputs = append(inputs, b.addInitializer(nn.JoinPath(path, "bias"), l.Bias().Tensor()))
		case b.opset < 11:
			// C is a required Gemm input before opset 11.
			inputs = append(inputs, b.addInitializer(nn.JoinPath(path, "bias"), nn.Zeros(tensor.Shape{l.OutFeatures()})))
		}
		b.addNode(path, "Gemm", inputs, out, onnx.IntAttr("transB", 1))
		b.shapes[out] = outShape
		return out, nil
	}

	// Gemm is 2-D only; higher ranks use MatMul against the transposed weight.
	product := out
	if l.Bias() != nil {
		product = tempName(path, "MatMul")
	}
	weightT := b.addInitializer(nn.JoinPath(path, "weight_t"), transpose(l.Weight().Tensor()))
	b.addNode(path, "MatMul", []string{input, weightT}, product)
	if l.Bias() != nil {
		bias := b.addInitializer(nn.JoinPath(path, "bias"), l.Bias().Tensor())
		b.addNode(path, "Add", []string{product, bias}, out)
	}
	b.shapes[out] = outShape
	return out, nil
}

// transpose swaps the two dimensions of a matrix.
func transpose(m *tensor.Dense) *tensor.Dense {
	rows, cols := m.Shape()[0], m.Shape()[1]
	src := m.Data()
	dst := make([]float32, len(src))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst[c*rows+r] = src[r*cols+c]
		}
	}
	return tensor.MustFromSlice(dst, tensor.Shape{cols, rows})
}

func emitSoftmax(b *graphBuilder, path string, s *nn.Softmax, input string) (string, error) {
	rank := b.shapes[input].rank()
	axis, err := tensor.NormalizeAxis(s.Axis, rank)
	if err != nil {
		return "", shapeError(path, "Softmax: %v", err)
	}
	// Before opset 13 Softmax flattens the input to 2-D around axis, which only
	// matches a per-axis softmax for the last axis.
	if b.opset < 13 && axis != rank-1 {
		return "", fmt.Errorf("%w: Softmax over axis %d of a rank-%d input at %q needs opset >= 13",
			ErrUnsupportedLayer, s.Axis, rank, valueName(path))
	}
	return b.unary(path, "Softmax", input, onnx.IntAttr("axis", int64(axis))), nil
}

func emitFlatten(b *graphBuilder, path string, f *nn.Flatten, input string) (string, error) {
	in := b.shapes[input]
	if f.Axis < 0 || f.Axis > in.rank() {
		return "", shapeError(path, "Flatten axis %d out of range for %v", f.Axis, in)
	}

	out := valueName(path)
	b.addNode(path, "Flatten", []string{input}, out, onnx.IntAttr("axis", int64(f.Axis)))
	b.shapes[out] = shape{
		b.merge(path, 0, in[:f.Axis]),
		b.merge(path, 1, in[f.Axis:]),
	}
	return out, nil
}

// merge multiplies dims into one. Any symbolic input yields a new symbol.
func (b *graphBuilder) merge(path string, index int, dims shape) onnx.DimensionProto {
	if len(dims) == 1 {
		return dims[0]
	}
	n := 1
	for i := range dims {
		if dims.static(i) == tensor.Dynamic {
			return onnx.DimensionProto{DimParam: fmt.Sprintf("%s_dim%d", valueName(path), index)}
		}
		n *= dims.static(i)
	}
	return staticDim(n)
}

func emitLayerNorm(b *graphBuilder, path string, ln *nn.LayerNorm, input string) (string, error) {
	in := b.shapes[input]
	norm := ln.NormalizedShape()
	k := len(norm)
	if in.rank() < k {
		return "", shapeError(path, "LayerNorm over %v needs rank >= %d, got %v", []int(norm), k, in)
	}
	for i, want := range norm {
		got := in.static(in.rank() - k + i)
		if got != tensor.Dynamic && got != want {
			return "", shapeError(path, "LayerNorm over %v got %v", []int(norm), in)
		}
	}

	out := valueName(path)
	gamma := b.addInitializer(nn.JoinPath(path, "gamma"), ln.Gamma.Tensor())
	beta := b.addInitializer(nn.JoinPath(path, "beta"), ln.Beta.Tensor())
	first := int64(in.rank() - k)

	if b.opset >= 17 {
		b.addNode(path, "LayerNormalization", []string{input, gamma, beta}, out,
			onnx.IntAttr("axis", first),
			onnx.FloatAttr("epsilon", ln.Epsilon),
		)
		b.shapes[out] = in.clone()
		return out, nil
	}

	axes := make([]int64, k)
	for i := range axes {
		axes[i] = first + int64(i)
	}
	reduce := []onnx.AttributeProto{onnx.IntsAttr("axes", axes...), onnx.IntAttr("keepdims", 1)}

	mean := tempName(path, "mean")
	centered := tempName(path, "centered")
	squared := tempName(path, "squared")
	variance := tempName(path, "variance")
	shifted := tempName(path, "variance_eps")
	std := tempName(path, "std")
	normed := tempName(path, "normalized")
	scaled := tempName(path, "scaled")
	eps := b.addScalar(nn.JoinPath(path, "epsilon"), ln.Epsilon)

	b.addNode(path, "ReduceMean", []string{input}, mean, reduce...)
	b.addNode(path, "Sub", []string{input, mean}, centered)
	b.addNode(path, "Mul", []string{centered, centered}, squared)
	b.addNode(path, "ReduceMean", []string{squared}, variance, reduce...)
	b.addNode(path, "Add", []string{variance, eps}, shifted)
	b.addNode(path, "Sqrt", []string{shifted}, std)
	b.addNode(path, "Div", []string{centered, std}, normed)
	b.addNode(path, "Mul", []string{normed, gamma}, scaled)
	b.addNode(path, "Add", []string{scaled, beta}, out)
	b.shapes[out] = in.clone()
	return out, nil
}
