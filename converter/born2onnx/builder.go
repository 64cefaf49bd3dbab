// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package born2onnx

import (
	"fmt"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/onnx"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// shape is a tensor shape whose dimensions may be symbolic.
type shape []onnx.DimensionProto

func (s shape) rank() int { return len(s) }

// static returns the size of dimension i, or tensor.Dynamic.
func (s shape) static(i int) int {
	if s[i].DimParam != "" {
		return tensor.Dynamic
	}
	return int(s[i].DimValue)
}

func (s shape) clone() shape {
	out := make(shape, len(s))
	copy(out, s)
	return out
}

func (s shape) String() string {
	dims := make([]string, len(s))
	for i, d := range s {
		if d.DimParam != "" {
			dims[i] = d.DimParam
		} else {
			dims[i] = fmt.Sprint(d.DimValue)
		}
	}
	return fmt.Sprint(dims)
}

func staticDim(v int) onnx.DimensionProto {
	return onnx.DimensionProto{DimValue: int64(v)}
}

func shapeFromSpec(spec tensor.Spec) shape {
	out := make(shape, len(spec.Shape))
	for i, d := range spec.Shape {
		if d == tensor.Dynamic {
			out[i] = onnx.DimensionProto{DimParam: fmt.Sprintf("%s_dim%d", spec.Name, i)}
		} else {
			out[i] = staticDim(d)
		}
	}
	return out
}

func valueInfo(name string, s shape) onnx.ValueInfoProto {
	return onnx.ValueInfoProto{
		Name: name,
		Type: &onnx.TypeProto{TensorType: &onnx.TensorTypeProto{
			ElemType: onnx.TensorProtoFloat,
			Shape:    &onnx.TensorShapeProto{Dims: s.clone()},
		}},
	}
}

// graphBuilder accumulates nodes and initializers while layers are emitted.
type graphBuilder struct {
	opset   int
	nodes   []onnx.NodeProto
	inits   []onnx.TensorProto
	shapes  map[string]shape  // value name -> shape
	outputs map[string]string // module path -> output value name
	order   []string          // module paths in emission order
}

func newGraphBuilder(opset int) *graphBuilder {
	return &graphBuilder{
		opset:   opset,
		shapes:  make(map[string]shape),
		outputs: make(map[string]string),
	}
}

// valueName is the name of the tensor a module at path produces.
func valueName(path string) string {
	if path == "" {
		return "output"
	}
	return path
}

// tempName names an intermediate value inside the module at path.
func tempName(path, op string) string {
	return valueName(path) + "/" + op
}

func (b *graphBuilder) addNode(path, opType string, inputs []string, output string, attrs ...onnx.AttributeProto) {
	b.nodes = append(b.nodes, onnx.NodeProto{
		Name:       valueName(path) + "/" + opType + fmt.Sprintf("_%d", len(b.nodes)),
		OpType:     opType,
		Inputs:     inputs,
		Outputs:    []string{output},
		Attributes: attrs,
	})
}

func (b *graphBuilder) addInitializer(name string, t *tensor.Dense) string {
	dims := make([]int64, t.Rank())
	for i, d := range t.Shape() {
		dims[i] = int64(d)
	}
	b.inits = append(b.inits, onnx.TensorProto{
		Name:     name,
		DataType: onnx.TensorProtoFloat,
		Dims:     dims,
		RawData:  t.Bytes(),
	})
	return name
}

// addScalar adds a rank-0 float initializer.
func (b *graphBuilder) addScalar(name string, v float32) string {
	return b.addInitializer(name, tensor.MustFromSlice([]float32{v}, tensor.Shape{}))
}

// setModuleOutput records the value produced by the module at path.
func (b *graphBuilder) setModuleOutput(path, value string, s shape) {
	b.shapes[value] = s
	b.outputs[path] = value
	b.order = append(b.order, path)
}

// emit converts one module and returns the name of its output value.
func (b *graphBuilder) emit(path string, m nn.Module, input string) (string, error) {
	fn, ok := lookupEmitter(m)
	if !ok {
		return "", fmt.Errorf("%w: %s at %q", ErrUnsupportedLayer, nn.Describe(m), valueName(path))
	}
	out, err := fn(b, path, m, input)
	if err != nil {
		return "", err
	}
	b.setModuleOutput(path, out, b.shapes[out])
	return out, nil
}
