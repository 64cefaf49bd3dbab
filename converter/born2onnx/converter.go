// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package born2onnx converts Born nn modules into ONNX models.
//
// Importing the package registers the converter under the name "born2onnx",
// which is the converter onnx.Export uses by default:
//
//	import (
//	    "github.com/born-ml/onnxexport/onnx"
//	    _ "github.com/born-ml/onnxexport/converter/born2onnx"
//	)
//
//	err := onnx.Export(model, "mlp.onnx",
//	    onnx.WithInputSpec(tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 784}, tensor.Float32)))
//
// # Supported Layers
//
//   - Linear: Gemm (rank-2 input) or MatMul + Add
//   - ReLU, LeakyReLU, Sigmoid, Tanh: the matching ONNX activation
//   - Softmax: Softmax (non-last axes need opset 13)
//   - Flatten: Flatten
//   - LayerNorm: LayerNormalization from opset 17, ReduceMean-based decomposition before
//   - Sequential: its children in order
//
// Values in the exported graph are named after module paths ("0", "2.1"),
// so an output spec of []string{"1"} exports the output of the second
// module of a root Sequential. Initializers use the state dict names
// ("0.weight", "0.bias").
package born2onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/born-ml/onnxexport/internal/export"
	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/onnx"
	"github.com/born-ml/onnxexport/internal/tensor"
)

const (
	// Name is the registry name of this converter.
	Name = "born2onnx"

	// Version is written to the producer_version field.
	Version = "0.1.0"

	// MinOpsetVersion and MaxOpsetVersion bound the supported default-domain opsets.
	MinOpsetVersion = 7
	MaxOpsetVersion = 17

	// DefaultInputName names an inferred input.
	DefaultInputName = "x"
)

// Conversion errors.
var (
	ErrUnsupportedOpset  = errors.New("unsupported opset version")
	ErrUnsupportedLayer  = errors.New("unsupported layer")
	ErrInputSpecRequired = errors.New("input spec required")
	ErrInvalidInputSpec  = errors.New("invalid input spec")
	ErrUnknownOutput     = errors.New("unknown output")
	ErrUnknownOption     = errors.New("unknown option")
	ErrShapeMismatch     = errors.New("shape mismatch")
)

func init() {
	export.Register(Name, func() (export.Converter, error) {
		return New(), nil
	})
}

// Converter exports nn modules as ONNX files.
type Converter struct {
	// FileMode is the permission of written files.
	FileMode os.FileMode
}

// New creates a Converter with default settings.
func New() *Converter {
	return &Converter{FileMode: 0o644}
}

// ConvertToONNX converts layer and atomically writes the model to saveFile.
func (c *Converter) ConvertToONNX(layer nn.Module, saveFile string, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) error {
	model, err := c.Convert(layer, inputSpec, opsetVersion, kwargs)
	if err != nil {
		return err
	}

	data, err := onnx.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := renameio.WriteFile(saveFile, data, c.FileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", saveFile, err)
	}

	slog.Info("exported ONNX model",
		slog.String("file", saveFile),
		slog.Int("opset", opsetVersion),
		slog.Int("nodes", len(model.Graph.Nodes)),
		slog.Int("initializers", len(model.Graph.Initializers)),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Convert builds the ONNX model for layer without writing it.
func (c *Converter) Convert(layer nn.Module, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) (*onnx.ModelProto, error) {
	if opsetVersion < MinOpsetVersion || opsetVersion > MaxOpsetVersion {
		return nil, fmt.Errorf("%w: %d (supported %d-%d)",
			ErrUnsupportedOpset, opsetVersion, MinOpsetVersion, MaxOpsetVersion)
	}
	if layer == nil {
		return nil, fmt.Errorf("%w: nil layer", ErrUnsupportedLayer)
	}

	opts, err := parseOptions(kwargs)
	if err != nil {
		return nil, err
	}

	input, err := resolveInput(layer, inputSpec)
	if err != nil {
		return nil, err
	}

	b := newGraphBuilder(opsetVersion)
	inShape := shapeFromSpec(input)
	b.shapes[input.Name] = inShape
	if _, err := b.emit("", layer, input.Name); err != nil {
		return nil, err
	}
	for path, value := range b.outputs {
		if value == input.Name {
			return nil, fmt.Errorf("%w: input name %q collides with the output of module %q",
				ErrInvalidInputSpec, input.Name, path)
		}
	}

	outputs, err := selectOutputs(b, opts.outputSpec)
	if err != nil {
		return nil, err
	}
	nodes, inits := prune(b.nodes, b.inits, outputs)
	if err := checkInputName(input.Name, nodes, inits); err != nil {
		return nil, err
	}

	graph := &onnx.GraphProto{
		Name:         opts.graphName,
		Nodes:        nodes,
		Initializers: inits,
		DocString:    opts.docString,
		Inputs:       []onnx.ValueInfoProto{valueInfo(input.Name, inShape)},
	}
	// IR 3 requires every initializer to be declared as a graph input too.
	irVersion := onnx.IRVersionForOpset(int64(opsetVersion))
	if irVersion < 4 {
		for i := range inits {
			graph.Inputs = append(graph.Inputs, valueInfo(inits[i].Name, initShape(&inits[i])))
		}
	}
	described := make(map[string]bool, len(outputs))
	for _, name := range outputs {
		described[name] = true
		graph.Outputs = append(graph.Outputs, valueInfo(name, b.shapes[name]))
	}
	produced := make(map[string]bool)
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			produced[out] = true
		}
	}
	for _, path := range b.order {
		name := b.outputs[path]
		if produced[name] && !described[name] {
			described[name] = true
			graph.ValueInfo = append(graph.ValueInfo, valueInfo(name, b.shapes[name]))
		}
	}

	return &onnx.ModelProto{
		IRVersion:       irVersion,
		OpsetImport:     []onnx.OperatorSetID{{Domain: "", Version: int64(opsetVersion)}},
		ProducerName:    Name,
		ProducerVersion: Version,
		Graph:           graph,
		MetadataProps: []onnx.StringStringEntry{
			{Key: "born.export_id", Value: uuid.NewString()},
			{Key: "born.layer", Value: nn.Describe(layer)},
		},
	}, nil
}

// checkInputName rejects an input whose name is already taken by an
// initializer or a node output of the graph.
func checkInputName(name string, nodes []onnx.NodeProto, inits []onnx.TensorProto) error {
	for i := range inits {
		if inits[i].Name == name {
			return fmt.Errorf("%w: input name %q collides with an initializer", ErrInvalidInputSpec, name)
		}
	}
	for i := range nodes {
		if lo.Contains(nodes[i].Outputs, name) {
			return fmt.Errorf("%w: input name %q collides with the output of node %q",
				ErrInvalidInputSpec, name, nodes[i].Name)
		}
	}
	return nil
}

func initShape(t *onnx.TensorProto) shape {
	s := make(shape, len(t.Dims))
	for i, d := range t.Dims {
		s[i] = staticDim(int(d))
	}
	return s
}

// resolveInput validates the caller's input spec or infers one from layer.
func resolveInput(layer nn.Module, specs []tensor.Spec) (tensor.Spec, error) {
	switch len(specs) {
	case 0:
		return inferInput(layer)
	case 1:
	default:
		return tensor.Spec{}, fmt.Errorf("%w: got %d inputs, modules take exactly one", ErrInvalidInputSpec, len(specs))
	}

	spec := specs[0]
	if spec.Name == "" {
		spec.Name = DefaultInputName
	}
	if spec.DType != "" && spec.DType != tensor.Float32 {
		return tensor.Spec{}, fmt.Errorf("%w: %s: dtype %q is not supported", ErrInvalidInputSpec, spec.Name, spec.DType)
	}
	if err := spec.Shape.ValidateSpec(); err != nil {
		return tensor.Spec{}, fmt.Errorf("%w: %s: %w", ErrInvalidInputSpec, spec.Name, err)
	}
	return tensor.NewSpec(spec.Name, spec.Shape, tensor.Float32), nil
}

var errFound = errors.New("found")

// inferInput derives [batch, features...] from the first shape-defining module.
func inferInput(layer nn.Module) (tensor.Spec, error) {
	var inferred tensor.Shape
	err := nn.Walk(layer, func(_ string, m nn.Module) error {
		switch m := m.(type) {
		case *nn.Linear:
			inferred = tensor.Shape{tensor.Dynamic, m.InFeatures()}
			return errFound
		case *nn.LayerNorm:
			inferred = append(tensor.Shape{tensor.Dynamic}, m.NormalizedShape()...)
			return errFound
		case *nn.Flatten, *nn.Softmax:
			// Rank-dependent; the input cannot be guessed.
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return tensor.Spec{}, err
	}
	if inferred == nil {
		return tensor.Spec{}, fmt.Errorf("%w: cannot infer the input of %s", ErrInputSpecRequired, nn.Describe(layer))
	}
	return tensor.NewSpec(DefaultInputName, inferred, tensor.Float32), nil
}
