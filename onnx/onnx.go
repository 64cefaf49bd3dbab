// Package onnx provides ONNX model export for Born ML framework.
//
// The package is a thin entry point: the actual conversion is done by an
// external converter that registers itself by name. The default converter,
// "born2onnx", becomes available by importing its package for side effects.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/onnxexport/nn"
//	    "github.com/born-ml/onnxexport/onnx"
//	    "github.com/born-ml/onnxexport/tensor"
//
//	    _ "github.com/born-ml/onnxexport/converter/born2onnx"
//	)
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, true, nil),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, true, nil),
//	)
//
//	err := onnx.Export(model, "mnist.onnx",
//	    onnx.WithInputSpec(tensor.NewSpec("image", tensor.Shape{tensor.Dynamic, 784}, tensor.Float32)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Opset Version
//
// Export accepts an opset version (default 9), but always asks the converter
// for opset 9. A different request is logged as a warning and recorded on the
// trace span. See [PinnedOpsetVersion].
//
// # Errors
//
// If the selected converter is not registered, Export fails with
// [ErrConverterNotInstalled] before any conversion is attempted. Errors
// returned by the converter are passed through unchanged.
package onnx

import (
	"context"

	"github.com/born-ml/onnxexport/internal/export"
	"github.com/born-ml/onnxexport/internal/nn"
	internalonnx "github.com/born-ml/onnxexport/internal/onnx"
	"github.com/born-ml/onnxexport/internal/tensor"
)

const (
	// DefaultConverter is the converter used when none is selected.
	DefaultConverter = export.DefaultConverter

	// DefaultOpsetVersion is the opset version requested by default.
	DefaultOpsetVersion = export.DefaultOpsetVersion

	// PinnedOpsetVersion is the opset version every converter is asked for,
	// whatever the caller requested.
	PinnedOpsetVersion = export.PinnedOpsetVersion

	// OutputSpecKey is the keyword option set by [WithOutputSpec].
	OutputSpecKey = export.OutputSpecKey
)

// ErrConverterNotInstalled is returned when the selected converter is not registered.
var ErrConverterNotInstalled = export.ErrConverterNotInstalled

// ExportOption configures a call to [Export].
type ExportOption = export.Option

// Converter performs the actual layer to ONNX conversion.
type Converter = export.Converter

// ConverterFunc adapts a function to the [Converter] interface.
type ConverterFunc = export.ConverterFunc

// ConverterFactory creates a converter on first use.
type ConverterFactory = export.Factory

// Export converts layer into an ONNX file at saveFile.
//
// Example:
//
//	err := onnx.Export(model, "model.onnx",
//	    onnx.WithInputSpec(tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 4}, "")),
//	    onnx.WithOutputSpec("2"),
//	)
func Export(layer nn.Module, saveFile string, opts ...ExportOption) error {
	return export.Export(context.Background(), layer, saveFile, opts...)
}

// ExportContext is like [Export] but records a trace span under ctx.
func ExportContext(ctx context.Context, layer nn.Module, saveFile string, opts ...ExportOption) error {
	return export.Export(ctx, layer, saveFile, opts...)
}

// WithInputSpec describes the layer inputs. Without it the converter infers
// them when it can.
func WithInputSpec(specs ...tensor.Spec) ExportOption {
	return export.WithInputSpec(specs...)
}

// WithOpsetVersion sets the requested opset version.
func WithOpsetVersion(version int) ExportOption {
	return export.WithOpsetVersion(version)
}

// WithOutputSpec exports only the outputs of the given module paths.
func WithOutputSpec(paths ...string) ExportOption {
	return export.WithOutputSpec(paths...)
}

// WithOption passes an arbitrary keyword option to the converter.
func WithOption(key string, value any) ExportOption {
	return export.WithOption(key, value)
}

// WithConverter selects a registered converter by name.
func WithConverter(name string) ExportOption {
	return export.WithConverter(name)
}

// Register makes a converter available by name.
// It panics if name is already registered or factory is nil.
func Register(name string, factory ConverterFactory) {
	export.Register(name, factory)
}

// Converters returns the names of the registered converters, sorted.
func Converters() []string {
	return export.Converters()
}

// ModelInfo contains metadata about an ONNX model.
//
// Use [GetModelInfo] to inspect an exported file.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Inputs: %v\n", info.InputNames)
//	fmt.Printf("Outputs: %v\n", info.OutputNames)
//	fmt.Printf("Operators: %v\n", info.Operators)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}
