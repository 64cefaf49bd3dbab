// Package export implements the ONNX export entry point.
//
// The entry point does no conversion itself. It resolves a named Converter
// from a Registry at call time and forwards the layer, destination path,
// input spec and keyword options to it.
package export

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

const (
	// DefaultConverter is the converter used when none is selected.
	DefaultConverter = "born2onnx"

	// DefaultOpsetVersion is the opset a caller gets without WithOpsetVersion.
	DefaultOpsetVersion = 9

	// PinnedOpsetVersion is the opset always passed to the converter.
	// The requested version is recorded but not forwarded; see DESIGN.md.
	PinnedOpsetVersion = 9

	// OutputSpecKey is the keyword option naming the module outputs to keep.
	OutputSpecKey = "output_spec"
)

// SupportedOpsetVersions lists the opset versions the entry point documents.
// They are not validated here.
var SupportedOpsetVersions = []int{9, 10, 11}

// Request holds the arguments of one export.
type Request struct {
	Layer        nn.Module
	SaveFile     string
	InputSpec    []tensor.Spec
	OpsetVersion int
	Kwargs       map[string]any
	Converter    string
}

// Option configures a Request.
type Option func(*Request)

// WithInputSpec sets the model inputs.
func WithInputSpec(specs ...tensor.Spec) Option {
	return func(r *Request) {
		r.InputSpec = specs
	}
}

// WithOpsetVersion sets the requested opset version.
func WithOpsetVersion(version int) Option {
	return func(r *Request) {
		r.OpsetVersion = version
	}
}

// WithOutputSpec keeps only the outputs of the given module paths.
func WithOutputSpec(paths ...string) Option {
	return WithOption(OutputSpecKey, paths)
}

// WithOption sets an open-ended keyword option passed to the converter.
func WithOption(key string, value any) Option {
	return func(r *Request) {
		if r.Kwargs == nil {
			r.Kwargs = make(map[string]any)
		}
		r.Kwargs[key] = value
	}
}

// WithConverter selects a registered converter by name.
func WithConverter(name string) Option {
	return func(r *Request) {
		r.Converter = name
	}
}

// NewRequest applies opts over the defaults.
func NewRequest(layer nn.Module, saveFile string, opts ...Option) Request {
	req := Request{
		Layer:        layer,
		SaveFile:     saveFile,
		OpsetVersion: DefaultOpsetVersion,
		Converter:    DefaultConverter,
	}
	for _, opt := range opts {
		opt(&req)
	}
	if req.Kwargs == nil {
		req.Kwargs = map[string]any{}
	}
	return req
}

const tracerName = "github.com/born-ml/onnxexport/internal/export"

// Exporter forwards export requests to converters from a Registry.
type Exporter struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewExporter creates an Exporter. A nil registry uses the process-wide one
// and a nil logger uses slog.Default.
func NewExporter(registry *Registry, logger *slog.Logger) *Exporter {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Exporter{registry: registry, logger: logger}
}

// WithTracerProvider makes e record spans with tp instead of the global provider.
func (e *Exporter) WithTracerProvider(tp trace.TracerProvider) *Exporter {
	e.tracer = tp.Tracer(tracerName)
	return e
}

func (e *Exporter) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Export resolves the converter and forwards the request to it.
//
// Converter errors are returned as is. If the converter is not registered the
// error wraps ErrConverterNotInstalled and the converter is never called.
func (e *Exporter) Export(ctx context.Context, req Request) error {
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	_, span := tracer.Start(ctx, "onnx.Export", trace.WithAttributes(
		attribute.String("onnx.converter", req.Converter),
		attribute.String("onnx.save_file", req.SaveFile),
		attribute.Int("onnx.opset.requested", req.OpsetVersion),
		attribute.Int("onnx.opset.forwarded", PinnedOpsetVersion),
	))
	defer span.End()

	conv, err := e.registry.Resolve(req.Converter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if req.OpsetVersion != PinnedOpsetVersion {
		e.log().Warn("requested opset version is not forwarded to the converter",
			slog.Int("requested", req.OpsetVersion),
			slog.Int("forwarded", PinnedOpsetVersion),
			slog.String("converter", req.Converter),
		)
	}

	e.log().Debug("exporting layer to ONNX",
		slog.String("converter", req.Converter),
		slog.String("save_file", req.SaveFile),
		slog.Int("inputs", len(req.InputSpec)),
		slog.Int("options", len(req.Kwargs)),
	)

	if err := conv.ConvertToONNX(req.Layer, req.SaveFile, req.InputSpec, PinnedOpsetVersion, req.Kwargs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Export runs a request against the process-wide registry.
func Export(ctx context.Context, layer nn.Module, saveFile string, opts ...Option) error {
	return NewExporter(nil, nil).Export(ctx, NewRequest(layer, saveFile, opts...))
}
