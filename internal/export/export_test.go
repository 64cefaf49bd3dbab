package export

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// recordingConverter remembers the arguments of its last call.
type recordingConverter struct {
	calls     int
	layer     nn.Module
	saveFile  string
	inputSpec []tensor.Spec
	opset     int
	kwargs    map[string]any
	err       error
}

func (c *recordingConverter) ConvertToONNX(layer nn.Module, saveFile string, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) error {
	c.calls++
	c.layer = layer
	c.saveFile = saveFile
	c.inputSpec = inputSpec
	c.opset = opsetVersion
	c.kwargs = kwargs
	return c.err
}

func newTestExporter(t *testing.T, conv Converter) (*Exporter, *bytes.Buffer) {
	t.Helper()
	reg := NewRegistry()
	if conv != nil {
		reg.Register(DefaultConverter, func() (Converter, error) { return conv, nil })
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewExporter(reg, logger), &buf
}

func TestExportMissingConverter(t *testing.T) {
	exp, _ := newTestExporter(t, nil)

	err := exp.Export(context.Background(), NewRequest(nn.NewReLU(), "out.onnx"))
	require.ErrorIs(t, err, ErrConverterNotInstalled)
	assert.Contains(t, err.Error(), "converter/born2onnx")
	assert.Contains(t, err.Error(), "no converters are registered")
}

func TestExportMissingNamedConverterListsRegistered(t *testing.T) {
	conv := &recordingConverter{}
	exp, _ := newTestExporter(t, conv)

	err := exp.Export(context.Background(), NewRequest(nn.NewReLU(), "out.onnx", WithConverter("tf2onnx")))
	require.ErrorIs(t, err, ErrConverterNotInstalled)
	assert.Contains(t, err.Error(), "registered: born2onnx")
	assert.Zero(t, conv.calls, "converter must not run")
}

func TestExportForwardsArguments(t *testing.T) {
	conv := &recordingConverter{}
	exp, _ := newTestExporter(t, conv)

	layer := nn.NewSequential(nn.NewLinear(4, 2, true, nil), nn.NewReLU())
	spec := []tensor.Spec{tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 4}, tensor.Float32)}

	err := exp.Export(context.Background(), NewRequest(layer, "model.onnx",
		WithInputSpec(spec...),
		WithOutputSpec("0"),
		WithOption("enable_onnx_checker", true),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, conv.calls)
	assert.Same(t, layer, conv.layer)
	assert.Equal(t, "model.onnx", conv.saveFile)
	assert.Equal(t, spec, conv.inputSpec)
	assert.Equal(t, map[string]any{
		OutputSpecKey:         []string{"0"},
		"enable_onnx_checker": true,
	}, conv.kwargs)
}

func TestExportNilInputSpecForwardedAsNil(t *testing.T) {
	conv := &recordingConverter{}
	exp, _ := newTestExporter(t, conv)

	require.NoError(t, exp.Export(context.Background(), NewRequest(nn.NewReLU(), "a.onnx")))
	assert.Nil(t, conv.inputSpec)
	assert.Empty(t, conv.kwargs)
}

func TestExportAlwaysForwardsPinnedOpset(t *testing.T) {
	for _, requested := range []int{9, 10, 11, 13, 0} {
		conv := &recordingConverter{}
		exp, logs := newTestExporter(t, conv)

		err := exp.Export(context.Background(), NewRequest(nn.NewReLU(), "a.onnx", WithOpsetVersion(requested)))
		require.NoError(t, err)
		assert.Equal(t, 9, conv.opset, "requested %d", requested)

		if requested == PinnedOpsetVersion {
			assert.NotContains(t, logs.String(), "not forwarded")
		} else {
			assert.Contains(t, logs.String(), "not forwarded")
		}
	}
}

func TestExportReturnsConverterErrorUnchanged(t *testing.T) {
	convErr := errors.New("unsupported operator")
	conv := &recordingConverter{err: convErr}
	exp, _ := newTestExporter(t, conv)

	err := exp.Export(context.Background(), NewRequest(nn.NewReLU(), "a.onnx"))
	assert.True(t, err == convErr, "error must be returned as is, got %v", err) //nolint:errorlint // identity is the point
}

func TestResolveRunsFactoryOnce(t *testing.T) {
	reg := NewRegistry()
	var builds atomic.Int32
	reg.Register("lazy", func() (Converter, error) {
		builds.Add(1)
		return ConverterFunc(func(nn.Module, string, []tensor.Spec, int, map[string]any) error { return nil }), nil
	})
	assert.Zero(t, builds.Load(), "factory must not run at registration")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Resolve("lazy")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestResolveCachesFactoryError(t *testing.T) {
	reg := NewRegistry()
	loadErr := errors.New("shared library missing")
	var builds int
	reg.Register("broken", func() (Converter, error) {
		builds++
		return nil, loadErr
	})

	for range 2 {
		_, err := reg.Resolve("broken")
		require.ErrorIs(t, err, ErrConverterNotInstalled)
		require.ErrorIs(t, err, loadErr)
	}
	assert.Equal(t, 1, builds)
}

func TestResolveRecoversFactoryPanic(t *testing.T) {
	reg := NewRegistry()
	var builds int
	reg.Register("panicky", func() (Converter, error) {
		builds++
		panic("cgo init failed")
	})

	for range 2 {
		conv, err := reg.Resolve("panicky")
		require.ErrorIs(t, err, ErrConverterNotInstalled)
		assert.Contains(t, err.Error(), "cgo init failed")
		assert.Nil(t, conv)
	}
	assert.Equal(t, 1, builds)

	e := NewExporter(reg, nil)
	err := e.Export(context.Background(), NewRequest(nn.NewReLU(), "m.onnx", WithConverter("panicky")))
	assert.ErrorIs(t, err, ErrConverterNotInstalled)
}

func TestResolveNilConverter(t *testing.T) {
	reg := NewRegistry()
	reg.Register("nil", func() (Converter, error) { return nil, nil })
	_, err := reg.Resolve("nil")
	assert.ErrorIs(t, err, ErrConverterNotInstalled)
}

func TestRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	factory := func() (Converter, error) { return &recordingConverter{}, nil }
	reg.Register("a", factory)

	assert.Panics(t, func() { reg.Register("a", factory) })
	assert.Panics(t, func() { reg.Register("b", nil) })
	assert.Equal(t, []string{"a"}, reg.Names())
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest(nn.NewTanh(), "m.onnx")
	assert.Equal(t, DefaultOpsetVersion, req.OpsetVersion)
	assert.Equal(t, DefaultConverter, req.Converter)
	assert.NotNil(t, req.Kwargs)
	assert.Equal(t, []int{9, 10, 11}, SupportedOpsetVersions)
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestExportRecordsSpan(t *testing.T) {
	conv := &recordingConverter{}
	exp, _ := newTestExporter(t, conv)
	sr := tracetest.NewSpanRecorder()
	exp.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	req := NewRequest(nn.NewReLU(), "relu.onnx", WithOpsetVersion(11))
	require.NoError(t, exp.Export(context.Background(), req))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "onnx.Export", spans[0].Name())
	attrs := spanAttrs(spans[0])
	assert.Equal(t, DefaultConverter, attrs["onnx.converter"].AsString())
	assert.Equal(t, "relu.onnx", attrs["onnx.save_file"].AsString())
	assert.Equal(t, int64(11), attrs["onnx.opset.requested"].AsInt64())
	assert.Equal(t, int64(PinnedOpsetVersion), attrs["onnx.opset.forwarded"].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestExportRecordsSpanError(t *testing.T) {
	exp, _ := newTestExporter(t, nil)
	sr := tracetest.NewSpanRecorder()
	exp.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	err := exp.Export(context.Background(), NewRequest(nn.NewReLU(), "relu.onnx"))
	require.ErrorIs(t, err, ErrConverterNotInstalled)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
