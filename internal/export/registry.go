package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// ErrConverterNotInstalled is returned when an export names a converter that
// no linked package has registered.
var ErrConverterNotInstalled = errors.New("onnx converter is not installed")

// Converter turns a layer into an ONNX file.
//
// Implementations live in separate packages and register themselves from an
// init function, so programs that never export do not link them:
//
//	import _ "github.com/born-ml/onnxexport/converter/born2onnx"
type Converter interface {
	ConvertToONNX(layer nn.Module, saveFile string, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) error
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(layer nn.Module, saveFile string, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) error

// ConvertToONNX calls f.
func (f ConverterFunc) ConvertToONNX(layer nn.Module, saveFile string, inputSpec []tensor.Spec, opsetVersion int, kwargs map[string]any) error {
	return f(layer, saveFile, inputSpec, opsetVersion, kwargs)
}

// Factory builds a converter. It runs at most once per registry entry, on
// the first export that needs it.
type Factory func() (Converter, error)

type entry struct {
	factory Factory
	once    sync.Once
	conv    Converter
	err     error
}

func (e *entry) resolve() (Converter, error) {
	e.once.Do(func() {
		// A panicking factory still completes the Once; record it as a failure.
		defer func() {
			if r := recover(); r != nil {
				e.conv, e.err = nil, fmt.Errorf("factory panicked: %v", r)
			}
		}()
		e.conv, e.err = e.factory()
		if e.err == nil && e.conv == nil {
			e.err = errors.New("factory returned a nil converter")
		}
	})
	if e.err == nil && e.conv == nil {
		return nil, errors.New("converter is unavailable")
	}
	return e.conv, e.err
}

// Registry maps converter names to lazily built converters.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register makes a converter available under name.
// It panics if name is already registered or factory is nil.
func (r *Registry) Register(name string, factory Factory) {
	if factory == nil {
		panic("export: Register factory is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[name]; dup {
		panic("export: Register called twice for converter " + name)
	}
	r.entries[name] = &entry{factory: factory}
}

// Names returns the registered converter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the converter registered under name, building it on first
// use. Both the converter and a factory error are cached.
func (r *Registry) Resolve(name string) (Converter, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, r.notInstalled(name)
	}
	conv, err := e.resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: %q failed to load: %w", ErrConverterNotInstalled, name, err)
	}
	return conv, nil
}

func (r *Registry) notInstalled(name string) error {
	hint := "no converters are registered"
	if names := r.Names(); len(names) > 0 {
		hint = "registered: " + strings.Join(names, ", ")
	}
	if name == DefaultConverter {
		hint += `; import _ "github.com/born-ml/onnxexport/converter/born2onnx" to install it`
	}
	return fmt.Errorf("%w: %q (%s)", ErrConverterNotInstalled, name, hint)
}

var defaultRegistry = NewRegistry()

// Register adds a converter to the process-wide registry.
func Register(name string, factory Factory) {
	defaultRegistry.Register(name, factory)
}

// Converters lists the converters in the process-wide registry.
func Converters() []string {
	return defaultRegistry.Names()
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}
