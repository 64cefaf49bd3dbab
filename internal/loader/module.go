package loader

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// LoadOptions configures LoadModuleWeights.
type LoadOptions struct {
	// Format is the weight naming convention (FormatBorn or FormatTorch).
	Format string

	// Prefix is stripped from every name in the file.
	Prefix string

	// AllowUnused ignores tensors in the file that the module does not have.
	AllowUnused bool
}

// LoadModuleWeights loads the SafeTensors file at path into module.
//
// Every parameter of module must be present with a matching shape.
// Tensors the module does not use are an error unless opts.AllowUnused is set.
func LoadModuleWeights(path string, module nn.Module, opts ...LoadOptions) error {
	var o LoadOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	mapper, err := NewWeightMapper(o.Format, module, o.Prefix)
	if err != nil {
		return err
	}

	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	// Only tensors the module uses are decoded; unused ones may have any dtype.
	fileNames := make(map[string]string, len(r.TensorNames()))
	for _, name := range r.TensorNames() {
		fileNames[mapper.MapName(name)] = name
	}

	expected := module.StateDict()
	missing, unused := lo.Difference(lo.Keys(expected), lo.Keys(fileNames))
	sort.Strings(missing)
	sort.Strings(unused)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %v", ErrWeightMismatch, path, missing)
	}
	if len(unused) > 0 && !o.AllowUnused {
		return fmt.Errorf("%w: %s: unexpected %v", ErrWeightMismatch, path, unused)
	}

	stateDict := make(map[string]*tensor.Dense, len(expected))
	for key := range expected {
		t, err := r.LoadTensor(fileNames[key])
		if err != nil {
			return err
		}
		stateDict[key] = t
	}

	if err := module.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWeightMismatch, path, err)
	}

	slog.Debug("loaded weights",
		slog.String("file", path),
		slog.String("format", mapper.Format()),
		slog.Int("tensors", len(expected)),
		slog.Int("unused", len(unused)),
	)
	return nil
}

// SaveModuleWeights writes the state dict of module to path.
func SaveModuleWeights(path string, module nn.Module, metadata map[string]string) error {
	return WriteSafeTensors(path, module.StateDict(), metadata)
}
