package loader

import (
	"strings"

	"github.com/born-ml/onnxexport/internal/nn"
)

// Weight naming conventions understood by NewWeightMapper.
const (
	FormatBorn  = "born"
	FormatTorch = "torch"
)

// WeightMapper maps weight names found in a file to module state dict keys.
type WeightMapper interface {
	// MapName converts a file weight name to a state dict key.
	MapName(name string) string

	// Format returns the naming convention the mapper reads.
	Format() string
}

// IdentityMapper uses file names unchanged, optionally stripping a prefix.
type IdentityMapper struct {
	Prefix string
}

// MapName strips the prefix.
func (m IdentityMapper) MapName(name string) string {
	return strings.TrimPrefix(name, m.Prefix)
}

// Format returns FormatBorn.
func (m IdentityMapper) Format() string { return FormatBorn }

// TorchMapper maps PyTorch state dict names. PyTorch stores LayerNorm
// scale and shift as "weight" and "bias"; they become "gamma" and "beta".
type TorchMapper struct {
	Prefix     string
	layerNorms map[string]bool // module paths of LayerNorm layers
}

// NewTorchMapper creates a mapper for the layout of module.
func NewTorchMapper(module nn.Module, prefix string) *TorchMapper {
	m := &TorchMapper{Prefix: prefix, layerNorms: make(map[string]bool)}
	_ = nn.Walk(module, func(path string, mod nn.Module) error {
		if _, ok := mod.(*nn.LayerNorm); ok {
			m.layerNorms[path] = true
		}
		return nil
	})
	return m
}

// MapName converts PyTorch weight names to state dict keys.
//   - 1.weight -> 1.gamma (when module 1 is a LayerNorm)
//   - 1.bias   -> 1.beta
func (m *TorchMapper) MapName(name string) string {
	name = strings.TrimPrefix(name, m.Prefix)

	path, leaf := "", name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		path, leaf = name[:i], name[i+1:]
	}
	if !m.layerNorms[path] {
		return name
	}
	switch leaf {
	case "weight":
		return nn.JoinPath(path, "gamma")
	case "bias":
		return nn.JoinPath(path, "beta")
	}
	return name
}

// Format returns FormatTorch.
func (m *TorchMapper) Format() string { return FormatTorch }

// NewWeightMapper returns the mapper for a naming convention.
// An empty format means FormatBorn.
func NewWeightMapper(format string, module nn.Module, prefix string) (WeightMapper, error) {
	switch format {
	case "", FormatBorn:
		return IdentityMapper{Prefix: prefix}, nil
	case FormatTorch:
		return NewTorchMapper(module, prefix), nil
	default:
		return nil, &ValidationError{Err: ErrUnsupportedFormat, Details: format}
	}
}
