package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// ErrInvalidConfig is returned for settings that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Layer types accepted in model.layers.
const (
	LayerLinear     = "linear"
	LayerReLU       = "relu"
	LayerLeakyReLU  = "leaky_relu"
	LayerSigmoid    = "sigmoid"
	LayerTanh       = "tanh"
	LayerSoftmax    = "softmax"
	LayerFlatten    = "flatten"
	LayerLayerNorm  = "layer_norm"
	LayerSequential = "sequential"
)

// ModelConfig describes a Sequential model.
//
//	model:
//	  layers:
//	    - {type: linear, in: 784, out: 128}
//	    - {type: relu}
//	    - {type: linear, in: 128, out: 10}
//	    - {type: softmax}
type ModelConfig struct {
	Layers []LayerConfig `koanf:"layers"`
}

// LayerConfig describes one layer. Fields that do not apply to Type are ignored.
type LayerConfig struct {
	Type   string        `koanf:"type"`
	In     int           `koanf:"in"`
	Out    int           `koanf:"out"`
	Bias   *bool         `koanf:"bias"`  // linear; default true
	Alpha  *float32      `koanf:"alpha"` // leaky_relu; default 0.01
	Axis   *int          `koanf:"axis"`  // softmax default -1, flatten default 1
	Eps    float32       `koanf:"eps"`   // layer_norm; default 1e-5
	Shape  []int         `koanf:"shape"` // layer_norm normalized shape
	Layers []LayerConfig `koanf:"layers"`
}

// Validate checks every layer description.
func (m ModelConfig) Validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("%w: model.layers is empty", ErrInvalidConfig)
	}
	return validateLayers("model.layers", m.Layers)
}

func validateLayers(prefix string, layers []LayerConfig) error {
	for i, l := range layers {
		where := fmt.Sprintf("%s[%d]", prefix, i)
		switch strings.ToLower(l.Type) {
		case LayerLinear:
			if l.In <= 0 || l.Out <= 0 {
				return fmt.Errorf("%w: %s: linear needs positive in and out, got %d and %d",
					ErrInvalidConfig, where, l.In, l.Out)
			}
		case LayerLayerNorm:
			if len(l.Shape) == 0 {
				return fmt.Errorf("%w: %s: layer_norm needs a shape", ErrInvalidConfig, where)
			}
			if err := tensor.Shape(l.Shape).Validate(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, where, err)
			}
		case LayerFlatten:
			if l.Axis != nil && *l.Axis < 0 {
				return fmt.Errorf("%w: %s: flatten axis must be >= 0", ErrInvalidConfig, where)
			}
		case LayerSequential:
			if err := validateLayers(where+".layers", l.Layers); err != nil {
				return err
			}
		case LayerReLU, LayerLeakyReLU, LayerSigmoid, LayerTanh, LayerSoftmax:
		default:
			return fmt.Errorf("%w: %s: unknown layer type %q", ErrInvalidConfig, where, l.Type)
		}
	}
	return nil
}

// Build creates the model with weights drawn from a generator seeded by seed.
func (m ModelConfig) Build(seed uint64) (*nn.Sequential, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return buildSequential(m.Layers, rng), nil
}

func buildSequential(layers []LayerConfig, rng *rand.Rand) *nn.Sequential {
	seq := nn.NewSequential()
	for _, l := range layers {
		seq.Add(buildLayer(l, rng))
	}
	return seq
}

func buildLayer(l LayerConfig, rng *rand.Rand) nn.Module {
	switch strings.ToLower(l.Type) {
	case LayerLinear:
		bias := l.Bias == nil || *l.Bias
		return nn.NewLinear(l.In, l.Out, bias, rng)
	case LayerReLU:
		return nn.NewReLU()
	case LayerLeakyReLU:
		alpha := float32(0.01)
		if l.Alpha != nil {
			alpha = *l.Alpha
		}
		return nn.NewLeakyReLU(alpha)
	case LayerSigmoid:
		return nn.NewSigmoid()
	case LayerTanh:
		return nn.NewTanh()
	case LayerSoftmax:
		return nn.NewSoftmax(intOr(l.Axis, -1))
	case LayerFlatten:
		return nn.NewFlatten(intOr(l.Axis, 1))
	case LayerLayerNorm:
		eps := l.Eps
		if eps == 0 {
			eps = 1e-5
		}
		return nn.NewLayerNorm(tensor.Shape(l.Shape), eps)
	default: // LayerSequential; Validate rejected everything else
		return buildSequential(l.Layers, rng)
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// InputSpecs returns the input spec, or nil when the shape is left to inference.
func (c *Config) InputSpecs() []tensor.Spec {
	if len(c.Input.Shape) == 0 {
		return nil
	}
	return []tensor.Spec{tensor.NewSpec(c.Input.Name, tensor.Shape(c.Input.Shape), c.Input.DType)}
}

// ConverterOptions returns the keyword options for the converter.
func (c *Config) ConverterOptions() map[string]any {
	opts := make(map[string]any)
	if len(c.Export.OutputSpec) > 0 {
		opts["output_spec"] = c.Export.OutputSpec
	}
	if c.Export.GraphName != "" {
		opts["graph_name"] = c.Export.GraphName
	}
	if c.Export.DocString != "" {
		opts["doc_string"] = c.Export.DocString
	}
	return opts
}
