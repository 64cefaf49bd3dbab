package nn

import (
	"fmt"

	"github.com/born-ml/onnxexport/internal/tensor"
)

// Parameter represents a named weight of a module, e.g. "weight" or "bias".
type Parameter struct {
	name   string
	tensor *tensor.Dense
}

// NewParameter creates a new parameter.
func NewParameter(name string, t *tensor.Dense) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Dense {
	return p.tensor
}

// Load copies src into the parameter after checking the shape.
func (p *Parameter) Load(src *tensor.Dense) error {
	if !p.tensor.Shape().Equal(src.Shape()) {
		return fmt.Errorf("parameter %s: shape mismatch: expected %v, got %v",
			p.name, p.tensor.Shape(), src.Shape())
	}
	copy(p.tensor.Data(), src.Data())
	return nil
}

// paramStateDict builds a state dict from a module's own parameters.
func paramStateDict(params ...*Parameter) map[string]*tensor.Dense {
	sd := make(map[string]*tensor.Dense, len(params))
	for _, p := range params {
		sd[p.name] = p.tensor
	}
	return sd
}

// loadParams loads each parameter from stateDict by name.
func loadParams(stateDict map[string]*tensor.Dense, params ...*Parameter) error {
	for _, p := range params {
		src, ok := stateDict[p.name]
		if !ok {
			return fmt.Errorf("missing parameter: %s", p.name)
		}
		if err := p.Load(src); err != nil {
			return err
		}
	}
	return nil
}
