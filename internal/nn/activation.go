package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/onnxexport/internal/parallel"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// stateless provides the Module methods shared by parameter-free layers.
type stateless struct{}

// Parameters returns nil.
func (stateless) Parameters() []*Parameter { return nil }

// StateDict returns an empty map.
func (stateless) StateDict() map[string]*tensor.Dense { return map[string]*tensor.Dense{} }

// LoadStateDict ignores its argument.
func (stateless) LoadStateDict(map[string]*tensor.Dense) error { return nil }

func mapElements(input *tensor.Dense, f func(float32) float32) (*tensor.Dense, error) {
	out := input.Clone()
	data := out.Data()
	for i, v := range data {
		data[i] = f(v)
	}
	return out, nil
}

// ReLU applies the element-wise function: f(x) = max(0, x).
type ReLU struct{ stateless }

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation.
func (r *ReLU) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	return mapElements(input, func(x float32) float32 {
		return math32.Max(x, 0)
	})
}

func (r *ReLU) String() string { return "ReLU" }

// LeakyReLU applies f(x) = x for x >= 0 and alpha*x otherwise.
type LeakyReLU struct {
	stateless
	Alpha float32
}

// NewLeakyReLU creates a LeakyReLU module. ONNX uses 0.01 by default.
func NewLeakyReLU(alpha float32) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Forward applies LeakyReLU activation.
func (r *LeakyReLU) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	return mapElements(input, func(x float32) float32 {
		if x < 0 {
			return r.Alpha * x
		}
		return x
	})
}

func (r *LeakyReLU) String() string { return fmt.Sprintf("LeakyReLU(alpha=%g)", r.Alpha) }

// Sigmoid applies f(x) = 1 / (1 + exp(-x)).
type Sigmoid struct{ stateless }

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward applies sigmoid activation.
func (s *Sigmoid) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	return mapElements(input, func(x float32) float32 {
		return 1 / (1 + math32.Exp(-x))
	})
}

func (s *Sigmoid) String() string { return "Sigmoid" }

// Tanh applies the hyperbolic tangent element-wise.
type Tanh struct{ stateless }

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh {
	return &Tanh{}
}

// Forward applies tanh activation.
func (t *Tanh) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	return mapElements(input, math32.Tanh)
}

func (t *Tanh) String() string { return "Tanh" }

// Softmax normalizes values along Axis so they sum to one.
type Softmax struct {
	stateless
	Axis int
}

// NewSoftmax creates a Softmax over axis (negative values count from the end).
func NewSoftmax(axis int) *Softmax {
	return &Softmax{Axis: axis}
}

// Forward applies a numerically stable softmax along the configured axis.
func (s *Softmax) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	shape := input.Shape()
	axis, err := tensor.NormalizeAxis(s.Axis, len(shape))
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}

	strides := shape.ComputeStrides()
	axisLen := shape[axis]
	inner := strides[axis]
	outer := input.NumElements() / (axisLen * inner)

	out := input.Clone()
	data := out.Data()
	parallel.Rows(outer, parallel.DefaultConfig(), func(first, last int) {
		for o := first; o < last; o++ {
			for in := 0; in < inner; in++ {
				base := o*axisLen*inner + in
				maxVal := data[base]
				for k := 1; k < axisLen; k++ {
					maxVal = math32.Max(maxVal, data[base+k*inner])
				}
				var sum float32
				for k := 0; k < axisLen; k++ {
					idx := base + k*inner
					data[idx] = math32.Exp(data[idx] - maxVal)
					sum += data[idx]
				}
				for k := 0; k < axisLen; k++ {
					data[base+k*inner] /= sum
				}
			}
		}
	})
	return out, nil
}

func (s *Softmax) String() string { return fmt.Sprintf("Softmax(axis=%d)", s.Axis) }
