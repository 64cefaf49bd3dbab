package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/onnxexport/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [..., out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features], nil when the layer has no bias
}

// NewLinear creates a new Linear layer. A nil rng uses the global source.
func NewLinear(inFeatures, outFeatures int, useBias bool, rng *rand.Rand) *Linear {
	weight := NewParameter("weight",
		Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng))

	var bias *Parameter
	if useBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}))
	}

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
	}
}

// Forward computes y = x @ W.T + b over the last input dimension.
func (l *Linear) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	shape := input.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("Linear: expected input rank >= 2, got shape %v", shape)
	}
	if shape[len(shape)-1] != l.inFeatures {
		return nil, fmt.Errorf("Linear: expected last dimension %d, got shape %v", l.inFeatures, shape)
	}

	rows := input.NumElements() / l.inFeatures
	x := mat.NewDense(rows, l.inFeatures, widen(input.Data()))
	w := mat.NewDense(l.outFeatures, l.inFeatures, widen(l.weight.Tensor().Data()))

	var y mat.Dense
	y.Mul(x, w.T())

	out := make([]float32, rows*l.outFeatures)
	for r := 0; r < rows; r++ {
		for c := 0; c < l.outFeatures; c++ {
			v := float32(y.At(r, c))
			if l.bias != nil {
				v += l.bias.Tensor().Data()[c]
			}
			out[r*l.outFeatures+c] = v
		}
	}

	outShape := shape.Clone()
	outShape[len(outShape)-1] = l.outFeatures
	return tensor.FromSlice(out, outShape)
}

// Parameters returns weight and, when present, bias.
func (l *Linear) Parameters() []*Parameter {
	if l.bias == nil {
		return []*Parameter{l.weight}
	}
	return []*Parameter{l.weight, l.bias}
}

// StateDict returns "weight" and, when present, "bias".
func (l *Linear) StateDict() map[string]*tensor.Dense {
	return paramStateDict(l.Parameters()...)
}

// LoadStateDict loads weight and bias.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.Dense) error {
	return loadParams(stateDict, l.Parameters()...)
}

// InFeatures returns the input feature size.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output feature size.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// Weight returns the weight parameter [out_features, in_features].
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in=%d, out=%d, bias=%t)", l.inFeatures, l.outFeatures, l.bias != nil)
}

func widen(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}
