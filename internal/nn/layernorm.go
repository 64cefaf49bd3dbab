package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/onnxexport/internal/parallel"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// LayerNorm applies Layer Normalization over the trailing dimensions of the input.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - mean and variance are computed over the last len(NormalizedShape) dimensions
//   - gamma is the learnable scale parameter [NormalizedShape...]
//   - beta is the learnable shift parameter [NormalizedShape...]
//   - eps is a small value to avoid division by zero
type LayerNorm struct {
	Gamma   *Parameter // learnable scale
	Beta    *Parameter // learnable shift
	Epsilon float32    // numerical stability constant

	normalizedShape tensor.Shape
}

// NewLayerNorm creates a new LayerNorm layer.
//
// The gamma parameter is initialized to ones, beta to zeros.
func NewLayerNorm(normalizedShape tensor.Shape, epsilon float32) *LayerNorm {
	return &LayerNorm{
		Gamma:           NewParameter("gamma", Ones(normalizedShape)),
		Beta:            NewParameter("beta", Zeros(normalizedShape)),
		Epsilon:         epsilon,
		normalizedShape: normalizedShape.Clone(),
	}
}

// NormalizedShape returns the shape of the normalized trailing dimensions.
func (ln *LayerNorm) NormalizedShape() tensor.Shape {
	return ln.normalizedShape
}

// Forward normalizes each group of trailing elements.
func (ln *LayerNorm) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	shape := input.Shape()
	k := len(ln.normalizedShape)
	if len(shape) < k || !tensor.Shape(shape[len(shape)-k:]).Equal(ln.normalizedShape) {
		return nil, fmt.Errorf("LayerNorm: expected trailing dimensions %v, got shape %v",
			ln.normalizedShape, shape)
	}

	group := ln.normalizedShape.NumElements()
	gamma := ln.Gamma.Tensor().Data()
	beta := ln.Beta.Tensor().Data()

	out := input.Clone()
	data := out.Data()
	n := float32(group)
	parallel.Rows(len(data)/group, parallel.DefaultConfig(), func(first, last int) {
		for r := first; r < last; r++ {
			row := data[r*group : (r+1)*group]

			var mean float32
			for _, v := range row {
				mean += v
			}
			mean /= n

			var variance float32
			for _, v := range row {
				d := v - mean
				variance += d * d
			}
			variance /= n

			std := math32.Sqrt(variance + ln.Epsilon)
			for i, v := range row {
				row[i] = (v-mean)/std*gamma[i] + beta[i]
			}
		}
	})
	return out, nil
}

// Parameters returns gamma and beta.
func (ln *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{ln.Gamma, ln.Beta}
}

// StateDict returns "gamma" and "beta".
func (ln *LayerNorm) StateDict() map[string]*tensor.Dense {
	return paramStateDict(ln.Parameters()...)
}

// LoadStateDict loads gamma and beta.
func (ln *LayerNorm) LoadStateDict(stateDict map[string]*tensor.Dense) error {
	return loadParams(stateDict, ln.Parameters()...)
}

func (ln *LayerNorm) String() string {
	return fmt.Sprintf("LayerNorm(shape=%v, eps=%g)", []int(ln.normalizedShape), ln.Epsilon)
}
