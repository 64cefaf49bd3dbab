package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/onnxexport/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil rng uses the global source.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Dense {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := mustNew(shape)
	data := t.Data()
	for i := range data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			//nolint:gosec // Weight initialization is not security-critical
			u = rand.Float64()
		}
		data[i] = float32((u*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape tensor.Shape) *tensor.Dense {
	return mustNew(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape tensor.Shape) *tensor.Dense {
	t := mustNew(shape)
	data := t.Data()
	for i := range data {
		data[i] = 1
	}
	return t
}

func mustNew(shape tensor.Shape) *tensor.Dense {
	t, err := tensor.New(shape)
	if err != nil {
		panic(err)
	}
	return t
}
