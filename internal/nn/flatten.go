package nn

import (
	"fmt"

	"github.com/born-ml/onnxexport/internal/tensor"
)

// Flatten reshapes its input into a matrix.
//
// Dimensions before Axis are multiplied into the first output dimension and
// the remaining ones into the second: [d0, ..., dn] -> [d0*...*d(axis-1), d(axis)*...*dn].
// This matches the ONNX Flatten operator, so Axis=1 turns [N, C, H, W] into [N, C*H*W].
type Flatten struct {
	stateless
	Axis int
}

// NewFlatten creates a Flatten module.
func NewFlatten(axis int) *Flatten {
	return &Flatten{Axis: axis}
}

// Forward reshapes the input. The returned tensor shares storage with input.
func (f *Flatten) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	outShape, err := f.OutputShape(input.Shape())
	if err != nil {
		return nil, err
	}
	return input.Reshape(outShape)
}

// OutputShape computes the flattened shape. Dynamic dimensions propagate.
func (f *Flatten) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if f.Axis < 0 || f.Axis > len(in) {
		return nil, fmt.Errorf("Flatten: axis %d out of range for rank %d", f.Axis, len(in))
	}
	return tensor.Shape{product(in[:f.Axis]), product(in[f.Axis:])}, nil
}

func (f *Flatten) String() string { return fmt.Sprintf("Flatten(axis=%d)", f.Axis) }

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		if d == tensor.Dynamic {
			return tensor.Dynamic
		}
		n *= d
	}
	return n
}
