package tensor

import "fmt"

// Float32 is the only element type the nn layers compute in.
const Float32 = "float32"

// Spec describes a model input or output: its name, shape and element type.
//
// A Dynamic dimension stands for a size chosen at inference time, typically
// the batch dimension:
//
//	x := tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 784}, tensor.Float32)
type Spec struct {
	Name  string
	Shape Shape
	DType string
}

// NewSpec creates a Spec. An empty dtype defaults to Float32.
func NewSpec(name string, shape Shape, dtype string) Spec {
	if dtype == "" {
		dtype = Float32
	}
	return Spec{Name: name, Shape: shape.Clone(), DType: dtype}
}

// SpecOf describes an existing tensor.
func SpecOf(name string, t *Dense) Spec {
	return NewSpec(name, t.Shape(), Float32)
}

// String implements fmt.Stringer.
func (s Spec) String() string {
	return fmt.Sprintf("%s%v:%s", s.Name, []int(s.Shape), s.DType)
}
