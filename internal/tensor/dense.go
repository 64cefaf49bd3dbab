// Package tensor provides the dense float32 tensors and tensor descriptors
// used by the nn layers and the ONNX exporters.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dense is a row-major float32 tensor backed by a flat slice.
type Dense struct {
	shape Shape
	data  []float32
}

// New allocates a zero-filled tensor of the given shape.
func New(shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Dense{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// FromSlice wraps data with shape. The slice is not copied.
func FromSlice(data []float32, shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Dense{shape: shape.Clone(), data: data}, nil
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float32, shape Shape) *Dense {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor shape. The caller must not modify it.
func (d *Dense) Shape() Shape {
	return d.shape
}

// Rank returns the number of dimensions.
func (d *Dense) Rank() int {
	return len(d.shape)
}

// Data returns the underlying storage.
func (d *Dense) Data() []float32 {
	return d.data
}

// NumElements returns the number of stored values.
func (d *Dense) NumElements() int {
	return len(d.data)
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	data := make([]float32, len(d.data))
	copy(data, d.data)
	return &Dense{shape: d.shape.Clone(), data: data}
}

// Reshape returns a view with a different shape over the same storage.
func (d *Dense) Reshape(shape Shape) (*Dense, error) {
	if shape.NumElements() != len(d.data) {
		return nil, fmt.Errorf("cannot reshape %v into %v", d.shape, shape)
	}
	return &Dense{shape: shape.Clone(), data: d.data}, nil
}

// Bytes encodes the values as little-endian IEEE 754, the layout used by
// ONNX raw_data and SafeTensors F32.
func (d *Dense) Bytes() []byte {
	buf := make([]byte, 4*len(d.data))
	for i, v := range d.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// FromBytes decodes little-endian float32 values.
func FromBytes(raw []byte, shape Shape) (*Dense, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("byte length %d is not a multiple of 4", len(raw))
	}
	data := make([]float32, len(raw)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return FromSlice(data, shape)
}
