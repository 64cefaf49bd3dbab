package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxexport/tensor"
)

func TestFromSlice(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, 6, x.NumElements())

	_, err = tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 3})
	assert.Error(t, err)
}

func TestNewSpec(t *testing.T) {
	spec := tensor.NewSpec("x", tensor.Shape{tensor.Dynamic, 3}, "")
	assert.Equal(t, tensor.Float32, spec.DType)
	assert.Equal(t, "x[-1 3]:float32", spec.String())

	x, err := tensor.New(tensor.Shape{1, 4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4}, tensor.SpecOf("y", x).Shape)
}
