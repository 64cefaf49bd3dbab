package loader

import (
	"encoding/binary"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxexport/internal/nn"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// writeRawSafeTensors writes a file with a hand-made header.
func writeRawSafeTensors(t *testing.T, header map[string]any, data []byte) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "raw.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	buf = append(buf, data...)
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.safetensors")
	tensors := map[string]*tensor.Dense{
		"weight": tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}),
		"bias":   tensor.MustFromSlice([]float32{-1, 0.5}, tensor.Shape{2}),
	}
	require.NoError(t, WriteSafeTensors(path, tensors, map[string]string{"format": "pt"}))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"bias", "weight"}, r.TensorNames())
	assert.Equal(t, map[string]string{"format": "pt"}, r.Metadata())

	info, err := r.TensorInfo("weight")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF32, info.DType)
	assert.Equal(t, [2]int64{8, 32}, info.DataOffsets, "tensors are laid out alphabetically")

	w, err := r.LoadTensor("weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, w.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.Data())

	_, err = r.LoadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestSafeTensorsRejectsMalformedFiles(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]any
		data   []byte
	}{
		{
			name:   "beyond data",
			header: map[string]any{"w": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{2}, DataOffsets: [2]int64{0, 8}}},
			data:   make([]byte, 4),
		},
		{
			name:   "size does not match shape",
			header: map[string]any{"w": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{3}, DataOffsets: [2]int64{0, 8}}},
			data:   make([]byte, 8),
		},
		{
			name:   "reversed offsets",
			header: map[string]any{"w": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{1}, DataOffsets: [2]int64{4, 0}}},
			data:   make([]byte, 4),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSafeTensorsReader(writeRawSafeTensors(t, tt.header, tt.data))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrOutOfBounds)
			assert.Equal(t, "w", verr.Tensor)
		})
	}
}

func TestSafeTensorsHeaderTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.safetensors")
	require.NoError(t, os.WriteFile(path, binary.LittleEndian.AppendUint64(nil, MaxHeaderSize+1), 0o600))

	_, err := NewSafeTensorsReader(path)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestLoadTensorRejectsOtherDTypes(t *testing.T) {
	path := writeRawSafeTensors(t, map[string]any{
		"w": SafeTensorInfo{DType: SafeTensorsF16, Shape: []int{2}, DataOffsets: [2]int64{0, 4}},
	}, make([]byte, 4))

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.LoadTensor("w")
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func newModel(seed uint64) *nn.Sequential {
	rng := rand.New(rand.NewPCG(seed, seed))
	return nn.NewSequential(
		nn.NewLinear(3, 4, true, rng),
		nn.NewLayerNorm(tensor.Shape{4}, 1e-5),
		nn.NewReLU(),
		nn.NewLinear(4, 2, false, rng),
	)
}

func TestModuleWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	src := newModel(1)
	src.Module(1).(*nn.LayerNorm).Gamma.Tensor().Data()[2] = 3
	require.NoError(t, SaveModuleWeights(path, src, nil))

	dst := newModel(2)
	require.NoError(t, LoadModuleWeights(path, dst))

	for name, want := range src.StateDict() {
		assert.Equal(t, want.Data(), dst.StateDict()[name].Data(), name)
	}
}

func TestLoadModuleWeightsMismatch(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(dir, "partial.safetensors")
		sd := newModel(1).StateDict()
		delete(sd, "3.weight")
		require.NoError(t, WriteSafeTensors(path, sd, nil))

		err := LoadModuleWeights(path, newModel(2))
		require.ErrorIs(t, err, ErrWeightMismatch)
		assert.Contains(t, err.Error(), "3.weight")
	})

	t.Run("unused", func(t *testing.T) {
		path := filepath.Join(dir, "extra.safetensors")
		sd := newModel(1).StateDict()
		sd["9.weight"] = tensor.MustFromSlice([]float32{1}, tensor.Shape{1})
		require.NoError(t, WriteSafeTensors(path, sd, nil))

		assert.ErrorIs(t, LoadModuleWeights(path, newModel(2)), ErrWeightMismatch)
		assert.NoError(t, LoadModuleWeights(path, newModel(2), LoadOptions{AllowUnused: true}))
	})

	t.Run("shape", func(t *testing.T) {
		path := filepath.Join(dir, "shape.safetensors")
		sd := newModel(1).StateDict()
		sd["0.bias"] = tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{2})
		require.NoError(t, WriteSafeTensors(path, sd, nil))

		assert.ErrorIs(t, LoadModuleWeights(path, newModel(2)), ErrWeightMismatch)
	})
}

func TestLoadModuleWeightsSkipsUnusedBuffers(t *testing.T) {
	weight := tensor.MustFromSlice([]float32{0.5, -2}, tensor.Shape{2, 1})
	data := append(weight.Bytes(), binary.LittleEndian.AppendUint64(nil, 1200)...)
	path := writeRawSafeTensors(t, map[string]any{
		"0.weight": SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{2, 1}, DataOffsets: [2]int64{0, 8}},
		"steps":    SafeTensorInfo{DType: SafeTensorsI64, Shape: []int{1}, DataOffsets: [2]int64{8, 16}},
	}, data)

	model := nn.NewSequential(nn.NewLinear(1, 2, false, nil))
	require.NoError(t, LoadModuleWeights(path, model, LoadOptions{AllowUnused: true}))
	assert.Equal(t, []float32{0.5, -2}, model.StateDict()["0.weight"].Data())

	err := LoadModuleWeights(path, nn.NewSequential(nn.NewLinear(1, 2, false, nil)))
	require.ErrorIs(t, err, ErrWeightMismatch)
	assert.Contains(t, err.Error(), "steps")
}

func TestLoadModuleWeightsTorchNames(t *testing.T) {
	src := newModel(1)
	torch := make(map[string]*tensor.Dense)
	for name, v := range src.StateDict() {
		switch name {
		case "1.gamma":
			name = "1.weight"
		case "1.beta":
			name = "1.bias"
		}
		torch["model."+name] = v
	}
	path := filepath.Join(t.TempDir(), "torch.safetensors")
	require.NoError(t, WriteSafeTensors(path, torch, nil))

	dst := newModel(2)
	err := LoadModuleWeights(path, dst, LoadOptions{Format: FormatTorch, Prefix: "model."})
	require.NoError(t, err)
	assert.Equal(t, src.StateDict()["1.gamma"].Data(), dst.StateDict()["1.gamma"].Data())

	err = LoadModuleWeights(path, dst, LoadOptions{Format: "gguf"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTorchMapper(t *testing.T) {
	m := NewTorchMapper(newModel(1), "")
	assert.Equal(t, "1.gamma", m.MapName("1.weight"))
	assert.Equal(t, "1.beta", m.MapName("1.bias"))
	assert.Equal(t, "0.weight", m.MapName("0.weight"))
	assert.Equal(t, "3.weight", m.MapName("3.weight"))
}
