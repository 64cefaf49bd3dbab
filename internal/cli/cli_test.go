package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/born-ml/onnxexport/converter/born2onnx"
	"github.com/born-ml/onnxexport/internal/config"
	"github.com/born-ml/onnxexport/internal/loader"
	"github.com/born-ml/onnxexport/internal/onnx"
)

const mlpConfig = `
seed: 3
model:
  layers:
    - {type: linear, in: 4, out: 6}
    - {type: tanh}
    - {type: linear, in: 6, out: 2}
    - {type: softmax}
`

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewBornExportCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, appName)
}

func TestConverters(t *testing.T) {
	out, _, err := run(t, "converters")
	require.NoError(t, err)
	assert.Contains(t, out, "* born2onnx")
}

func TestExportAndInspect(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "mlp.yaml", mlpConfig)
	onnxPath := filepath.Join(dir, "mlp.onnx")

	out, stderr, err := run(t, "export", "-c", cfgPath, "-o", onnxPath, "--opset", "11", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, onnxPath)
	assert.Contains(t, stderr, `"level":"WARN"`, "a non-pinned opset is reported")

	proto, err := onnx.ParseFile(onnxPath)
	require.NoError(t, err)
	assert.Equal(t, int64(9), proto.DefaultOpset())
	assert.Len(t, proto.Graph.Nodes, 4)

	out, _, err = run(t, "inspect", onnxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Gemm, Softmax, Tanh")
	assert.Contains(t, out, "BORN.EXPORT_ID")

	_, stderr, err = run(t, "inspect", onnxPath, "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"parsed model"`)
	assert.Contains(t, stderr, `"nodes":4`)

	_, stderr, err = run(t, "inspect", onnxPath)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "parsed model")
}

func TestExportOutputSpecAndWeights(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "mlp.yaml", mlpConfig)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	trained, err := cfg.Model.Build(99)
	require.NoError(t, err)
	weights := filepath.Join(dir, "mlp.safetensors")
	require.NoError(t, loader.SaveModuleWeights(weights, trained, nil))

	onnxPath := filepath.Join(dir, "hidden.onnx")
	_, _, err = run(t, "export", "-c", cfgPath, "-o", onnxPath, "--weights", weights, "--output-spec", "1")
	require.NoError(t, err)

	proto, err := onnx.ParseFile(onnxPath)
	require.NoError(t, err)
	require.Len(t, proto.Graph.Outputs, 1)
	assert.Equal(t, "1", proto.Graph.Outputs[0].Name)
	require.Len(t, proto.Graph.Initializers, 2)
	assert.Equal(t, trained.StateDict()["0.weight"].Bytes(), proto.Graph.Initializers[0].RawData)

	out, _, err := run(t, "inspect", "-o", "json", onnxPath)
	require.NoError(t, err)
	var info onnx.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, []string{"Gemm", "Tanh"}, info.Operators)

	out, _, err = run(t, "inspect", "-o", "yaml", onnxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "producer_name: born2onnx")
}

func TestExportTrace(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "mlp.yaml", mlpConfig)

	_, stderr, err := run(t, "export", "-c", cfgPath, "-o", filepath.Join(dir, "m.onnx"), "--trace")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"Name": "onnx.Export"`)
}

func TestExportErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "mlp.yaml", mlpConfig)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no config", []string{"export"}, "config file is required"},
		{"bad log format", []string{"export", "-c", cfgPath, "--log-format", "xml"}, "log-format"},
		{"missing converter", []string{"export", "-c", cfgPath, "-o", filepath.Join(dir, "a.onnx"), "--converter", "legacy2onnx"}, "legacy2onnx"},
		{"unknown output", []string{"export", "-c", cfgPath, "-o", filepath.Join(dir, "b.onnx"), "--output-spec", "9"}, "unknown output"},
		{"bad inspect format", []string{"inspect", "-o", "xml", "m.onnx"}, "output format"},
		{"missing file", []string{"inspect", filepath.Join(dir, "none.onnx")}, "none.onnx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
