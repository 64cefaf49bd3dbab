// Command born-export builds Born models from YAML descriptions and exports them to ONNX.
package main

import (
	"fmt"
	"os"

	_ "github.com/born-ml/onnxexport/converter/born2onnx"
	"github.com/born-ml/onnxexport/internal/cli"
)

func main() {
	command := cli.NewBornExportCommand()
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
