package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/born-ml/onnxexport/internal/onnx"
)

var legalInspectOutputTypes = []string{textFormat, jsonFormat, yamlFormat}

type InspectOptions struct {
	GlobalOptions

	Output string
}

func DefaultInspectOptions() *InspectOptions {
	return &InspectOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        textFormat,
	}
}

func NewCmdInspect() *cobra.Command {
	o := DefaultInspectOptions()
	cmd := &cobra.Command{
		Use:   "inspect MODEL.onnx",
		Short: "Print the inputs, outputs and operators of an ONNX file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd, args[0])
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *InspectOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalInspectOutputTypes, ", ")))
}

func (o *InspectOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !slices.Contains(legalInspectOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of (%s)", strings.Join(legalInspectOutputTypes, ", "))
	}
	return nil
}

func (o *InspectOptions) Run(cmd *cobra.Command, path string) error {
	logger, err := o.Logger(cmd, "", "")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	info, err := onnx.GetModelInfo(path)
	if err != nil {
		return err
	}
	logger.Debug("parsed model",
		slog.String("file", path),
		slog.Int64("ir_version", info.IRVersion),
		slog.Int("nodes", info.NodeCount),
	)

	out := cmd.OutOrStdout()
	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling model info: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case yamlFormat:
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshalling model info: %w", err)
		}
		_, err = out.Write(data)
		return err
	default:
		return printInfo(out, info)
	}
}

func printInfo(out io.Writer, info *onnx.ModelInfo) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "PRODUCER:\t%s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Fprintf(w, "IR VERSION:\t%d\n", info.IRVersion)
	fmt.Fprintf(w, "OPSET:\t%d\n", info.OpsetVersion)
	fmt.Fprintf(w, "INPUTS:\t%s\n", strings.Join(info.InputNames, ", "))
	fmt.Fprintf(w, "OUTPUTS:\t%s\n", strings.Join(info.OutputNames, ", "))
	fmt.Fprintf(w, "NODES:\t%d\n", info.NodeCount)
	fmt.Fprintf(w, "INITIALIZERS:\t%d\n", info.WeightCount)
	fmt.Fprintf(w, "OPERATORS:\t%s\n", strings.Join(info.Operators, ", "))

	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", strings.ToUpper(k), info.Metadata[k])
	}
	return w.Flush()
}
