package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/born-ml/onnxexport/internal/config"
	"github.com/born-ml/onnxexport/internal/export"
	"github.com/born-ml/onnxexport/internal/loader"
)

type ExportOptions struct {
	GlobalOptions

	ConfigFile string
	Output     string
	Weights    string
	Opset      int
	OutputSpec []string
	Converter  string
	Trace      bool

	cfg *config.Config
}

func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdExport() *cobra.Command {
	o := DefaultExportOptions()
	cmd := &cobra.Command{
		Use:   "export -c model.yaml [-o model.onnx]",
		Short: "Build the model described by a config file and export it to ONNX.",
		Example: `  # Export with the settings from the file
  born-export export -c mlp.yaml

  # Load trained weights and keep only the hidden layer output
  born-export export -c mlp.yaml --weights mlp.safetensors --output-spec 1 -o hidden.onnx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ExportOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Model and export config file (YAML).")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Path of the ONNX file to write. Overrides export.output.")
	fs.StringVar(&o.Weights, "weights", o.Weights, "SafeTensors weights to load before exporting. Overrides weights.path.")
	fs.IntVar(&o.Opset, "opset", o.Opset, fmt.Sprintf("Requested opset version (documented: %s). Files are always written with opset %d.",
		strings.Join(lo.Map(export.SupportedOpsetVersions, func(v, _ int) string { return fmt.Sprint(v) }), ", "),
		export.PinnedOpsetVersion))
	fs.StringSliceVar(&o.OutputSpec, "output-spec", o.OutputSpec, "Module paths whose outputs become graph outputs, e.g. 1,3.0.")
	fs.StringVar(&o.Converter, "converter", o.Converter, "Registered converter to use. Overrides export.converter.")
	fs.BoolVar(&o.Trace, "trace", o.Trace, "Print the export trace span to stderr.")
}

func (o *ExportOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.ConfigFile == "" {
		return fmt.Errorf("a config file is required (-c)")
	}
	return nil
}

// Complete loads the config file and applies the flags set on cmd.
func (o *ExportOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Export.Output = o.Output
	}
	if flags.Changed("weights") {
		cfg.Weights.Path = o.Weights
	}
	if flags.Changed("opset") {
		cfg.Export.Opset = o.Opset
	}
	if flags.Changed("output-spec") {
		cfg.Export.OutputSpec = o.OutputSpec
	}
	if flags.Changed("converter") {
		cfg.Export.Converter = o.Converter
	}
	if flags.Changed("trace") {
		cfg.Trace.Enabled = o.Trace
	}
	o.cfg = cfg
	return nil
}

func (o *ExportOptions) Run(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := o.cfg

	logger, err := o.Logger(cmd, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	model, err := cfg.Model.Build(cfg.Seed)
	if err != nil {
		return err
	}
	if cfg.Weights.Path != "" {
		err := loader.LoadModuleWeights(cfg.Weights.Path, model, loader.LoadOptions{
			Format:      cfg.Weights.Format,
			Prefix:      cfg.Weights.Prefix,
			AllowUnused: cfg.Weights.AllowUnused,
		})
		if err != nil {
			return err
		}
	}

	exporter := export.NewExporter(nil, logger)
	if cfg.Trace.Enabled {
		tp, err := newTracerProvider(cmd)
		if err != nil {
			return err
		}
		defer func() {
			_ = tp.Shutdown(context.WithoutCancel(ctx))
		}()
		exporter.WithTracerProvider(tp)
	}

	opts := []export.Option{
		export.WithConverter(cfg.Export.Converter),
		export.WithOpsetVersion(cfg.Export.Opset),
		export.WithInputSpec(cfg.InputSpecs()...),
	}
	for key, value := range cfg.ConverterOptions() {
		opts = append(opts, export.WithOption(key, value))
	}
	if err := exporter.Export(ctx, export.NewRequest(model, cfg.Export.Output, opts...)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfg.Export.Output)
	return nil
}

func newTracerProvider(cmd *cobra.Command) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}
