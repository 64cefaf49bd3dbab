package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/onnxexport/internal/export"
)

func NewCmdConverters() *cobra.Command {
	return &cobra.Command{
		Use:   "converters",
		Short: "List the registered ONNX converters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := export.Converters()
			if len(names) == 0 {
				return fmt.Errorf("no converters are registered")
			}
			for _, name := range names {
				marker := " "
				if name == export.DefaultConverter {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
		SilenceUsage: true,
	}
}
