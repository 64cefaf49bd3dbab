// Package cli implements the born-export command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewBornExportCommand returns the root command.
func NewBornExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: appName + " exports Born models to ONNX.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
		SilenceErrors: true,
	}
	cmd.AddCommand(NewCmdExport())
	cmd.AddCommand(NewCmdInspect())
	cmd.AddCommand(NewCmdConverters())
	cmd.AddCommand(NewCmdVersion())
	return cmd
}
