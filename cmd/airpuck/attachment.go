package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

var attachmentCmd = &cobra.Command{
	Use:     "attachment <url> [filename]",
	Short:   "Print an attachment value for use in --field",
	Example: `  airpuck update rec123 --field "Files=[$(airpuck attachment https://example.com/a.png)]"`,
	GroupID: "records",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) == 2 {
			filename = args[1]
		}
		return printJSON(cmd.OutOrStdout(), model.NewAttachment(args[0], filename))
	},
}
