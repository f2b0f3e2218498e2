package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	Short:   "Show the table's inferred fields",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		blank, _ := cmd.Flags().GetBool("blank")

		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if blank {
			return printJSON(out, t.BlankFields())
		}
		if jsonOutput {
			return printJSON(out, t.Fields())
		}
		for _, name := range t.Fields() {
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	fieldsCmd.Flags().Bool("blank", false, "print a JSON template with an empty value per field")
}
