package main

import (
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <field> <value>",
	Short: "Find records whose field loosely equals value",
	Long: `Find records whose field loosely equals value.

The value is parsed as JSON when it looks like a JSON literal, so 42 matches
both the number 42 and the string "42". Records whose field is empty never
match.`,
	GroupID: "records",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}
		records := t.RecordsByField(args[0], parseValue(args[1]))
		return printRecordList(cmd.OutOrStdout(), records, t.Fields())
	},
}
