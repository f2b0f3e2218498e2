package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Delete a record",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}
		if err := t.Delete(cmd.Context(), &model.Record{ID: id}); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "deleted": true})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	},
}
