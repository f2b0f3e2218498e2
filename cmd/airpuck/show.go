package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/client"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show one record",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		remote, _ := cmd.Flags().GetBool("remote")

		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}

		rec := t.RecordByID(id)
		if remote {
			if rec, err = t.Refresh(cmd.Context(), id); err != nil {
				return err
			}
		}
		if rec == nil {
			return fmt.Errorf("%s: %w", id, client.ErrRecordNotFound)
		}
		return printRecord(cmd.OutOrStdout(), rec, t.Fields())
	},
}

func init() {
	showCmd.Flags().Bool("remote", false, "fetch the record from the service instead of the cache")
}
