package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the table's records",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sortBy, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}

		var records []*model.Record
		switch sortBy {
		case "":
			records = t.Records()
		case "created":
			records = t.SortedByDate()
		default:
			records = t.SortedByField(sortBy)
		}
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
		return printRecordList(cmd.OutOrStdout(), records, t.Fields())
	},
}

func init() {
	listCmd.Flags().String("sort", "", `sort by "created" (newest first) or by a field name`)
	listCmd.Flags().Int("limit", 0, "show at most this many records")
}
