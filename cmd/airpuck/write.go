package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/client"
	"github.com/alfredjeanlab/airpuck/internal/model"
)

var addCmd = &cobra.Command{
	Use:     "add --field key=value...",
	Short:   "Create a record",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("field")
		rec, err := parseFields(pairs)
		if err != nil {
			return err
		}

		t, err := readyTable(cmd.Context())
		if err != nil {
			return err
		}
		created, err := t.Add(cmd.Context(), rec)
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), created, t.Fields())
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id> --field key=value...",
	Short:   "Change some fields of a record",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args[0], (*client.Table).Update)
	},
}

var replaceCmd = &cobra.Command{
	Use:     "replace <id> --field key=value...",
	Short:   "Replace all fields of a record",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args[0], (*client.Table).Replace)
	},
}

type writeMethod func(t *client.Table, ctx context.Context, rec *model.Record) error

func runWrite(cmd *cobra.Command, id string, write writeMethod) error {
	pairs, _ := cmd.Flags().GetStringArray("field")
	if len(pairs) == 0 {
		return fmt.Errorf("at least one --field is required")
	}
	rec, err := parseFields(pairs)
	if err != nil {
		return err
	}
	rec.ID = id

	t, err := readyTable(cmd.Context())
	if err != nil {
		return err
	}
	if err := write(t, cmd.Context(), rec); err != nil {
		return err
	}
	return printRecord(cmd.OutOrStdout(), t.RecordByID(id), t.Fields())
}

func init() {
	for _, c := range []*cobra.Command{addCmd, updateCmd, replaceCmd} {
		c.Flags().StringArray("field", nil, "field value as key=value; JSON literals are decoded (repeatable)")
	}
}
