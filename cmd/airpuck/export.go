package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/config"
	tablesync "github.com/alfredjeanlab/airpuck/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a JSONL snapshot of the table",
	Long: `Export a JSONL snapshot of the table.

Without any destination the snapshot is written to stdout. Destinations come
from --out and the AIRPUCK_EXPORT_FILE, AIRPUCK_EXPORT_S3_BUCKET and
AIRPUCK_EXPORT_GIT_REPO settings. With --schedule the export repeats every
AIRPUCK_EXPORT_INTERVAL until interrupted.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		schedule, _ := cmd.Flags().GetBool("schedule")
		ctx := cmd.Context()

		t, err := readyTable(ctx)
		if err != nil {
			return err
		}
		dests, err := exportDestinations(ctx, cfg, out)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return tablesync.ExportJSONL(ctx, t, cmd.OutOrStdout())
		}

		scheduler := tablesync.NewScheduler(t, dests, cfg.ExportInterval, logger)
		if !schedule {
			return scheduler.RunOnce(ctx)
		}
		scheduler.Start()
		logger.Info("export scheduler started", "interval", cfg.ExportInterval, "destinations", len(dests))
		<-ctx.Done()
		scheduler.Stop()
		logger.Info("export scheduler stopped")
		return nil
	},
}

// exportDestinations builds every configured destination. out, when set,
// replaces the configured export file.
func exportDestinations(ctx context.Context, c *config.Config, out string) ([]tablesync.Destination, error) {
	var dests []tablesync.Destination

	file := c.ExportFile
	if out != "" {
		file = out
	}
	if file != "" {
		dests = append(dests, tablesync.NewFileDestination(file))
	}

	if c.ExportS3Bucket != "" {
		s3Dest, err := tablesync.NewS3Destination(ctx, c.ExportS3Bucket, c.ExportS3Key, c.ExportS3Region, c.ExportS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("S3 destination: %w", err)
		}
		dests = append(dests, s3Dest)
	}

	if c.ExportGitRepo != "" {
		dests = append(dests, tablesync.NewGitDestination(c.ExportGitRepo, c.ExportGitFile, c.ExportGitBranch))
	}
	return dests, nil
}

func init() {
	exportCmd.Flags().String("out", "", "write the snapshot to this file")
	exportCmd.Flags().Bool("schedule", false, "keep exporting every AIRPUCK_EXPORT_INTERVAL")
}
