package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"osapi/internal/config"
	"osapi/internal/server"
)

func newReconcileCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report stored images and records that no longer match",
		Long: "Compares the files under the upload directory with the image paths stored in the database.\n" +
			"Orphaned files are deleted only with --apply. Records whose file is missing are reported, never changed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, blobs, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := localSentenceService(cfg, st, blobs)
			result, err := svc.Reconcile(cmd.Context(), apply)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writeReconcileResult(result)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned image files")
	return cmd
}

func writeReconcileResult(result server.ReconcileResult) error {
	if err := writePlain("%s files, %s records\n", humanize.Comma(int64(result.BlobCount)), humanize.Comma(int64(result.RecordCount))); err != nil {
		return err
	}
	for _, path := range result.OrphanedBlobs {
		if err := writePlain("orphaned: %s\n", path); err != nil {
			return err
		}
	}
	for _, path := range result.DanglingRecords {
		if err := writePlain("missing:  %s\n", path); err != nil {
			return err
		}
	}
	if result.DryRun {
		if len(result.OrphanedBlobs) > 0 {
			return writePlain("dry run; pass --apply to delete %d orphaned files\n", len(result.OrphanedBlobs))
		}
		return nil
	}
	return writePlain("deleted %d, failed %d\n", result.DeletedCount, result.FailedCount)
}
