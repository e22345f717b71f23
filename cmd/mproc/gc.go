package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mproc/internal/api"
	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Find stored files no task references (delete them with --apply)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := withRepo
			if apply {
				run = withWritableRepo
			}
			return run(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				result, err := repo.SweepBlobs(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(api.BlobGCResponse(result))
				}
				if result.DryRun {
					return writePlain("%d unreferenced %s, %s reclaimable (dry run; use --apply to delete)\n",
						result.CandidateCount, plural(result.CandidateCount, "file", "files"),
						humanize.Bytes(uint64(result.ReclaimedBytes)))
				}
				return writePlain("deleted %d of %d unreferenced %s, reclaimed %s (%d failed)\n",
					result.DeletedCount, result.CandidateCount, plural(result.CandidateCount, "file", "files"),
					humanize.Bytes(uint64(result.ReclaimedBytes)), result.FailedCount)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete the unreferenced files")
	return cmd
}
