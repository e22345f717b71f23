package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id> [<id>...]",
		Short: "Show task details",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				found := make([]models.Task, 0, len(args))
				for _, id := range args {
					task, err := repo.Get(id)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					found = append(found, task)
				}

				if *jsonOutput {
					if len(found) == 1 {
						return writeJSON(found[0])
					}
					return writeJSON(found)
				}
				for i, task := range found {
					if i > 0 {
						if err := writePlain("\n"); err != nil {
							return err
						}
					}
					blobs, err := blobInfos(cmd.Context(), repo, task)
					if err != nil {
						return err
					}
					if err := writeTaskDetail(task, blobs); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}

// blobInfos looks up the stored records behind a task's attachments.
// Dangling references are left out of the map.
func blobInfos(ctx context.Context, repo *tasks.Repository, task models.Task) (map[string]models.BlobInfo, error) {
	infos := make(map[string]models.BlobInfo, len(task.Attachments))
	for _, ref := range task.Attachments {
		record, err := repo.Blob(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			infos[ref.ID] = record.BlobInfo
		}
	}
	return infos, nil
}
