package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newDuplicateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a task; the copy shares its files and starts active",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				task, err := repo.Duplicate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				return writePlain("%s\n", task.ID)
			})
		},
	}
}
