package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

func newDoneCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newCompletionCmd(cfg, jsonOutput, "done", "Mark tasks completed", true)
}

func newUndoneCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return newCompletionCmd(cfg, jsonOutput, "undone", "Mark tasks active again", false)
}

func newCompletionCmd(cfg *config.Config, jsonOutput *bool, use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> [<id>...]",
		Short: short,
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				updated := make([]models.Task, 0, len(args))
				for _, id := range args {
					task, err := repo.SetCompleted(cmd.Context(), id, completed)
					if err != nil {
						return err
					}
					updated = append(updated, task)
				}
				if *jsonOutput {
					return writeJSON(updated)
				}
				return writeTaskList(updated)
			})
		},
	}
}
