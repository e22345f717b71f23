package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/api"
	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newRemoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id> [<id>...]",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete tasks and any files only they reference",
		Args:    requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				for _, id := range args {
					if err := repo.Remove(cmd.Context(), id); err != nil {
						return err
					}
				}
				if *jsonOutput {
					return writeJSON(map[string][]string{"removed": args})
				}
				for _, id := range args {
					if err := writePlain("%s\n", id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newClearCompletedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				removed, err := repo.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(api.ClearCompletedResponse{Removed: removed})
				}
				return writePlain("removed %d completed %s\n", removed, plural(removed, "task", "tasks"))
			})
		},
	}
}
