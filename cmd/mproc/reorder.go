package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

func newReorderCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var completed bool

	cmd := &cobra.Command{
		Use:   "reorder <id> [<id>...]",
		Short: "Set the manual order of the active (or completed) list",
		Long: "Set the manual order of one list. The named tasks move to the top in the\n" +
			"given order and join that list; tasks of the same list that are not named\n" +
			"keep their relative order after them. The other list is left alone.",
		Args: requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				if err := repo.Reorder(cmd.Context(), args, completed); err != nil {
					return err
				}
				list, err := repo.List(tasks.ListOptions{Sort: models.SortManual, Completed: &completed})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(list)
				}
				return writeTaskList(list)
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "reorder the completed list")
	return cmd
}
