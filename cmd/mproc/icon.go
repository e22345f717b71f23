package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newIconCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "icon", Short: "Set or clear a task icon"}
	cmd.AddCommand(
		newIconSetCmd(cfg, jsonOutput),
		newIconClearCmd(cfg, jsonOutput),
	)
	return cmd
}

func newIconSetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "set <task-id> <path>",
		Short: "Replace the task icon with an image file",
		Args:  requireExactlyArgs(2, "task id and path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files uploadFiles
			defer files.Close()

			icon, err := files.open(args[1], "")
			if err != nil {
				return err
			}
			return runTaskPatch(cmd, cfg, jsonOutput, args[0], tasks.TaskPatch{Icon: &icon})
		},
	}
}

func newIconClearCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <task-id>",
		Short: "Remove the task icon",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskPatch(cmd, cfg, jsonOutput, args[0], tasks.TaskPatch{ClearIcon: true})
		},
	}
}

func runTaskPatch(cmd *cobra.Command, cfg *config.Config, jsonOutput *bool, id string, patch tasks.TaskPatch) error {
	return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
		task, err := repo.Update(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return writeJSON(task)
		}
		return writePlain("%s\n", task.ID)
	})
}
