package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/tasks"
)

type updateCmdOptions struct {
	title       string
	due         string
	description string
	color       string
	iconPath    string
	clearIcon   bool
	attachments []string
}

func newUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &updateCmdOptions{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.iconPath != "" && opts.clearIcon {
				return errors.New("--icon and --clear-icon are mutually exclusive")
			}

			var files uploadFiles
			defer files.Close()

			patch, err := buildTaskPatch(cmd, opts, &files)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update")
			}

			return runTaskPatch(cmd, cfg, jsonOutput, args[0], patch)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.due, "due", "", "due date (YYYY-MM-DD); empty clears it")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&opts.color, "color", "c", "", "tag color (#rrggbb)")
	cmd.Flags().StringVar(&opts.iconPath, "icon", "", "replace the icon with this image file")
	cmd.Flags().BoolVar(&opts.clearIcon, "clear-icon", false, "remove the icon")
	cmd.Flags().StringArrayVarP(&opts.attachments, "attach", "a", nil, "file to append as an attachment (repeatable)")

	return cmd
}

func buildTaskPatch(cmd *cobra.Command, opts *updateCmdOptions, files *uploadFiles) (tasks.TaskPatch, error) {
	patch := tasks.TaskPatch{ClearIcon: opts.clearIcon}
	flags := cmd.Flags()
	if flags.Changed("title") {
		patch.Title = &opts.title
	}
	if flags.Changed("due") {
		patch.Due = &opts.due
	}
	if flags.Changed("description") {
		patch.Description = &opts.description
	}
	if flags.Changed("color") {
		patch.Color = &opts.color
	}
	if opts.iconPath != "" {
		icon, err := files.open(opts.iconPath, "")
		if err != nil {
			return patch, err
		}
		patch.Icon = &icon
	}
	uploads, err := files.openAll(opts.attachments)
	if err != nil {
		return patch, err
	}
	patch.Attachments = uploads
	return patch, nil
}
