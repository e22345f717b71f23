package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

type createCmdOptions struct {
	due         string
	description string
	color       string
	iconPath    string
	attachments []string
	filePath    string
}

func newCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &createCmdOptions{}
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, cfg, opts, jsonOutput, args)
		},
	}

	bindCreateFlags(cmd, opts)
	return cmd
}

func bindCreateFlags(cmd *cobra.Command, opts *createCmdOptions) {
	cmd.Flags().StringVar(&opts.due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&opts.color, "color", "c", "", "tag color (#rrggbb)")
	cmd.Flags().StringVar(&opts.iconPath, "icon", "", "icon image file")
	cmd.Flags().StringArrayVarP(&opts.attachments, "attach", "a", nil, "file to attach (repeatable)")
	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "markdown file for batch create")
}

func runCreate(cmd *cobra.Command, cfg *config.Config, opts *createCmdOptions, jsonOutput *bool, args []string) error {
	if opts.filePath != "" {
		if len(args) > 0 {
			return errors.New("title and --file are mutually exclusive")
		}
		return runCreateFromFile(cmd.Context(), cfg, opts.filePath, jsonOutput)
	}
	if len(args) == 0 {
		return errors.New("title is required")
	}

	var files uploadFiles
	defer files.Close()

	in := tasks.TaskInput{
		Title:       strings.Join(args, " "),
		Due:         opts.due,
		Description: opts.description,
		Color:       opts.color,
	}
	if opts.iconPath != "" {
		icon, err := files.open(opts.iconPath, "")
		if err != nil {
			return err
		}
		in.Icon = &icon
	}
	uploads, err := files.openAll(opts.attachments)
	if err != nil {
		return err
	}
	in.Attachments = uploads

	return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
		task, err := repo.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return writeJSON(task)
		}
		return writePlain("%s\n", task.ID)
	})
}

func runCreateFromFile(ctx context.Context, cfg *config.Config, filePath string, jsonOutput *bool) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	defaults, items, err := parseMarkdown(string(data))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no list items found in %s", filePath)
	}

	return withWritableRepo(ctx, cfg, func(repo *tasks.Repository) error {
		// New tasks go to the top, so create bottom-up to keep the file order.
		created := make([]models.Task, len(items))
		for i := len(items) - 1; i >= 0; i-- {
			item := items[i]
			task, err := repo.Create(ctx, defaults.input(item.Title))
			if err != nil {
				return fmt.Errorf("create %q: %w", item.Title, err)
			}
			if item.Completed {
				if task, err = repo.SetCompleted(ctx, task.ID, true); err != nil {
					return err
				}
			}
			created[i] = task
		}

		if *jsonOutput {
			return writeJSON(created)
		}
		for _, task := range created {
			if err := writePlain("%s\n", task.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
