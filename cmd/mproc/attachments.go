package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newAttachCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "attach", Short: "Manage task attachments"}
	cmd.AddCommand(
		newAttachAddCmd(cfg, jsonOutput),
		newAttachRemoveCmd(cfg, jsonOutput),
		newAttachGetCmd(cfg),
	)
	return cmd
}

func newAttachAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "add <task-id> <path> [<path>...]",
		Short: "Upload files and append them to a task",
		Args:  requireAtLeastArgs(2, "task id and at least one path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files uploadFiles
			defer files.Close()

			uploads := make([]tasks.Upload, 0, len(args)-1)
			for _, path := range args[1:] {
				up, err := files.open(path, mediaType)
				if err != nil {
					return err
				}
				uploads = append(uploads, up)
			}

			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				task, err := repo.Update(cmd.Context(), args[0], tasks.TaskPatch{Attachments: uploads})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				added := task.Attachments[len(task.Attachments)-len(uploads):]
				for _, ref := range added {
					if err := writePlain("%s %s\n", ref.ID, ref.Name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mediaType, "media-type", "", "media type for every file (default: detect)")
	return cmd
}

func newAttachRemoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <task-id> <blob-id>",
		Short: "Detach one file from a task",
		Args:  requireExactlyArgs(2, "task id and blob id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				task, err := repo.RemoveAttachment(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(task)
				}
				return writePlain("%s\n", args[1])
			})
		},
	}
}

func newAttachGetCmd(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "get <blob-id>",
		Short: "Write stored file content to disk (or stdout with -o -)",
		Args:  requireExactlyArgs(1, "blob id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				record, err := repo.Blob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("%w: %s", errBlobNotFound, args[0])
				}

				if outPath == "-" {
					_, err := stdout.Write(record.Payload)
					return err
				}
				path := strings.TrimSpace(outPath)
				if path == "" {
					path = safeFileName(record.Name, record.ID)
				}
				if !force {
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("output file %s exists (use --force to overwrite)", path)
					}
				}
				if err := os.WriteFile(path, record.Payload, 0o644); err != nil {
					return err
				}
				return writePlain("%s\n", path)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default: the stored file name; - for stdout)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite output path if it exists")
	return cmd
}

// safeFileName strips directories from a stored name so content is always
// written into the current directory.
func safeFileName(name, fallback string) string {
	base := filepath.Base(strings.TrimSpace(name))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return fallback
	}
	return base
}
