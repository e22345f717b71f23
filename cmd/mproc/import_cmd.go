package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"mproc/internal/api"
	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <path|->",
		Short: "Replace all tasks with the contents of an export document",
		Args:  requireExactlyArgs(1, "input path is required (use - for stdin)"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				result, err := repo.Import(cmd.Context(), src, force)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(api.ImportResponse{
						Imported:  result.Imported,
						Stored:    result.Stored,
						Collected: result.Collected,
					})
				}
				return writePlain("imported %d %s (%d files stored, %d released)\n",
					result.Imported, plural(result.Imported, "task", "tasks"),
					result.Stored, result.Collected.DeletedCount)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing tasks")
	return cmd
}
