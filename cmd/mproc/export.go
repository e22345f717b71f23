package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newExportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tasks with their files inlined as one JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput != nil && *jsonOutput {
				return fmt.Errorf("export always emits JSON; remove --json")
			}
			return withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				var w io.Writer = stdout
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := repo.WriteExport(cmd.Context(), w); err != nil {
					return err
				}
				if outputPath != "" {
					fmt.Fprintf(os.Stderr, "exported %d %s to %s\n", repo.Len(), plural(repo.Len(), "task", "tasks"), outputPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")

	return cmd
}
