package main

import (
	"github.com/spf13/cobra"

	"mproc/internal/api"
	"mproc/internal/config"
	"mproc/internal/tasks"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show data directory, progress and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp   api.InfoResponse
				source = "local"
			)
			if client, running := runningServer(cmd.Context(), cfg); running {
				info, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				resp = info
				source = client.BaseURL()
			} else {
				err := withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
					resp = api.InfoResponse{
						DataDir:    cfg.DataDir,
						TotalTasks: repo.Len(),
						Progress:   repo.Progress(),
						Settings:   repo.Settings(),
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			if *jsonOutput {
				return writeJSON(resp)
			}
			_ = writePlain("data_dir: %s\n", resp.DataDir)
			_ = writePlain("server: %s\n", source)
			_ = writePlain("total_tasks: %d\n", resp.TotalTasks)
			_ = writePlain("progress: %s\n", formatProgress(resp.Progress))
			_ = writePlain("sort: %s\n", resp.Settings.Sort)
			return writePlain("theme: %s\n", resp.Settings.Theme)
		},
	}
	return cmd
}
