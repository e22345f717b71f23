package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"mproc/internal/api"
	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

type listCmdOptions struct {
	sort      string
	query     string
	completed bool
	active    bool
}

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &listCmdOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks: active ones first, then completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.completed && opts.active {
				return errors.New("--completed and --active are mutually exclusive")
			}

			resp, err := listTasks(cmd, cfg, opts)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(resp)
			}
			if err := writeTaskList(resp.Tasks); err != nil {
				return err
			}
			return writePlain("%s\n", formatProgress(resp.Progress))
		},
	}

	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort mode (manual, dueAsc, dueDesc, title); defaults to the saved setting")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "only titles containing this text")
	cmd.Flags().BoolVar(&opts.completed, "completed", false, "only completed tasks")
	cmd.Flags().BoolVar(&opts.active, "active", false, "only active tasks")

	return cmd
}

func (o *listCmdOptions) completedFilter() *bool {
	switch {
	case o.completed:
		v := true
		return &v
	case o.active:
		v := false
		return &v
	}
	return nil
}

// listTasks reads through a running server when there is one, since its
// in-memory view is authoritative.
func listTasks(cmd *cobra.Command, cfg *config.Config, opts *listCmdOptions) (api.TaskListResponse, error) {
	if client, running := runningServer(cmd.Context(), cfg); running {
		query := url.Values{}
		if opts.sort != "" {
			query.Set("sort", opts.sort)
		}
		if opts.query != "" {
			query.Set("q", opts.query)
		}
		if filter := opts.completedFilter(); filter != nil {
			query.Set("completed", strconv.FormatBool(*filter))
		}
		return client.ListTasks(cmd.Context(), query)
	}

	var resp api.TaskListResponse
	err := withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
		mode := repo.Settings().Sort
		if opts.sort != "" {
			parsed, err := models.ParseSortMode(opts.sort)
			if err != nil {
				return fmt.Errorf("%w: %s", tasks.ErrInvalidSort, opts.sort)
			}
			mode = parsed
		}
		list, err := repo.List(tasks.ListOptions{Sort: mode, Query: opts.query, Completed: opts.completedFilter()})
		if err != nil {
			return err
		}
		if list == nil {
			list = []models.Task{}
		}
		resp = api.TaskListResponse{Tasks: list, Sort: mode, Progress: repo.Progress()}
		return nil
	})
	return resp, err
}
