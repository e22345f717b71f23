package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mproc/internal/config"
)

type configEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

func newConfigCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(
		newConfigGetCmd(cfg, jsonOutput),
		newConfigListCmd(cfg, jsonOutput),
		newConfigSetCmd(jsonOutput),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> [<key>...]",
		Short: "Print effective config values",
		Args:  requireAtLeastArgs(1, "config key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := configEntries(cfg, args)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(entries)
			}
			if len(entries) == 1 {
				return writePlain("%s\n", entries[0].Value)
			}
			return writeConfigEntries(entries)
		},
	}
}

func newConfigListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every config key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := configEntries(cfg, config.AllowedKeys())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(entries)
			}
			return writeConfigEntries(entries)
		},
	}
}

func newConfigSetCmd(jsonOutput *bool) *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a config value to the global (or project) file",
		Args:  requireExactlyArgs(2, "usage: mproc config set <key> <value>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			path, err := configWritePath(project)
			if err != nil {
				return err
			}
			if err := config.SetKey(path, key, value); err != nil {
				return err
			}

			entry := configEntry{Key: key, Value: strings.TrimSpace(value), Path: path}
			if *jsonOutput {
				return writeJSON(entry)
			}
			return writePlain("set %s in %s\n", key, path)
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "write to ./.mproc.toml (read only when MPROC_TRUST_PROJECT_CONFIG=true)")
	return cmd
}

func configEntries(cfg *config.Config, keys []string) ([]configEntry, error) {
	entries := make([]configEntry, 0, len(keys))
	for _, key := range keys {
		if !config.IsAllowedKey(key) {
			return nil, fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", "))
		}
		value, err := cfg.Get(key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, configEntry{Key: key, Value: value})
	}
	return entries, nil
}

func configWritePath(project bool) (string, error) {
	if project {
		return config.ProjectPath()
	}
	return config.GlobalPath()
}

func writeConfigEntries(entries []configEntry) error {
	for _, entry := range entries {
		if err := writePlain("%s = %s\n", entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}
