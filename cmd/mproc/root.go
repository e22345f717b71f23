package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mproc/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "mproc",
		Short:         "mproc is a local personal task tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newCreateCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newUpdateCmd(cfg, &jsonOutput),
		newDuplicateCmd(cfg, &jsonOutput),
		newRemoveCmd(cfg, &jsonOutput),
		newDoneCmd(cfg, &jsonOutput),
		newUndoneCmd(cfg, &jsonOutput),
		newReorderCmd(cfg, &jsonOutput),
		newClearCompletedCmd(cfg, &jsonOutput),
		newAttachCmd(cfg, &jsonOutput),
		newIconCmd(cfg, &jsonOutput),
		newExportCmd(cfg, &jsonOutput),
		newImportCmd(cfg, &jsonOutput),
		newSettingsCmd(cfg, &jsonOutput),
		newGCCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
	)

	return cmd
}
