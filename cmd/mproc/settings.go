package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

func newSettingsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Show or change preferences"}
	cmd.AddCommand(
		newSettingsShowCmd(cfg, jsonOutput),
		newSettingsSetCmd(cfg, jsonOutput),
	)
	return cmd
}

func newSettingsShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				return writeSettings(repo.Settings(), *jsonOutput)
			})
		},
	}
}

func newSettingsSetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		sortMode       string
		theme          string
		particles      bool
		particlesCount int
		autosave       bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch tasks.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("sort") {
				patch.Sort = &sortMode
			}
			if flags.Changed("theme") {
				patch.Theme = &theme
			}
			if flags.Changed("particles") {
				patch.Particles = &particles
			}
			if flags.Changed("particles-count") {
				patch.ParticlesCount = &particlesCount
			}
			if flags.Changed("autosave-attachments") {
				patch.AutosaveAttachments = &autosave
			}
			if patch == (tasks.SettingsPatch{}) {
				return errors.New("nothing to update")
			}

			return withWritableRepo(cmd.Context(), cfg, func(repo *tasks.Repository) error {
				settings, err := repo.UpdateSettings(cmd.Context(), patch)
				if err != nil {
					return err
				}
				return writeSettings(settings, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&sortMode, "sort", "", "sort mode (manual, dueAsc, dueDesc, title)")
	cmd.Flags().StringVar(&theme, "theme", "", "theme (dark, light)")
	cmd.Flags().BoolVar(&particles, "particles", true, "animated background")
	cmd.Flags().IntVar(&particlesCount, "particles-count", models.DefaultParticlesCount, "particle count")
	cmd.Flags().BoolVar(&autosave, "autosave-attachments", true, "store attachments as soon as they are picked")
	return cmd
}

func writeSettings(settings models.Settings, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(settings)
	}
	return writePlain("sort: %s\ntheme: %s\nparticles: %t\nparticles_count: %d\nautosave_attachments: %t\n",
		settings.Sort, settings.Theme, settings.Particles, settings.ParticlesCount, settings.AutosaveAttachments)
}
