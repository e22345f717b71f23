package store

import (
	"context"
	"strconv"

	"mproc/internal/models"
)

const (
	settingSort                = "sort"
	settingAutosaveAttachments = "autosave_attachments"
	settingParticles           = "particles"
	settingParticlesCount      = "particles_count"
	settingTheme               = "theme"
)

// SaveSettings writes every settings key.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) (err error) {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	values := map[string]string{
		settingSort:                string(settings.Sort),
		settingAutosaveAttachments: strconv.FormatBool(settings.AutosaveAttachments),
		settingParticles:           strconv.FormatBool(settings.Particles),
		settingParticlesCount:      strconv.Itoa(settings.ParticlesCount),
		settingTheme:               string(settings.Theme),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for key, value := range values {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSettings reads stored settings. Missing or unreadable keys keep their defaults.
func (s *Store) LoadSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()
	db, err := s.handle(ctx)
	if err != nil {
		return settings, err
	}

	rows, err := db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return settings, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, err
		}
		applySetting(&settings, key, value)
	}
	return settings, rows.Err()
}

func applySetting(settings *models.Settings, key, value string) {
	switch key {
	case settingSort:
		if mode, err := models.ParseSortMode(value); err == nil {
			settings.Sort = mode
		}
	case settingAutosaveAttachments:
		if b, err := strconv.ParseBool(value); err == nil {
			settings.AutosaveAttachments = b
		}
	case settingParticles:
		if b, err := strconv.ParseBool(value); err == nil {
			settings.Particles = b
		}
	case settingParticlesCount:
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			settings.ParticlesCount = n
		}
	case settingTheme:
		if theme, err := models.ParseTheme(value); err == nil {
			settings.Theme = theme
		}
	}
}
