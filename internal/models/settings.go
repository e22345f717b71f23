package models

// Settings is the small process-wide preferences record.
type Settings struct {
	Sort                SortMode `json:"sort"`
	AutosaveAttachments bool     `json:"autosave_attachments"`
	Particles           bool     `json:"particles"`
	ParticlesCount      int      `json:"particles_count"`
	Theme               Theme    `json:"theme"`
}

// Theme is the cosmetic color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultParticlesCount = 3500
)

// DefaultSettings returns the settings used before anything was saved.
func DefaultSettings() Settings {
	return Settings{
		Sort:                SortManual,
		AutosaveAttachments: true,
		Particles:           true,
		ParticlesCount:      DefaultParticlesCount,
		Theme:               ThemeDark,
	}
}
