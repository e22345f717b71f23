package api

import "mproc/internal/models"

// Event types sent on the /v1/events websocket.
const (
	EventTasksChanged    = "tasks_changed"
	EventSettingsChanged = "settings_changed"
)

// Event is one change notification.
type Event struct {
	Type     string           `json:"type"`
	IDs      []string         `json:"ids,omitempty"`
	Settings *models.Settings `json:"settings,omitempty"`
}
