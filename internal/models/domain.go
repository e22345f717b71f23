package models

import (
	"fmt"
	"strings"
	"time"
)

// SortMode selects a read-only ordering of the task list.
type SortMode string

const (
	SortManual  SortMode = "manual"
	SortDueAsc  SortMode = "dueAsc"
	SortDueDesc SortMode = "dueDesc"
	SortTitle   SortMode = "title"
)

// DueLayout is the calendar date format of Task.Due.
const DueLayout = "2006-01-02"

var validSortModes = map[SortMode]struct{}{
	SortManual:  {},
	SortDueAsc:  {},
	SortDueDesc: {},
	SortTitle:   {},
}

var validThemes = map[Theme]struct{}{
	ThemeDark:  {},
	ThemeLight: {},
}

// ParseSortMode accepts the canonical names case-insensitively; empty means manual.
func ParseSortMode(raw string) (SortMode, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return SortManual, nil
	}
	for mode := range validSortModes {
		if strings.EqualFold(string(mode), value) {
			return mode, nil
		}
	}
	return "", fmt.Errorf("invalid sort mode: %s", value)
}

func ParseTheme(raw string) (Theme, error) {
	value := Theme(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("theme is required")
	}
	if _, ok := validThemes[value]; !ok {
		return "", fmt.Errorf("invalid theme: %s", value)
	}
	return value, nil
}

// NormalizeDue validates a YYYY-MM-DD date. Empty input clears the due date.
func NormalizeDue(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	parsed, err := time.Parse(DueLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid due date %q: expected YYYY-MM-DD", value)
	}
	return parsed.Format(DueLayout), nil
}
