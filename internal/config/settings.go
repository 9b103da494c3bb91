package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const settingsFile = "settings.json"

// Settings holds console display preferences. The JSON schema is stable -
// it mirrors what the browser console keeps in local storage, so renaming a
// field is a breaking change for users migrating settings between the two.
type Settings struct {
	// SortOrder is the entity list sort order: "identity" or "kind"
	SortOrder string `json:"sortOrder"`

	// BBox controls bounding-box appearance in the preview
	BBox BBoxSettings `json:"bbox"`

	// DateTimeFormat is the strftime-style format used by datetime overlays
	DateTimeFormat string `json:"dateTimeFormat"`
}

// BBoxSettings controls how detection bounding boxes are drawn.
type BBoxSettings struct {
	Color     string `json:"color"`
	Thickness int    `json:"thickness"`
	Rounded   bool   `json:"rounded"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() *Settings {
	return &Settings{
		SortOrder: "identity",
		BBox: BBoxSettings{
			Color:     "yellow",
			Thickness: 2,
		},
		DateTimeFormat: "%F %T",
	}
}

// GetSettingsPath returns the full path to the settings file.
func GetSettingsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, settingsFile), nil
}

// LoadSettings loads console settings from disk, falling back to defaults
// when no file exists yet.
func LoadSettings() (*Settings, error) {
	path, err := GetSettingsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings path: %w", err)
	}
	return loadSettingsFrom(path)
}

func loadSettingsFrom(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return settings, nil
}

// Save saves the settings to disk with an atomic write.
func (s *Settings) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := ensureConfigDir(); err != nil {
		return fmt.Errorf("failed to ensure config directory exists: %w", err)
	}

	path, err := GetSettingsPath()
	if err != nil {
		return fmt.Errorf("failed to get settings path: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}

	return nil
}
