package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.SortOrder != "identity" {
		t.Errorf("SortOrder = %v, want identity", s.SortOrder)
	}
	if s.BBox.Color != "yellow" || s.BBox.Thickness != 2 {
		t.Errorf("BBox = %+v", s.BBox)
	}
	if s.DateTimeFormat != "%F %T" {
		t.Errorf("DateTimeFormat = %v", s.DateTimeFormat)
	}
}

func TestLoadSettingsFromMissingFile(t *testing.T) {
	s, err := loadSettingsFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("loadSettingsFrom() error = %v", err)
	}
	if s.SortOrder != "identity" {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadSettingsPartialFile(t *testing.T) {
	// Fields absent from the file keep their defaults
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"sortOrder":"kind"}`), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := loadSettingsFrom(path)
	if err != nil {
		t.Fatalf("loadSettingsFrom() error = %v", err)
	}
	if s.SortOrder != "kind" {
		t.Errorf("SortOrder = %v, want kind", s.SortOrder)
	}
	if s.BBox.Color != "yellow" {
		t.Errorf("BBox.Color = %v, absent fields should keep defaults", s.BBox.Color)
	}
}

func TestLoadSettingsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSettingsFrom(path); err == nil {
		t.Error("malformed settings should fail")
	}
}
