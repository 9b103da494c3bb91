package entity

import (
	"encoding/json"
	"fmt"
)

// Capabilities is the device-reported descriptor of legal parameters for an
// entity kind. It is fetched once per session per kind and treated as
// authoritative: the console only renders controls the descriptor allows and
// clamps values into the ranges it reports.
type Capabilities struct {
	// MaxEntities is the number of slots the device offers for this kind
	MaxEntities int `json:"maxEntities"`

	// Font size range for text rendering
	FontSizeMin int `json:"fontSizeMin"`
	FontSizeMax int `json:"fontSizeMax"`

	// Allowed color names for text and background
	TextColors       []string `json:"textColors"`
	BackgroundColors []string `json:"backgroundColors"`

	// Transparency range (percent)
	TransparencyMin int `json:"transparencyMin"`
	TransparencyMax int `json:"transparencyMax"`

	// Anchors the device accepts for this kind; empty means the built-in
	// enumeration applies
	Anchors []string `json:"anchors"`

	// Image overlay size limits (pixels); zero when not applicable
	MaxImageWidth  int `json:"maxImageWidth"`
	MaxImageHeight int `json:"maxImageHeight"`
}

// ParseCapabilities decodes a capability descriptor from a response payload.
func ParseCapabilities(data json.RawMessage) (*Capabilities, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty capability payload")
	}
	var caps Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capability descriptor: %w", err)
	}
	return &caps, nil
}

// ClampFontSize clamps a font size into the reported range.
func (c *Capabilities) ClampFontSize(size int) int {
	if c.FontSizeMax > 0 && size > c.FontSizeMax {
		return c.FontSizeMax
	}
	if size < c.FontSizeMin {
		return c.FontSizeMin
	}
	return size
}

// ClampTransparency clamps a transparency percentage into the reported range.
func (c *Capabilities) ClampTransparency(v int) int {
	if v < c.TransparencyMin {
		return c.TransparencyMin
	}
	if c.TransparencyMax > 0 && v > c.TransparencyMax {
		return c.TransparencyMax
	}
	return v
}

// AllowsTextColor reports whether a color name is legal for text.
// An empty descriptor list allows everything.
func (c *Capabilities) AllowsTextColor(name string) bool {
	return allowsColor(c.TextColors, name)
}

// AllowsBackgroundColor reports whether a color name is legal for background.
func (c *Capabilities) AllowsBackgroundColor(name string) bool {
	return allowsColor(c.BackgroundColors, name)
}

func allowsColor(allowed []string, name string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}

// AllowsAnchor reports whether the descriptor accepts a named anchor for the
// kind, falling back to the built-in enumeration when the device did not
// report one.
func (c *Capabilities) AllowsAnchor(kind Kind, name string) bool {
	if len(c.Anchors) == 0 {
		return IsAnchor(kind, name)
	}
	for _, a := range c.Anchors {
		if a == name {
			return true
		}
	}
	return false
}
