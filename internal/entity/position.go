package entity

import "fmt"

// Position is the dual representation of on-screen placement.
//
// On the wire a position is either a named anchor or an explicit coordinate
// pair, never both. A draft keeps the last numeric pair even while an anchor
// is selected, so switching back to custom placement does not lose it.
type Position struct {
	// Anchor is the named anchor, or whatever out-of-enum string the device
	// handed us. Ignored on the wire while Custom is set.
	Anchor string `json:"anchor,omitempty"`

	// X, Y is the coordinate pair, in the device's normalized [-1, 1] space.
	// Retained while an anchor is selected.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Custom selects the coordinate pair over the anchor
	Custom bool `json:"custom,omitempty"`
}

// Mode is the placement mode the UI derives from a position.
type Mode string

const (
	// ModeAnchor means a named anchor from the kind's enumeration is selected
	ModeAnchor Mode = "anchor"
	// ModeCustom means the explicit coordinate pair is selected
	ModeCustom Mode = "custom"
)

// Anchors shared by overlays and widgets.
var overlayAnchors = []string{
	"topLeft",
	"topRight",
	"bottomLeft",
	"bottomRight",
}

// Widgets accept additional edge and center anchors.
var widgetAnchors = []string{
	"topLeft",
	"top",
	"topRight",
	"left",
	"center",
	"right",
	"bottomLeft",
	"bottom",
	"bottomRight",
}

// AnchorsFor returns the legal named anchors for a kind.
func AnchorsFor(kind Kind) []string {
	if kind == KindWidget {
		return append([]string(nil), widgetAnchors...)
	}
	return append([]string(nil), overlayAnchors...)
}

// IsAnchor reports whether name is a legal named anchor for the kind.
func IsAnchor(kind Kind, name string) bool {
	for _, a := range AnchorsFor(kind) {
		if a == name {
			return true
		}
	}
	return false
}

// AtAnchor returns a position selecting the named anchor. The coordinate
// pair starts at the origin and is filled in as the user edits.
func AtAnchor(name string) Position {
	return Position{Anchor: name}
}

// AtCoordinates returns a custom position at the given pair.
func AtCoordinates(x, y float64) Position {
	return Position{X: x, Y: y, Custom: true}
}

// Mode infers the placement mode for a kind.
//
// A numeric pair selects custom. An anchor inside the kind's enumeration
// selects anchor mode. Any other string - including anchors from a different
// kind and legacy values older firmware may return - is treated as custom.
func (p Position) Mode(kind Kind) Mode {
	if p.Custom {
		return ModeCustom
	}
	if IsAnchor(kind, p.Anchor) {
		return ModeAnchor
	}
	return ModeCustom
}

// WithAnchor selects the named anchor while retaining the coordinate pair.
func (p Position) WithAnchor(name string) Position {
	p.Anchor = name
	p.Custom = false
	return p
}

// WithCoordinates selects custom placement at the given pair.
func (p Position) WithCoordinates(x, y float64) Position {
	p.X = x
	p.Y = y
	p.Custom = true
	return p
}

// AsCustom reselects custom placement, restoring the retained pair.
func (p Position) AsCustom() Position {
	p.Custom = true
	return p
}

// Equal compares positions by their wire-visible selection. The retained
// pair behind a selected anchor does not participate: two drafts anchored
// topLeft are the same position regardless of what pair each remembers.
func (p Position) Equal(o Position) bool {
	if p.Custom != o.Custom {
		return false
	}
	if p.Custom {
		return p.X == o.X && p.Y == o.Y
	}
	return p.Anchor == o.Anchor
}

// WireValue returns the mutually-exclusive wire form: the anchor name when
// an anchor is selected, otherwise a {"x","y"} object.
func (p Position) WireValue() any {
	if p.Custom {
		return map[string]any{"x": p.X, "y": p.Y}
	}
	return p.Anchor
}

// PositionFromWire decodes the wire form back into a Position.
// Strings become anchor selections (in or out of enum - Mode sorts that
// out); objects with x/y become custom pairs.
func PositionFromWire(v any) (Position, error) {
	switch t := v.(type) {
	case nil:
		return Position{}, nil
	case string:
		return Position{Anchor: t}, nil
	case map[string]any:
		x, okX := asFloat(t["x"])
		y, okY := asFloat(t["y"])
		if !okX || !okY {
			return Position{}, fmt.Errorf("position object missing x/y: %v", t)
		}
		return Position{X: x, Y: y, Custom: true}, nil
	default:
		return Position{}, fmt.Errorf("unsupported position value %T", v)
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// String renders a position for display.
func (p Position) String() string {
	if p.Custom {
		return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
	}
	if p.Anchor == "" {
		return "(unset)"
	}
	return p.Anchor
}
