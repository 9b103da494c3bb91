package entity

import (
	"encoding/json"
	"reflect"
)

// Kind discriminates the entity union tracked by the device.
type Kind string

const (
	// KindWidget is a live data overlay (meter, graph)
	KindWidget Kind = "widget"
	// KindImageOverlay is a static image burn-in
	KindImageOverlay Kind = "imageOverlay"
	// KindTextOverlay is a text burn-in
	KindTextOverlay Kind = "textOverlay"
)

// String returns the wire name of the kind
func (k Kind) String() string {
	return string(k)
}

// Entity is a widget or overlay instance as the device holds it.
//
// An Entity in the store always corresponds to something the device
// currently has. Local drafts being edited are NOT entities - they live in
// edit buffers and carry no such guarantee.
type Entity struct {
	// Identity is assigned by the device on creation and immutable after.
	// Zero for drafts that have not been added yet.
	Identity int

	// Kind discriminates widget / imageOverlay / textOverlay
	Kind Kind

	// Position is the on-screen placement (named anchor or coordinate pair)
	Position Position

	// Params holds the type-specific parameters (text, fontSize, colors,
	// transparency, ...). Legal keys and ranges come from the capability
	// descriptor for the kind.
	Params map[string]any
}

// Clone returns a deep copy of the entity. Snapshot stores and edit buffers
// must never share map references with the authoritative list.
func (e Entity) Clone() Entity {
	out := e
	if e.Params != nil {
		out.Params = cloneValue(e.Params).(map[string]any)
	}
	return out
}

// Param returns a named parameter, or nil when absent.
func (e Entity) Param(name string) any {
	return e.Params[name]
}

// WithParam returns a copy of the entity with one parameter replaced.
func (e Entity) WithParam(name string, value any) Entity {
	out := e.Clone()
	if out.Params == nil {
		out.Params = map[string]any{}
	}
	out.Params[name] = value
	return out
}

// Stripped returns a copy with the device-assigned identity removed, suitable
// for re-adding the entity as a new instance.
func (e Entity) Stripped() Entity {
	out := e.Clone()
	out.Identity = 0
	return out
}

// Equal reports deep structural equality between two entities.
//
// Parameter values are normalized before comparison so that a draft built
// from Go literals (int, float32) compares equal to the same entity decoded
// from JSON (float64). This equality drives no-op write suppression: a draft
// equal to the last known entity must not produce an update call.
func Equal(a, b Entity) bool {
	if a.Identity != b.Identity || a.Kind != b.Kind {
		return false
	}
	if !a.Position.Equal(b.Position) {
		return false
	}
	return reflect.DeepEqual(normalizeValue(a.Params), normalizeValue(b.Params))
}

// cloneValue deep-copies the JSON-shaped value graphs used in Params.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// normalizeValue rewrites all numeric leaves to float64 so structural
// comparison is independent of how the value was produced.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case nil:
		return nil
	default:
		return v
	}
}
