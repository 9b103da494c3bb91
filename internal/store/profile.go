package store

import (
	"encoding/json"
	"fmt"

	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/entity"
)

// Device endpoints for the two entity families. Widgets and overlays live on
// separate CGI channels with separate API versions and method vocabularies.
var (
	// WidgetEndpoint is the widget configuration channel
	WidgetEndpoint = deviceapi.Endpoint{Path: "/config/cgi/widgets.cgi", APIVersion: "2.0"}

	// OverlayEndpoint is the image/text overlay configuration channel
	OverlayEndpoint = deviceapi.Endpoint{Path: "/config/cgi/overlays.cgi", APIVersion: "1.0"}
)

// Profile binds a store to one entity family's wire vocabulary: which
// endpoint it lives on, what the methods are called, and how the list
// payload decodes into entities.
type Profile struct {
	// Name is the family name used in log lines and messages
	Name string

	// Endpoint is the CGI channel for this family
	Endpoint deviceapi.Endpoint

	// Method names
	ListMethod         string
	CapabilitiesMethod string
	RemoveMethod       string

	// BulkRemoveMethod is the device's bulk removal primitive, empty when
	// the family has none. The store's RemoveAll never uses it; see
	// Store.RemoveAll.
	BulkRemoveMethod string

	// AddMethodFor and UpdateMethodFor select the method name per kind.
	// Overlays split add/update by type (addImage/addText, setImage/setText);
	// widgets use a single pair.
	AddMethodFor    func(entity.Kind) string
	UpdateMethodFor func(entity.Kind) string

	// DecodeList turns the list response payload into entities
	DecodeList func(json.RawMessage) ([]entity.Entity, error)
}

// WidgetProfile returns the profile for the widget family.
func WidgetProfile() Profile {
	return Profile{
		Name:               "widget",
		Endpoint:           WidgetEndpoint,
		ListMethod:         "listWidgets",
		CapabilitiesMethod: "listCapabilities",
		RemoveMethod:       "removeWidget",
		BulkRemoveMethod:   "removeAllWidgets",
		AddMethodFor:       func(entity.Kind) string { return "addWidget" },
		UpdateMethodFor:    func(entity.Kind) string { return "updateWidget" },
		DecodeList:         decodeWidgetList,
	}
}

// OverlayProfile returns the profile for the image/text overlay family.
func OverlayProfile() Profile {
	return Profile{
		Name:               "overlay",
		Endpoint:           OverlayEndpoint,
		ListMethod:         "list",
		CapabilitiesMethod: "getOverlayCapabilities",
		RemoveMethod:       "remove",
		AddMethodFor: func(k entity.Kind) string {
			if k == entity.KindImageOverlay {
				return "addImage"
			}
			return "addText"
		},
		UpdateMethodFor: func(k entity.Kind) string {
			if k == entity.KindImageOverlay {
				return "setImage"
			}
			return "setText"
		},
		DecodeList: decodeOverlayList,
	}
}

// EncodeEntity converts an entity to its wire object: the flattened params
// with the position in its mutually-exclusive wire form, plus the identity
// when the entity already exists on the device.
func EncodeEntity(e entity.Entity, withIdentity bool) map[string]any {
	out := make(map[string]any, len(e.Params)+2)
	for k, v := range e.Params {
		out[k] = v
	}
	out["position"] = e.Position.WireValue()
	if withIdentity {
		out["identity"] = e.Identity
	}
	return out
}

// decodeWireEntity converts a wire object back into an entity. "identity"
// and "position" are lifted out; every other key is a type-specific param.
func decodeWireEntity(kind entity.Kind, obj map[string]any) (entity.Entity, error) {
	e := entity.Entity{Kind: kind, Params: map[string]any{}}

	for k, v := range obj {
		switch k {
		case "identity":
			f, ok := v.(float64)
			if !ok {
				return entity.Entity{}, fmt.Errorf("%s entity has non-numeric identity %v", kind, v)
			}
			e.Identity = int(f)
		case "position":
			pos, err := entity.PositionFromWire(v)
			if err != nil {
				return entity.Entity{}, fmt.Errorf("%s entity %d: %w", kind, e.Identity, err)
			}
			e.Position = pos
		default:
			e.Params[k] = v
		}
	}

	return e, nil
}

func decodeWidgetList(data json.RawMessage) ([]entity.Entity, error) {
	var payload struct {
		Widgets []map[string]any `json:"widgets"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse widget list: %w", err)
	}

	out := make([]entity.Entity, 0, len(payload.Widgets))
	for _, obj := range payload.Widgets {
		e, err := decodeWireEntity(entity.KindWidget, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeOverlayList(data json.RawMessage) ([]entity.Entity, error) {
	var payload struct {
		ImageOverlays []map[string]any `json:"imageOverlays"`
		TextOverlays  []map[string]any `json:"textOverlays"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse overlay list: %w", err)
	}

	out := make([]entity.Entity, 0, len(payload.ImageOverlays)+len(payload.TextOverlays))
	for _, obj := range payload.ImageOverlays {
		e, err := decodeWireEntity(entity.KindImageOverlay, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	for _, obj := range payload.TextOverlays {
		e, err := decodeWireEntity(entity.KindTextOverlay, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
