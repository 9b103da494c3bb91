package store

import (
	"encoding/json"
	"testing"

	"github.com/nwstad/overlayctl/internal/entity"
)

func TestProfileVocabularies(t *testing.T) {
	w := WidgetProfile()
	if w.Endpoint.Path != "/config/cgi/widgets.cgi" || w.Endpoint.APIVersion != "2.0" {
		t.Errorf("widget endpoint = %+v", w.Endpoint)
	}
	if w.AddMethodFor(entity.KindWidget) != "addWidget" {
		t.Errorf("widget add = %s", w.AddMethodFor(entity.KindWidget))
	}
	if w.BulkRemoveMethod != "removeAllWidgets" {
		t.Errorf("widget bulk remove = %s", w.BulkRemoveMethod)
	}

	o := OverlayProfile()
	if o.Endpoint.Path != "/config/cgi/overlays.cgi" || o.Endpoint.APIVersion != "1.0" {
		t.Errorf("overlay endpoint = %+v", o.Endpoint)
	}
	// Overlays split methods by type
	if o.AddMethodFor(entity.KindImageOverlay) != "addImage" {
		t.Errorf("image add = %s", o.AddMethodFor(entity.KindImageOverlay))
	}
	if o.AddMethodFor(entity.KindTextOverlay) != "addText" {
		t.Errorf("text add = %s", o.AddMethodFor(entity.KindTextOverlay))
	}
	if o.UpdateMethodFor(entity.KindImageOverlay) != "setImage" {
		t.Errorf("image update = %s", o.UpdateMethodFor(entity.KindImageOverlay))
	}
	if o.UpdateMethodFor(entity.KindTextOverlay) != "setText" {
		t.Errorf("text update = %s", o.UpdateMethodFor(entity.KindTextOverlay))
	}
	// Overlays have no bulk primitive
	if o.BulkRemoveMethod != "" {
		t.Errorf("overlay bulk remove = %s, want none", o.BulkRemoveMethod)
	}
}

func TestEncodeEntityAnchor(t *testing.T) {
	e := entity.Entity{
		Identity: 4,
		Kind:     entity.KindTextOverlay,
		Position: entity.AtCoordinates(0.1, 0.2).WithAnchor("topLeft"),
		Params:   map[string]any{"text": "Hello", "fontSize": 24},
	}

	obj := EncodeEntity(e, true)
	if obj["identity"] != 4 {
		t.Errorf("identity = %v", obj["identity"])
	}
	if obj["text"] != "Hello" {
		t.Errorf("text = %v", obj["text"])
	}
	// Anchor selected: the wire form is the name, never the retained pair
	if obj["position"] != "topLeft" {
		t.Errorf("position = %v, want topLeft", obj["position"])
	}
}

func TestEncodeEntityCustom(t *testing.T) {
	e := entity.Entity{
		Kind:     entity.KindTextOverlay,
		Position: entity.AtCoordinates(0.5, -0.9),
		Params:   map[string]any{"text": "Hello"},
	}

	obj := EncodeEntity(e, false)
	if _, has := obj["identity"]; has {
		t.Error("drafts must not carry an identity")
	}
	pos, ok := obj["position"].(map[string]any)
	if !ok || pos["x"] != 0.5 || pos["y"] != -0.9 {
		t.Errorf("position = %v, want pair object", obj["position"])
	}
}

func TestDecodeOverlayListSplitsKinds(t *testing.T) {
	data := json.RawMessage(`{
		"imageOverlays": [{"identity":1,"overlayPath":"/etc/logo.png","position":"bottomRight"}],
		"textOverlays":  [{"identity":2,"text":"Hello","position":{"x":0.5,"y":-0.9}}]
	}`)

	entities, err := decodeOverlayList(data)
	if err != nil {
		t.Fatalf("decodeOverlayList: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("len = %d, want 2", len(entities))
	}

	if entities[0].Kind != entity.KindImageOverlay || entities[0].Params["overlayPath"] != "/etc/logo.png" {
		t.Errorf("image = %+v", entities[0])
	}
	if entities[1].Kind != entity.KindTextOverlay || entities[1].Params["text"] != "Hello" {
		t.Errorf("text = %+v", entities[1])
	}
	if !entities[1].Position.Custom {
		t.Errorf("text position = %+v, want custom", entities[1].Position)
	}
	// Lifted keys must not leak into params
	if _, has := entities[1].Params["identity"]; has {
		t.Error("identity leaked into params")
	}
	if _, has := entities[1].Params["position"]; has {
		t.Error("position leaked into params")
	}
}

func TestDecodeWidgetListErrors(t *testing.T) {
	if _, err := decodeWidgetList(json.RawMessage(`not json`)); err == nil {
		t.Error("malformed list should fail")
	}
	if _, err := decodeWidgetList(json.RawMessage(`{"widgets":[{"identity":"nope"}]}`)); err == nil {
		t.Error("non-numeric identity should fail")
	}
}

func TestDecodeOutOfEnumAnchor(t *testing.T) {
	// Older firmware can report anchors the current vocabulary doesn't
	// have. They decode fine; Mode sorts them into custom.
	data := widgetList(`{"identity":1,"type":"meter","position":"upper-left"}`)
	entities, err := decodeWidgetList(data)
	if err != nil {
		t.Fatalf("decodeWidgetList: %v", err)
	}
	if entities[0].Position.Mode(entity.KindWidget) != entity.ModeCustom {
		t.Errorf("mode = %v, want custom for out-of-enum anchor", entities[0].Position.Mode(entity.KindWidget))
	}
}
