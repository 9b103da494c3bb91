package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nwstad/overlayctl/internal/backup"
	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/editor"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/store"
)

// fakeDevice is an httptest-backed device holding text overlays in memory.
// It speaks the overlay CGI vocabulary and counts mutating calls.
type fakeDevice struct {
	mu       sync.Mutex
	nextID   int
	overlays map[int]map[string]any
	setCalls int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{nextID: 1, overlays: map[int]map[string]any{}}
}

func (d *fakeDevice) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/cgi/overlays.cgi" {
			http.NotFound(w, r)
			return
		}

		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("fake device: bad request body: %v", err)
			return
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		switch req.Method {
		case "getOverlayCapabilities":
			fmt.Fprint(w, `{"data":{"maxEntities":8,"fontSizeMin":8,"fontSizeMax":64}}`)

		case "list":
			items := make([]map[string]any, 0, len(d.overlays))
			for id, obj := range d.overlays {
				item := map[string]any{"identity": id}
				for k, v := range obj {
					item[k] = v
				}
				items = append(items, item)
			}
			payload, _ := json.Marshal(map[string]any{
				"data": map[string]any{"imageOverlays": []any{}, "textOverlays": items},
			})
			_, _ = w.Write(payload)

		case "addText":
			if _, has := req.Params["identity"]; has {
				fmt.Fprint(w, `{"error":{"code":1,"message":"add must not carry identity"}}`)
				return
			}
			d.overlays[d.nextID] = req.Params
			d.nextID++
			fmt.Fprint(w, `{"data":{}}`)

		case "setText":
			d.setCalls++
			id := int(req.Params["identity"].(float64))
			if _, ok := d.overlays[id]; !ok {
				fmt.Fprint(w, `{"error":{"code":2,"message":"no such overlay"}}`)
				return
			}
			obj := map[string]any{}
			for k, v := range req.Params {
				if k != "identity" {
					obj[k] = v
				}
			}
			d.overlays[id] = obj
			fmt.Fprint(w, `{"data":{}}`)

		case "remove":
			id := int(req.Params["identity"].(float64))
			delete(d.overlays, id)
			fmt.Fprint(w, `{"data":{}}`)

		default:
			fmt.Fprintf(w, `{"error":{"code":3,"message":"unknown method %s"}}`, req.Method)
		}
	}
}

// manualClock lets the test fire debounce timers deterministically.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) editor.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs every armed timer, as if all settle windows elapsed.
func (c *manualClock) Fire() {
	c.mu.Lock()
	pending := make([]*manualTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			pending = append(pending, t)
		}
	}
	c.timers = nil
	c.mu.Unlock()

	for _, t := range pending {
		t.f()
	}
}

// TestEditingSession drives a full session against the fake device: add an
// overlay, edit it live through the debounced buffer, back it up, remove
// it, and restore the backup as a new entity.
func TestEditingSession(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice()
	server := httptest.NewServer(device.handler(t))
	defer server.Close()

	client := deviceapi.NewClientWithURL(server.URL)
	s := store.New(client, store.OverlayProfile())

	// Mount: probe then list
	if err := s.Probe(ctx); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if s.Support() != store.Supported {
		t.Fatalf("Support = %v", s.Support())
	}
	if _, err := s.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}

	// Add a text overlay; the device assigns the identity
	draft := entity.Entity{
		Kind:     entity.KindTextOverlay,
		Position: entity.AtAnchor("topLeft"),
		Params:   map[string]any{"text": "Hello", "fontSize": 24},
	}
	if err := s.Add(ctx, draft); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entities := s.Entities()
	if len(entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(entities))
	}
	added := entities[0]
	if added.Identity == 0 {
		t.Fatal("device should have assigned an identity")
	}
	if added.Params["text"] != "Hello" {
		t.Fatalf("text = %v", added.Params["text"])
	}

	// Live editing: a burst of three edits within one settle window
	// reaches the device as exactly one update
	clock := &manualClock{}
	ed := editor.New(s, added, editor.WithClock(clock))
	ed.Activate()

	ed.Set(editor.GroupText, "text", "Hello ")
	ed.Set(editor.GroupText, "text", "Hello W")
	ed.Set(editor.GroupText, "text", "Hello World")
	clock.Fire()

	if device.setCalls != 1 {
		t.Errorf("setText calls = %d, want 1", device.setCalls)
	}
	refreshed := s.Entities()
	if len(refreshed) != 1 || refreshed[0].Params["text"] != "Hello World" {
		t.Fatalf("after edit: %+v", refreshed)
	}

	// Editing back to the synced value is suppressed entirely
	ed.Reseed(refreshed[0])
	ed.Set(editor.GroupText, "text", "Hello World")
	clock.Fire()
	if device.setCalls != 1 {
		t.Errorf("setText calls = %d after no-op edit, want still 1", device.setCalls)
	}
	ed.Close()

	// Back up the entity
	bs, err := backup.Open(t.TempDir(), entity.KindTextOverlay)
	if err != nil {
		t.Fatalf("backup.Open: %v", err)
	}
	if ok, err := bs.Save(refreshed[0]); err != nil || !ok {
		t.Fatalf("backup.Save = %v, %v", ok, err)
	}
	if bs.Len() != 1 {
		t.Fatalf("backups = %d, want 1", bs.Len())
	}

	// Remove from the device
	if err := s.Remove(ctx, added.Identity); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(s.Entities()) != 0 {
		t.Fatal("device should be empty after remove")
	}

	// Restore: the snapshot goes back through add, identity-less, and the
	// device assigns a fresh identity
	restored, err := bs.Restore(0)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Identity != 0 {
		t.Fatalf("restored identity = %d, want 0", restored.Identity)
	}
	if err := s.Add(ctx, restored); err != nil {
		t.Fatalf("Add restored: %v", err)
	}

	final := s.Entities()
	if len(final) != 1 {
		t.Fatalf("entities = %d after restore, want 1", len(final))
	}
	if final[0].Identity == added.Identity {
		t.Error("restored entity should get a fresh identity")
	}
	if final[0].Params["text"] != "Hello World" {
		t.Errorf("restored text = %v", final[0].Params["text"])
	}
}
