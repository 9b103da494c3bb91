package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/entity"
)

// fakeClock is a virtual clock: timers fire only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Duration
	f        func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run outside the clock lock, like real timer goroutines.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.deadline <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fakeUpdater records updates and optionally fails them.
type fakeUpdater struct {
	mu      sync.Mutex
	updates []entity.Entity
	err     error
}

func (u *fakeUpdater) Update(ctx context.Context, e entity.Entity) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, e.Clone())
	return u.err
}

func (u *fakeUpdater) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.updates)
}

func (u *fakeUpdater) last() entity.Entity {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.updates[len(u.updates)-1]
}

func testEntity() entity.Entity {
	return entity.Entity{
		Identity: 2,
		Kind:     entity.KindTextOverlay,
		Position: entity.AtAnchor("topLeft"),
		Params:   map[string]any{"text": "Hello", "fontSize": float64(24)},
	}
}

func newTestEditor(t *testing.T) (*Editor, *fakeClock, *fakeUpdater) {
	t.Helper()
	clock := newFakeClock()
	updater := &fakeUpdater{}
	ed := New(updater, testEntity(), WithClock(clock))
	ed.Activate()
	return ed, clock, updater
}

func TestDebounceCoalescesBurst(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	// Three edits inside one settle window
	ed.Set(GroupText, "text", "H")
	clock.Advance(100 * time.Millisecond)
	ed.Set(GroupText, "text", "Hello W")
	clock.Advance(100 * time.Millisecond)
	ed.Set(GroupText, "text", "Hello World")

	if updater.count() != 0 {
		t.Fatalf("updates = %d before the window settled, want 0", updater.count())
	}

	clock.Advance(SettleDelay(GroupText))

	if updater.count() != 1 {
		t.Fatalf("updates = %d, want exactly 1", updater.count())
	}
	if updater.last().Params["text"] != "Hello World" {
		t.Errorf("text = %v, want final value", updater.last().Params["text"])
	}
	if ed.State() != StateReady {
		t.Errorf("state = %v, want ready", ed.State())
	}
}

func TestCrossGroupEditsBatchIntoOneUpdate(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	// Toggle settles first (200ms), but its flush drains the text edit too
	ed.Set(GroupText, "text", "Hello World")
	ed.Set(GroupToggle, "outline", true)

	clock.Advance(SettleDelay(GroupToggle))

	if updater.count() != 1 {
		t.Fatalf("updates = %d, want 1", updater.count())
	}
	last := updater.last()
	if last.Params["text"] != "Hello World" || last.Params["outline"] != true {
		t.Errorf("update = %+v, want both edits", last.Params)
	}

	// The text window firing later has nothing left to send
	clock.Advance(time.Second)
	if updater.count() != 1 {
		t.Errorf("updates = %d after drain, want still 1", updater.count())
	}
}

func TestEqualitySuppression(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	// Edit away and back within the window
	ed.Set(GroupText, "text", "Changed")
	ed.Set(GroupText, "text", "Hello")

	clock.Advance(time.Second)

	if updater.count() != 0 {
		t.Errorf("updates = %d, a draft equal to base must not sync", updater.count())
	}
	if ed.State() != StateReady {
		t.Errorf("state = %v, want ready", ed.State())
	}
}

func TestEqualitySuppressionNumericTypes(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	// Base fontSize is float64(24) (JSON); setting int 24 is still a no-op
	ed.Set(GroupNumeric, "fontSize", 24)
	clock.Advance(time.Second)

	if updater.count() != 0 {
		t.Errorf("updates = %d, numeric type change alone must not sync", updater.count())
	}
}

func TestSeedingNeverFires(t *testing.T) {
	clock := newFakeClock()
	updater := &fakeUpdater{}
	ed := New(updater, testEntity(), WithClock(clock))

	// Edits land before Activate
	ed.Set(GroupText, "text", "early edit")
	clock.Advance(time.Hour)

	if updater.count() != 0 {
		t.Fatalf("updates = %d during seeding, want 0", updater.count())
	}
	if ed.State() != StateSeeding {
		t.Errorf("state = %v, want seeding", ed.State())
	}

	// Activation arms the recorded edit
	ed.Activate()
	if ed.State() != StateDirty {
		t.Errorf("state = %v, want dirty after activation", ed.State())
	}
	clock.Advance(SettleDelay(GroupText))
	if updater.count() != 1 {
		t.Errorf("updates = %d after activation, want 1", updater.count())
	}
}

func TestApplyBypassesDebounce(t *testing.T) {
	ed, _, updater := newTestEditor(t)

	ed.Set(GroupText, "text", "Hello World")
	if err := ed.Apply(context.Background()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if updater.count() != 1 {
		t.Errorf("updates = %d, want immediate flush", updater.count())
	}
}

func TestCloseCancelsPendingTimers(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	ed.Set(GroupText, "text", "doomed edit")
	ed.Close()
	clock.Advance(time.Hour)

	if updater.count() != 0 {
		t.Errorf("updates = %d after Close, want 0", updater.count())
	}

	// A closed editor records nothing
	ed.Set(GroupText, "text", "more")
	clock.Advance(time.Hour)
	if updater.count() != 0 {
		t.Errorf("updates = %d, closed editor must stay silent", updater.count())
	}
}

func TestBusinessErrorKeepsEditing(t *testing.T) {
	clock := newFakeClock()
	updater := &fakeUpdater{err: deviceapi.NewAPIError(2001, "device busy")}

	var noticed error
	ed := New(updater, testEntity(), WithClock(clock), WithNotify(func(err error) {
		noticed = err
	}))
	ed.Activate()

	ed.Set(GroupText, "text", "Hello World")
	clock.Advance(time.Second)

	if noticed == nil {
		t.Fatal("business error should reach the notify hook")
	}
	// The draft keeps the user's value; no rollback
	if ed.Draft().Params["text"] != "Hello World" {
		t.Errorf("draft = %v, want user's value preserved", ed.Draft().Params["text"])
	}
	if ed.State() != StateReady {
		t.Errorf("state = %v, want ready (editing continues)", ed.State())
	}
}

func TestTransportErrorRoutesToTransportHook(t *testing.T) {
	clock := newFakeClock()
	updater := &fakeUpdater{err: deviceapi.NewTransportError("unreachable", nil)}

	var notified, transported error
	ed := New(updater, testEntity(), WithClock(clock),
		WithNotify(func(err error) { notified = err }),
		WithTransportHook(func(err error) { transported = err }),
	)
	ed.Activate()

	ed.Set(GroupText, "text", "Hello World")
	clock.Advance(time.Second)

	if transported == nil {
		t.Error("transport failure should reach the transport hook")
	}
	if notified != nil {
		t.Error("transport failure must not double-report through notify")
	}
}

func TestReseedServerWinsExceptPending(t *testing.T) {
	ed, clock, _ := newTestEditor(t)

	// One field pending, one settled
	ed.Set(GroupText, "text", "local edit")

	server := testEntity()
	server.Params["text"] = "server text"
	server.Params["fontSize"] = float64(48)
	ed.Reseed(server)

	draft := ed.Draft()
	if draft.Params["text"] != "local edit" {
		t.Errorf("text = %v, pending edit must survive reseed", draft.Params["text"])
	}
	if draft.Params["fontSize"] != float64(48) {
		t.Errorf("fontSize = %v, server value must win for settled fields", draft.Params["fontSize"])
	}

	// The pending edit still flushes against the new base
	clock.Advance(time.Second)
	if ed.Base().Params["fontSize"] != float64(48) {
		t.Errorf("base fontSize = %v, want server value", ed.Base().Params["fontSize"])
	}
}

func TestReseedPreservesRetainedPair(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	// User types a custom pair, then selects an anchor; the update settles
	ed.SetCoordinates(0.3, -0.7)
	ed.SetAnchor("bottomRight")
	clock.Advance(time.Second)
	if updater.count() != 1 {
		t.Fatalf("updates = %d, want 1", updater.count())
	}

	// Server echoes the anchor back with no pair
	server := testEntity()
	server.Position = entity.AtAnchor("bottomRight")
	ed.Reseed(server)

	// Switching to custom restores the typed pair
	ed.SelectCustom()
	draft := ed.Draft()
	if draft.Position.X != 0.3 || draft.Position.Y != -0.7 {
		t.Errorf("pair = (%v, %v), want retained (0.3, -0.7)",
			draft.Position.X, draft.Position.Y)
	}
}

func TestPositionAnchorThenCustomRoundTrip(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	ed.SetCoordinates(0.5, -0.9)
	clock.Advance(SettleDelay(GroupPosition))
	if updater.count() != 1 {
		t.Fatalf("updates = %d", updater.count())
	}
	if !updater.last().Position.Custom {
		t.Error("first update should carry the custom pair")
	}

	ed.SetAnchor("topRight")
	clock.Advance(SettleDelay(GroupPosition))
	if updater.count() != 2 {
		t.Fatalf("updates = %d", updater.count())
	}
	if updater.last().Position.Custom || updater.last().Position.Anchor != "topRight" {
		t.Errorf("second update = %+v, want anchor", updater.last().Position)
	}

	ed.SelectCustom()
	clock.Advance(SettleDelay(GroupPosition))
	if updater.count() != 3 {
		t.Fatalf("updates = %d", updater.count())
	}
	last := updater.last().Position
	if !last.Custom || last.X != 0.5 || last.Y != -0.9 {
		t.Errorf("third update = %+v, want restored pair", last)
	}
}

func TestRearmedTimerRestartsWindow(t *testing.T) {
	ed, clock, updater := newTestEditor(t)

	ed.Set(GroupText, "text", "a")
	clock.Advance(400 * time.Millisecond)
	// Re-edit just before the 500ms window closes: window restarts
	ed.Set(GroupText, "text", "ab")
	clock.Advance(400 * time.Millisecond)

	if updater.count() != 0 {
		t.Fatalf("updates = %d, restarted window should not have fired", updater.count())
	}

	clock.Advance(100 * time.Millisecond)
	if updater.count() != 1 {
		t.Errorf("updates = %d, want 1 after full window", updater.count())
	}
}

func TestDraftIsolation(t *testing.T) {
	ed, _, _ := newTestEditor(t)

	draft := ed.Draft()
	draft.Params["text"] = "mutated"

	if ed.Draft().Params["text"] != "Hello" {
		t.Error("Draft must return a deep copy")
	}
}
