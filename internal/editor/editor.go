package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/logging"
)

// State is the lifecycle state of an edit buffer.
//
// Seeding -> Ready -> Dirty -> Syncing -> Ready, looping. The Seeding state
// replaces the mount-time "ready" flag trick: no outbound sync can fire
// until Activate has been called exactly once.
type State int

const (
	// StateSeeding means the buffer was just (re)seeded and has not been
	// activated; edits are recorded but nothing may sync
	StateSeeding State = iota
	// StateReady means the draft matches the last flushed state
	StateReady
	// StateDirty means edits are accumulating behind debounce timers
	StateDirty
	// StateSyncing means exactly one update call is in flight
	StateSyncing
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateSeeding:
		return "seeding"
	case StateReady:
		return "ready"
	case StateDirty:
		return "dirty"
	case StateSyncing:
		return "syncing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Group classifies fields by the debounce settle delay they get. Fields in
// the same group share one timer; edits across groups still coalesce into a
// single update when their windows overlap.
type Group string

const (
	// GroupText covers free-text fields
	GroupText Group = "text"
	// GroupNumeric covers numeric fields (sizes, transparency)
	GroupNumeric Group = "numeric"
	// GroupToggle covers booleans and single-pick selections
	GroupToggle Group = "toggle"
	// GroupPosition covers placement edits
	GroupPosition Group = "position"
)

// SettleDelay returns the trailing-edge debounce delay for a field group.
// Text gets the longest window since users type continuously; toggles fire
// almost immediately.
func SettleDelay(g Group) time.Duration {
	switch g {
	case GroupText:
		return 500 * time.Millisecond
	case GroupToggle:
		return 200 * time.Millisecond
	default:
		return 300 * time.Millisecond
	}
}

// positionField is the pending-edit key used for placement edits.
const positionField = "position"

// Updater is the slice of the entity store the scheduler calls into.
type Updater interface {
	Update(ctx context.Context, e entity.Entity) error
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock substitutes the debounce clock. Tests use a virtual clock.
func WithClock(c Clock) Option {
	return func(e *Editor) { e.clock = c }
}

// WithNotify registers the one-shot notification hook for business errors.
func WithNotify(f func(error)) Option {
	return func(e *Editor) { e.notify = f }
}

// WithTransportHook registers the hook invoked on transport failures, which
// the owner routes to the capability gate.
func WithTransportHook(f func(error)) Option {
	return func(e *Editor) { e.onTransport = f }
}

// Editor is the edit buffer for one entity plus the debounced sync
// scheduler that drains it.
//
// All methods are safe for concurrent use; debounce timers fire on their
// own goroutines.
type Editor struct {
	mu sync.Mutex

	updater     Updater
	clock       Clock
	notify      func(error)
	onTransport func(error)

	// base is the last known authoritative entity
	base entity.Entity

	// draft is the full local copy of editable fields, diverging from base
	// as the user edits
	draft entity.Entity

	state State

	// pending maps field name -> group for every field with an active
	// pending edit. Cleared on flush: a flushed field is no longer
	// "actively edited" and the next authoritative refresh owns it.
	pending map[string]Group

	// timers holds the armed debounce timer per group
	timers map[Group]Timer

	closed bool
}

// New seeds an edit buffer from an authoritative entity. The buffer starts
// in StateSeeding; the owner calls Activate after the first render.
func New(updater Updater, e entity.Entity, opts ...Option) *Editor {
	ed := &Editor{
		updater: updater,
		clock:   SystemClock(),
		base:    e.Clone(),
		draft:   e.Clone(),
		state:   StateSeeding,
		pending: map[string]Group{},
		timers:  map[Group]Timer{},
	}
	for _, opt := range opts {
		opt(ed)
	}
	return ed
}

// Activate transitions Seeding -> Ready exactly once. Edits recorded during
// seeding get their timers armed now; nothing can have fired earlier.
func (ed *Editor) Activate() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.state != StateSeeding || ed.closed {
		return
	}

	if len(ed.pending) == 0 {
		ed.state = StateReady
		return
	}

	ed.state = StateDirty
	for _, g := range ed.pending {
		ed.armLocked(g)
	}
}

// State returns the current lifecycle state.
func (ed *Editor) State() State {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.state
}

// Draft returns a deep copy of the current draft.
func (ed *Editor) Draft() entity.Entity {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.draft.Clone()
}

// Base returns a deep copy of the last known authoritative entity.
func (ed *Editor) Base() entity.Entity {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.base.Clone()
}

// PendingFields returns the names of fields with an active pending edit,
// sorted for stable output.
func (ed *Editor) PendingFields() []string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	out := make([]string, 0, len(ed.pending))
	for f := range ed.pending {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Set records an edit to a parameter field and (re)starts the group's
// debounce timer. During seeding the edit is recorded but no timer is
// armed; Activate arms it.
func (ed *Editor) Set(group Group, field string, value any) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.closed {
		return
	}

	if ed.draft.Params == nil {
		ed.draft.Params = map[string]any{}
	}
	ed.draft.Params[field] = value
	ed.markLocked(group, field)
}

// SetAnchor selects a named anchor. The draft's numeric pair is retained so
// reselecting custom placement restores it.
func (ed *Editor) SetAnchor(name string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.closed {
		return
	}

	ed.draft.Position = ed.draft.Position.WithAnchor(name)
	ed.markLocked(GroupPosition, positionField)
}

// SetCoordinates selects custom placement at an explicit pair.
func (ed *Editor) SetCoordinates(x, y float64) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.closed {
		return
	}

	ed.draft.Position = ed.draft.Position.WithCoordinates(x, y)
	ed.markLocked(GroupPosition, positionField)
}

// SelectCustom switches back to custom placement, restoring the retained
// numeric pair.
func (ed *Editor) SelectCustom() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.closed {
		return
	}

	ed.draft.Position = ed.draft.Position.AsCustom()
	ed.markLocked(GroupPosition, positionField)
}

// markLocked records a pending edit and arms its debounce timer.
// Caller holds ed.mu.
func (ed *Editor) markLocked(group Group, field string) {
	ed.pending[field] = group

	if ed.state == StateSeeding {
		return
	}
	if ed.state == StateReady {
		ed.state = StateDirty
	}
	ed.armLocked(group)
}

// armLocked (re)starts the debounce timer for a group. Caller holds ed.mu.
func (ed *Editor) armLocked(group Group) {
	if t, ok := ed.timers[group]; ok {
		t.Stop()
	}
	ed.timers[group] = ed.clock.AfterFunc(SettleDelay(group), ed.timerFired)
}

func (ed *Editor) timerFired() {
	// Timer-driven flushes report through the notify/transport hooks; the
	// error return only matters for manual Apply.
	_ = ed.flush(context.Background())
}

// Apply flushes immediately, bypassing any pending debounce windows. The
// equality suppression still applies: a no-op draft issues no call.
func (ed *Editor) Apply(ctx context.Context) error {
	return ed.flush(ctx)
}

// flush drains every pending edit into at most one update call.
//
// All dirty field groups are batched together: whichever timer fires first
// stops the rest and carries their edits along, so a burst of edits across
// fields within one settle window produces exactly one update.
func (ed *Editor) flush(ctx context.Context) error {
	ed.mu.Lock()

	if ed.closed || ed.state == StateSeeding {
		ed.mu.Unlock()
		return nil
	}

	ed.stopTimersLocked()
	fields := make([]string, 0, len(ed.pending))
	for f := range ed.pending {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	ed.pending = map[string]Group{}

	// The draft is a full copy of the editable fields, so the candidate is
	// the draft carried over the base's immutable identity.
	candidate := ed.draft.Clone()
	candidate.Identity = ed.base.Identity
	candidate.Kind = ed.base.Kind

	if entity.Equal(candidate, ed.base) {
		ed.state = StateReady
		ed.mu.Unlock()
		return nil
	}

	ed.state = StateSyncing
	updater := ed.updater
	kind := candidate.Kind
	identity := candidate.Identity
	ed.mu.Unlock()

	logging.LogSyncFlush(kind.String(), identity, fields)
	err := updater.Update(ctx, candidate)

	ed.mu.Lock()
	if !ed.closed {
		if err == nil {
			// Provisional until the owner reseeds from the confirming list
			ed.base = candidate
		}
		if len(ed.pending) > 0 {
			ed.state = StateDirty
		} else {
			ed.state = StateReady
		}
	}
	ed.mu.Unlock()

	if err != nil {
		if deviceapi.IsTransportFailure(err) {
			if ed.onTransport != nil {
				ed.onTransport(err)
			}
		} else if ed.notify != nil {
			ed.notify(err)
		}
		return err
	}
	return nil
}

// Reseed replaces the buffer's base with a fresh authoritative entity.
//
// Server-confirmed values win for every field without an active pending
// edit; fields still behind a debounce window keep the draft value. The
// retained numeric pair survives an anchor-valued refresh so the custom
// placement round-trip keeps working.
func (ed *Editor) Reseed(e entity.Entity) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.closed {
		return
	}

	merged := e.Clone()
	if merged.Params == nil {
		merged.Params = map[string]any{}
	}

	for field, group := range ed.pending {
		if group == GroupPosition || field == positionField {
			merged.Position = ed.draft.Position
			continue
		}
		merged.Params[field] = ed.draft.Params[field]
	}

	if _, ok := ed.pending[positionField]; !ok && !merged.Position.Custom {
		// Anchor from the server carries no pair; keep the one the user
		// typed so "custom" can restore it.
		merged.Position.X = ed.draft.Position.X
		merged.Position.Y = ed.draft.Position.Y
	}

	ed.base = e.Clone()
	ed.draft = merged

	if ed.state != StateSeeding && ed.state != StateSyncing {
		if len(ed.pending) > 0 {
			ed.state = StateDirty
		} else {
			ed.state = StateReady
		}
	}
}

// Close cancels every pending timer. A closed editor records nothing and
// never fires; this is the teardown contract that keeps a stray debounce
// from updating an entity whose panel is gone.
func (ed *Editor) Close() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	ed.closed = true
	ed.stopTimersLocked()
	ed.pending = map[string]Group{}
}

// stopTimersLocked stops and forgets all armed timers. Caller holds ed.mu.
func (ed *Editor) stopTimersLocked() {
	for g, t := range ed.timers {
		t.Stop()
		delete(ed.timers, g)
	}
}
