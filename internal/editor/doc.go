// Package editor implements the per-entity edit buffer and the debounced
// sync scheduler that keeps it consistent with the device.
//
// # Lifecycle
//
// A buffer is seeded from an authoritative store entity and moves through
// an explicit state machine:
//
//	Seeding -> Ready -> Dirty -> Syncing -> Ready (loop)
//
// Seeding exists so that populating the form cannot fire a spurious update:
// nothing syncs until Activate is called, once, after the first render.
//
// # Debounce and batching
//
// Each field group has a trailing-edge debounce timer (text 500ms, numeric
// and position 300ms, toggles 200ms) owned by the scheduler as a cancellable
// handle from an injectable Clock. When the first timer fires, every dirty
// group is drained into one candidate entity; the candidate is compared
// structurally against the base and the update call is suppressed when they
// are equal. Apply bypasses the timers but not the suppression.
//
// # Authoritative refresh
//
// Reseed merges a fresh server entity under the draft: server values win
// everywhere except fields that still have a pending debounce. A flushed
// field is no longer pending, so a late list() cannot be clobbered by edits
// the user already stopped making.
//
// Close cancels all timers. That is a correctness contract, not an
// optimization: a buffer whose panel closed must never update the device.
package editor
