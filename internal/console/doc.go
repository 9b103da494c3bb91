// Package console implements the interactive terminal console for editing
// widgets and overlays on a connected device.
//
// The console is a Bubble Tea program with three screens: the entity list
// (the authoritative view of what the device holds), an edit panel backed
// by a debounced edit buffer, and a backups browser for the local snapshot
// store. Edits on the edit panel sync to the device as the debounce windows
// settle; the panel's status badge tracks the buffer's lifecycle state.
//
// The device's WebSocket event channel can be wired in from outside via
// WakeMsg, which triggers a store refresh when a session-visibility event
// arrives.
package console
