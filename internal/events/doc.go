// Package events implements the client side of the device's WebSocket
// event channel.
//
// The one event family overlayctl cares about is session visibility
// (session/resume, client/visible): when the device reports that a viewer
// session woke up, registered hooks trigger an entity store refresh so the
// console converges on whatever changed while it was idle. A refresh racing
// an in-flight debounced update is fine - the stores treat the next
// successful list as authoritative and the edit buffers merge around
// pending edits.
//
// Connections are not retried. A dropped channel ends Run; restarting is
// the caller's decision, matching the tool's user-initiated recovery model.
package events
