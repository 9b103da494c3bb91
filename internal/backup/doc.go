// Package backup implements the capped, index-addressed snapshot store for
// entity drafts.
//
// Snapshots are identity-stripped: restoring one yields a draft to feed the
// entity store's Add, which makes the device assign a fresh identity. The
// list is capped at MaxBackups and saves at the cap are silently rejected -
// existing snapshots are never rotated out to make room.
//
// Multi-delete snapshots its index set before deleting and walks it in
// descending order, so the indices the caller took from List stay valid for
// the whole operation.
//
// Storage is one JSON array per kind under the config directory, written
// atomically. The schema is stable; other tooling reads these files.
package backup
