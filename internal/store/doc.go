// Package store implements the authoritative entity store and the
// capability gate for one entity family (widgets or overlays).
//
// The store's cache only ever holds what the device confirmed: mutations
// are followed by an implicit list rather than an optimistic projection,
// with the single exception of Remove's immediate local filter. RemoveAll
// is a sequential fold of Remove that reports success unconditionally -
// preserved legacy behavior, pinned by tests.
//
// The capability gate is a one-way valve per session: unknown until the
// first probe, then supported or unsupported. Any transport failure flips
// the family to unsupported and every subsequent operation short-circuits
// with ErrUnsupported without touching the network.
package store
