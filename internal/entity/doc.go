// Package entity defines the data model shared by the entity store, edit
// buffers, and backup store: the widget/overlay union, the dual position
// representation, and the device-reported capability descriptor.
//
// Two operations here carry most of the weight:
//
//   - Equal: deep structural equality with numeric normalization. The sync
//     scheduler compares a candidate draft against the last known entity and
//     suppresses the update call when they are equal.
//   - Clone: deep copy. Backups and edit buffers must never alias the
//     authoritative list's maps.
//
// Position keeps both representations at once - a named anchor and the last
// numeric pair - because the wire format is mutually exclusive but the UI
// contract is not: selecting an anchor must not wipe the pair the user typed.
package entity
