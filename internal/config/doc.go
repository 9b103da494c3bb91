// Package config manages overlayctl's persisted local state under the OS
// config directory:
//
//   - registry.yaml: user-defined metadata for known devices (nicknames,
//     last IP, default auth username). Passwords are never stored.
//   - settings.json: console display preferences (sort order, bounding-box
//     appearance, datetime format). The JSON schema is stable.
//
// Writes are atomic (temp file + rename). Backup snapshots live in the same
// directory but are owned by the backup package.
package config
