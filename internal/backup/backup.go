package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nwstad/overlayctl/internal/entity"
)

// MaxBackups is the hard cap on stored snapshots per kind. Saves beyond the
// cap are silently rejected rather than rotating out old entries - the user
// chose to keep those, so the newest loses.
const MaxBackups = 10

// Record is an identity-stripped snapshot of an entity's editable fields.
// The stored JSON array is a stable schema; field names must not change.
type Record struct {
	Kind     entity.Kind     `json:"kind"`
	Position entity.Position `json:"position"`
	Params   map[string]any  `json:"params"`
	SavedAt  time.Time       `json:"savedAt"`
}

// Store is a capped, index-addressed snapshot list persisted as a JSON
// array in a kind-specific file.
//
// Operations are synchronous local I/O and serialized within one process.
// Concurrent processes sharing the same file are not coordinated - a known
// limitation carried over deliberately, not a bug to fix here.
type Store struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// FileName returns the backup file name for a kind.
func FileName(kind entity.Kind) string {
	return fmt.Sprintf("backups-%s.json", kind)
}

// Open loads (or initializes) the backup store for a kind under dir.
func Open(dir string, kind entity.Kind) (*Store, error) {
	s := &Store{path: filepath.Join(dir, FileName(kind))}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("failed to parse backup file %s: %w", s.path, err)
	}
	if len(s.records) > MaxBackups {
		// A hand-edited file may exceed the cap; loading truncates rather
		// than erroring so the invariant holds from here on.
		s.records = s.records[:MaxBackups]
	}

	return s, nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// List returns deep copies of all records in storage order.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Save appends an identity-stripped snapshot of the entity. At the cap the
// save is a silent no-op: ok reports whether the snapshot was stored.
func (s *Store) Save(e entity.Entity) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= MaxBackups {
		return false, nil
	}

	stripped := e.Stripped()
	s.records = append(s.records, Record{
		Kind:     stripped.Kind,
		Position: stripped.Position,
		Params:   stripped.Params,
		SavedAt:  time.Now().UTC(),
	})

	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Restore returns a deep copy of the snapshot at index as a draft entity
// (no identity). It never hands out a live reference into the list and
// performs no network I/O; feeding the draft to the entity store is the
// caller's job.
func (s *Store) Restore(index int) (entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.records) {
		return entity.Entity{}, fmt.Errorf("backup index %d out of range (have %d)", index, len(s.records))
	}

	r := cloneRecord(s.records[index])
	return entity.Entity{
		Kind:     r.Kind,
		Position: r.Position,
		Params:   r.Params,
	}, nil
}

// Delete removes the snapshot at index.
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("backup index %d out of range (have %d)", index, len(s.records))
	}

	s.records = append(s.records[:index], s.records[index+1:]...)
	return s.persistLocked()
}

// DeleteMany removes the snapshots at the given indices, which refer to the
// list as it is NOW: the index set is snapshotted up front and processed in
// descending order so earlier deletions cannot invalidate later indices.
// Duplicate indices are collapsed; any out-of-range index fails the whole
// call before anything is deleted.
func (s *Store) DeleteMany(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[int]bool{}
	ordered := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.records) {
			return fmt.Errorf("backup index %d out of range (have %d)", i, len(s.records))
		}
		if !seen[i] {
			seen[i] = true
			ordered = append(ordered, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	for _, i := range ordered {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
	return s.persistLocked()
}

// Clear removes all snapshots.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return s.persistLocked()
}

// persistLocked writes the record list atomically. Caller holds s.mu.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	records := s.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backups: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary backup file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save backup file: %w", err)
	}
	return nil
}

func cloneRecord(r Record) Record {
	out := r
	clone := entity.Entity{Params: r.Params}.Clone()
	out.Params = clone.Params
	return out
}
