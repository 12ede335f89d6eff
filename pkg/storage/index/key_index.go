package index

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// UndoRecorder receives the inverse of each mutation.
type UndoRecorder interface {
	RecordUndo(desc string, fn transaction.UndoFunc)
}

// KeyIndex maps a key (one field per indexed column) to the rows holding it.
// Keys containing NULL are not indexed, so any number of rows may share a
// NULL key even in a unique index.
type KeyIndex struct {
	mu      sync.RWMutex
	indexID primitives.ObjectID
	unique  bool
	entries map[string][]primitives.RowID
}

// DuplicateKeyError is returned when a unique index already holds the key.
type DuplicateKeyError struct {
	Key      []types.Field
	Existing primitives.RowID
}

func (e *DuplicateKeyError) Error() string {
	parts := make([]string, len(e.Key))
	for i, f := range e.Key {
		parts[i] = f.String()
	}
	return fmt.Sprintf("duplicate key (%s) held by row %d", strings.Join(parts, ", "), e.Existing)
}

// NewKeyIndex creates an empty index.
func NewKeyIndex(indexID primitives.ObjectID, unique bool) *KeyIndex {
	return &KeyIndex{
		indexID: indexID,
		unique:  unique,
		entries: make(map[string][]primitives.RowID),
	}
}

// IndexID returns the id of the catalog index this structure backs.
func (ix *KeyIndex) IndexID() primitives.ObjectID {
	return ix.indexID
}

// IsUnique reports whether the index rejects duplicate keys.
func (ix *KeyIndex) IsUnique() bool {
	return ix.unique
}

// Insert adds an entry for rid.
func (ix *KeyIndex) Insert(undo UndoRecorder, key []types.Field, rid primitives.RowID) error {
	if types.AnyNull(key) {
		return nil
	}
	k := types.KeyOf(key)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.unique {
		for _, other := range ix.entries[k] {
			if other != rid {
				return &DuplicateKeyError{Key: key, Existing: other}
			}
		}
	}
	if slices.Contains(ix.entries[k], rid) {
		return nil
	}
	ix.entries[k] = append(ix.entries[k], rid)

	if undo != nil {
		undo.RecordUndo("index insert", func() error {
			ix.mu.Lock()
			defer ix.mu.Unlock()
			ix.removeLocked(k, rid)
			return nil
		})
	}
	return nil
}

// Delete removes the entry for rid under key.
func (ix *KeyIndex) Delete(undo UndoRecorder, key []types.Field, rid primitives.RowID) {
	if types.AnyNull(key) {
		return
	}
	k := types.KeyOf(key)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.removeLocked(k, rid) {
		return
	}
	if undo != nil {
		undo.RecordUndo("index delete", func() error {
			ix.mu.Lock()
			defer ix.mu.Unlock()
			ix.entries[k] = append(ix.entries[k], rid)
			return nil
		})
	}
}

func (ix *KeyIndex) removeLocked(k string, rid primitives.RowID) bool {
	rids := ix.entries[k]
	i := slices.Index(rids, rid)
	if i < 0 {
		return false
	}
	rids = slices.Delete(rids, i, i+1)
	if len(rids) == 0 {
		delete(ix.entries, k)
	} else {
		ix.entries[k] = rids
	}
	return true
}

// Lookup returns the rows holding key. A key with a NULL never matches.
func (ix *KeyIndex) Lookup(key []types.Field) []primitives.RowID {
	if types.AnyNull(key) {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.entries[types.KeyOf(key)])
}

// Contains reports whether any row holds key.
func (ix *KeyIndex) Contains(key []types.Field) bool {
	return len(ix.Lookup(key)) > 0
}

// Len returns the number of indexed rows.
func (ix *KeyIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, rids := range ix.entries {
		n += len(rids)
	}
	return n
}

// Reset drops every entry, recording the previous contents for undo.
func (ix *KeyIndex) Reset(undo UndoRecorder) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	saved := ix.entries
	ix.entries = make(map[string][]primitives.RowID)
	if undo != nil {
		undo.RecordUndo("index reset", func() error {
			ix.mu.Lock()
			defer ix.mu.Unlock()
			ix.entries = saved
			return nil
		})
	}
}
