package storage

import (
	"fmt"
	"sync"

	"dictengine/pkg/primitives"
	"dictengine/pkg/storage/heap"
	"dictengine/pkg/storage/index"
)

// UndoRecorder receives the inverse of each mutation.
type UndoRecorder = heap.UndoRecorder

// Store owns the heaps and key indexes of one database.
type Store struct {
	mu      sync.RWMutex
	heaps   map[primitives.ObjectID]*heap.HeapTable
	indexes map[primitives.ObjectID]*index.KeyIndex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		heaps:   make(map[primitives.ObjectID]*heap.HeapTable),
		indexes: make(map[primitives.ObjectID]*index.KeyIndex),
	}
}

// CreateHeap allocates the heap for a new table.
func (s *Store) CreateHeap(undo UndoRecorder, tableID primitives.ObjectID, width int) (*heap.HeapTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.heaps[tableID]; exists {
		return nil, fmt.Errorf("heap for table %s already exists", tableID.Short())
	}
	h := heap.NewHeapTable(tableID, width)
	s.heaps[tableID] = h
	if undo != nil {
		undo.RecordUndo("create heap", func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.heaps, tableID)
			return nil
		})
	}
	return h, nil
}

// DropHeap releases a table's heap. The heap is kept for undo.
func (s *Store) DropHeap(undo UndoRecorder, tableID primitives.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.heaps[tableID]
	if !ok {
		return
	}
	delete(s.heaps, tableID)
	if undo != nil {
		undo.RecordUndo("drop heap", func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.heaps[tableID] = h
			return nil
		})
	}
}

// Heap returns the heap of a table.
func (s *Store) Heap(tableID primitives.ObjectID) (*heap.HeapTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.heaps[tableID]
	if !ok {
		return nil, fmt.Errorf("no heap for table %s", tableID.Short())
	}
	return h, nil
}

// RowCount returns the number of rows in a table.
func (s *Store) RowCount(tableID primitives.ObjectID) (int, error) {
	h, err := s.Heap(tableID)
	if err != nil {
		return 0, err
	}
	return h.RowCount(), nil
}

// IsEmpty answers "does this table have zero rows" without a scan.
func (s *Store) IsEmpty(tableID primitives.ObjectID) (bool, error) {
	n, err := s.RowCount(tableID)
	return n == 0, err
}

// CreateIndex allocates an empty key index.
func (s *Store) CreateIndex(undo UndoRecorder, indexID primitives.ObjectID, unique bool) *index.KeyIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix := index.NewKeyIndex(indexID, unique)
	prev, existed := s.indexes[indexID]
	s.indexes[indexID] = ix
	if undo != nil {
		undo.RecordUndo("create index", func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if existed {
				s.indexes[indexID] = prev
			} else {
				delete(s.indexes, indexID)
			}
			return nil
		})
	}
	return ix
}

// DropIndex releases a key index.
func (s *Store) DropIndex(undo UndoRecorder, indexID primitives.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indexes[indexID]
	if !ok {
		return
	}
	delete(s.indexes, indexID)
	if undo != nil {
		undo.RecordUndo("drop index", func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.indexes[indexID] = ix
			return nil
		})
	}
}

// Index returns a key index.
func (s *Store) Index(indexID primitives.ObjectID) (*index.KeyIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[indexID]
	return ix, ok
}
