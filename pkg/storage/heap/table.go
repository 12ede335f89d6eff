package heap

import (
	"fmt"
	"slices"
	"sync"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/primitives"
	"dictengine/pkg/types"
)

// UndoRecorder receives the inverse of each mutation.
type UndoRecorder interface {
	RecordUndo(desc string, fn transaction.UndoFunc)
}

// Row is a stored row: its id and one field per column slot.
type Row struct {
	ID     primitives.RowID
	Fields []types.Field
}

// HeapTable stores the rows of one table in insertion order. Column slots
// line up with the table's ordinal positions and are added or removed when
// columns are.
type HeapTable struct {
	mu      sync.RWMutex
	tableID primitives.ObjectID
	width   int
	rows    map[primitives.RowID][]types.Field
	order   []primitives.RowID
	nextRID primitives.RowID
}

// NewHeapTable creates an empty heap with the given number of column slots.
func NewHeapTable(tableID primitives.ObjectID, width int) *HeapTable {
	return &HeapTable{
		tableID: tableID,
		width:   width,
		rows:    make(map[primitives.RowID][]types.Field),
		nextRID: 1,
	}
}

// TableID returns the id of the table this heap stores.
func (h *HeapTable) TableID() primitives.ObjectID {
	return h.tableID
}

// Width returns the number of column slots.
func (h *HeapTable) Width() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.width
}

// RowCount returns the number of live rows without scanning.
func (h *HeapTable) RowCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

// IsEmpty reports whether the heap holds no rows.
func (h *HeapTable) IsEmpty() bool {
	return h.RowCount() == 0
}

// Insert stores a new row and returns its id. RowIDs are never reused, even
// after the insert is rolled back.
func (h *HeapTable) Insert(undo UndoRecorder, fields []types.Field) (primitives.RowID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(fields) != h.width {
		return primitives.InvalidRowID, fmt.Errorf("row has %d fields, table has %d columns", len(fields), h.width)
	}
	rid := h.nextRID
	h.nextRID++
	h.rows[rid] = slices.Clone(fields)
	h.order = append(h.order, rid)

	if undo != nil {
		undo.RecordUndo(fmt.Sprintf("insert row %d", rid), func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.removeLocked(rid)
			return nil
		})
	}
	return rid, nil
}

// Update replaces the fields of an existing row.
func (h *HeapTable) Update(undo UndoRecorder, rid primitives.RowID, fields []types.Field) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	old, ok := h.rows[rid]
	if !ok {
		return fmt.Errorf("row %d does not exist", rid)
	}
	if len(fields) != h.width {
		return fmt.Errorf("row has %d fields, table has %d columns", len(fields), h.width)
	}
	h.rows[rid] = slices.Clone(fields)

	if undo != nil {
		undo.RecordUndo(fmt.Sprintf("update row %d", rid), func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.rows[rid] = old
			return nil
		})
	}
	return nil
}

// Delete removes a row.
func (h *HeapTable) Delete(undo UndoRecorder, rid primitives.RowID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	old, ok := h.rows[rid]
	if !ok {
		return fmt.Errorf("row %d does not exist", rid)
	}
	pos := slices.Index(h.order, rid)
	h.removeLocked(rid)

	if undo != nil {
		undo.RecordUndo(fmt.Sprintf("delete row %d", rid), func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.rows[rid] = old
			h.order = slices.Insert(h.order, min(pos, len(h.order)), rid)
			return nil
		})
	}
	return nil
}

func (h *HeapTable) removeLocked(rid primitives.RowID) {
	delete(h.rows, rid)
	if i := slices.Index(h.order, rid); i >= 0 {
		h.order = slices.Delete(h.order, i, i+1)
	}
}

// Get returns a copy of a row's fields.
func (h *HeapTable) Get(rid primitives.RowID) ([]types.Field, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.rows[rid]
	if !ok {
		return nil, false
	}
	return slices.Clone(f), true
}

// Scan returns a snapshot of all rows in insertion order.
func (h *HeapTable) Scan() []Row {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Row, 0, len(h.order))
	for _, rid := range h.order {
		out = append(out, Row{ID: rid, Fields: slices.Clone(h.rows[rid])})
	}
	return out
}

// AddColumnSlot appends a slot to every row, filled with the value fill
// returns for that row.
func (h *HeapTable) AddColumnSlot(undo UndoRecorder, fill func(rid primitives.RowID) types.Field) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for rid, f := range h.rows {
		h.rows[rid] = append(slices.Clone(f), fill(rid))
	}
	h.width++

	if undo != nil {
		undo.RecordUndo("add column slot", func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			for rid, f := range h.rows {
				h.rows[rid] = f[:len(f)-1]
			}
			h.width--
			return nil
		})
	}
}

// DropColumnSlot removes the slot at 0-based index idx from every row.
func (h *HeapTable) DropColumnSlot(undo UndoRecorder, idx int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx < 0 || idx >= h.width {
		return fmt.Errorf("column slot %d out of range [0, %d)", idx, h.width)
	}
	saved := make(map[primitives.RowID]types.Field, len(h.rows))
	for rid, f := range h.rows {
		saved[rid] = f[idx]
		h.rows[rid] = slices.Delete(slices.Clone(f), idx, idx+1)
	}
	h.width--

	if undo != nil {
		undo.RecordUndo(fmt.Sprintf("drop column slot %d", idx), func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			for rid, f := range h.rows {
				h.rows[rid] = slices.Insert(slices.Clone(f), idx, saved[rid])
			}
			h.width++
			return nil
		})
	}
	return nil
}

// SetColumn overwrites slot idx of every row with the value fn returns for
// the current value.
func (h *HeapTable) SetColumn(undo UndoRecorder, idx int, fn func(types.Field) types.Field) {
	h.mu.Lock()
	defer h.mu.Unlock()

	saved := make(map[primitives.RowID]types.Field, len(h.rows))
	for rid, f := range h.rows {
		saved[rid] = f[idx]
		row := slices.Clone(f)
		row[idx] = fn(f[idx])
		h.rows[rid] = row
	}
	if undo != nil {
		undo.RecordUndo(fmt.Sprintf("rewrite column slot %d", idx), func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			for rid, f := range h.rows {
				row := slices.Clone(f)
				row[idx] = saved[rid]
				h.rows[rid] = row
			}
			return nil
		})
	}
}
