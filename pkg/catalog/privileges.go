package catalog

import (
	"dictengine/pkg/primitives"
)

// Privilege is a grantable table privilege with column granularity.
type Privilege int

const (
	PrivSelect Privilege = iota
	PrivUpdate
	PrivReferences
)

func (p Privilege) String() string {
	switch p {
	case PrivSelect:
		return "SELECT"
	case PrivUpdate:
		return "UPDATE"
	default:
		return "REFERENCES"
	}
}

type grantKey struct {
	grantee   string
	privilege Privilege
}

// Grant is a column-level grant: a set of 0-based column positions.
type Grant struct {
	TableID   primitives.ObjectID
	Grantee   string
	Privilege Privilege
	Columns   primitives.ColumnBitSet
}

func (c *Catalog) setGrant(undo UndoRecorder, tableID primitives.ObjectID, key grantKey, bits *primitives.ColumnBitSet) {
	byKey := c.grants[tableID]
	if byKey == nil {
		byKey = make(map[grantKey]primitives.ColumnBitSet)
		c.grants[tableID] = byKey
	}
	prev, had := byKey[key]
	if bits == nil || bits.IsEmpty() {
		delete(byKey, key)
	} else {
		byKey[key] = bits.Clone()
	}
	if undo != nil {
		undo.RecordUndo("grant "+key.grantee, func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			m := c.grants[tableID]
			if m == nil {
				m = make(map[grantKey]primitives.ColumnBitSet)
				c.grants[tableID] = m
			}
			if had {
				m[key] = prev
			} else {
				delete(m, key)
			}
			return nil
		})
	}
}

// GrantColumns adds 0-based column positions to a grantee's column grant.
func (c *Catalog) GrantColumns(undo UndoRecorder, tableID primitives.ObjectID, grantee string, priv Privilege, positions []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[tableID]; !ok {
		return notFoundID("table", tableID)
	}
	key := grantKey{grantee: NormalizeName(grantee), privilege: priv}
	bits := c.grants[tableID][key].Clone()
	for _, p := range positions {
		bits.Set(p)
	}
	c.setGrant(undo, tableID, key, &bits)
	return nil
}

// RevokeColumns removes 0-based column positions from a grant.
func (c *Catalog) RevokeColumns(undo UndoRecorder, tableID primitives.ObjectID, grantee string, priv Privilege, positions []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := grantKey{grantee: NormalizeName(grantee), privilege: priv}
	bits, ok := c.grants[tableID][key]
	if !ok {
		return
	}
	bits = bits.Clone()
	for _, p := range positions {
		bits.Clear(p)
	}
	c.setGrant(undo, tableID, key, &bits)
}

// ColumnGrant returns the grantee's column set for a privilege.
func (c *Catalog) ColumnGrant(tableID primitives.ObjectID, grantee string, priv Privilege) (primitives.ColumnBitSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bits, ok := c.grants[tableID][grantKey{grantee: NormalizeName(grantee), privilege: priv}]
	return bits.Clone(), ok
}

// Grants returns every column grant on a table.
func (c *Catalog) Grants(tableID primitives.ObjectID) []Grant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Grant
	for key, bits := range c.grants[tableID] {
		out = append(out, Grant{TableID: tableID, Grantee: key.grantee, Privilege: key.privilege, Columns: bits.Clone()})
	}
	return out
}

// RemapGrantsAfterDrop rewrites every column grant on the table after the
// column at 0-based position pos was dropped: the bit at pos is removed and
// every higher bit shifts down by one.
func (c *Catalog) RemapGrantsAfterDrop(undo UndoRecorder, tableID primitives.ObjectID, pos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, bits := range c.grants[tableID] {
		remapped := bits.RemovePosition(pos)
		c.setGrant(undo, tableID, key, &remapped)
	}
}
