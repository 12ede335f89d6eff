package catalog

import (
	"dictengine/pkg/primitives"
)

// ChangeKind classifies a catalog change event.
type ChangeKind int

const (
	ChangeCreateTable ChangeKind = iota
	ChangeDropTable
	ChangeAddColumn
	ChangeDropColumn
	ChangeAddConstraint
	ChangeDropConstraint
	ChangeAlterType
	ChangeAlterColumn
	ChangeRename
	ChangeCreateIndex
	ChangeDropIndex
	ChangeCreateView
	ChangeDropView
	ChangeCreateTrigger
	ChangeDropTrigger
	ChangeAlterConstraint
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreateTable:
		return "CREATE_TABLE"
	case ChangeDropTable:
		return "DROP_TABLE"
	case ChangeAddColumn:
		return "ADD_COLUMN"
	case ChangeDropColumn:
		return "DROP_COLUMN"
	case ChangeAddConstraint:
		return "ADD_CONSTRAINT"
	case ChangeDropConstraint:
		return "DROP_CONSTRAINT"
	case ChangeAlterType:
		return "ALTER_TYPE"
	case ChangeAlterColumn:
		return "ALTER_COLUMN"
	case ChangeRename:
		return "RENAME"
	case ChangeCreateIndex:
		return "CREATE_INDEX"
	case ChangeDropIndex:
		return "DROP_INDEX"
	case ChangeCreateView:
		return "CREATE_VIEW"
	case ChangeDropView:
		return "DROP_VIEW"
	case ChangeCreateTrigger:
		return "CREATE_TRIGGER"
	case ChangeDropTrigger:
		return "DROP_TRIGGER"
	case ChangeAlterConstraint:
		return "ALTER_CONSTRAINT"
	default:
		return "UNKNOWN"
	}
}

// ChangeEvent is emitted after every successful catalog change.
type ChangeEvent struct {
	TableID    primitives.ObjectID
	Kind       ChangeKind
	Generation primitives.Generation
	// Object names the object created, dropped or altered.
	Object string
}

// Listener consumes change events. Listeners run synchronously on the
// session that made the change and must not call back into DDL.
type Listener func(ChangeEvent)

// Subscribe registers a listener.
func (c *Catalog) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Emit delivers an event to every listener.
func (c *Catalog) Emit(ev ChangeEvent) {
	c.mu.RLock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}
