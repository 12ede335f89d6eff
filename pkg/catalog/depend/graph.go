// Package depend tracks which schema objects rely on which others. An edge
// runs from a dependent (view, trigger, constraint, cached statement) to a
// provider (table, column, index, view). Edges key on stable object ids, so
// renames never break them.
//
// The graph may contain cycles, for example a trigger whose action writes to
// the table it fires on. Every traversal carries a visited set, which is what
// guarantees termination.
package depend

import (
	"fmt"
	"slices"
	"sync"

	"dictengine/pkg/concurrency/transaction"
	"dictengine/pkg/primitives"
)

// Kind is the tag of a schema object variant.
type Kind int

const (
	KindTable Kind = iota
	KindColumn
	KindIndex
	KindView
	KindConstraint
	KindTrigger
	KindStatement
	KindSynonym
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "TABLE"
	case KindColumn:
		return "COLUMN"
	case KindIndex:
		return "INDEX"
	case KindView:
		return "VIEW"
	case KindConstraint:
		return "CONSTRAINT"
	case KindTrigger:
		return "TRIGGER"
	case KindStatement:
		return "STATEMENT"
	case KindSynonym:
		return "SYNONYM"
	default:
		return "UNKNOWN"
	}
}

// Ref names a schema object by kind and stable id.
type Ref struct {
	Kind Kind
	ID   primitives.ObjectID
}

func (r Ref) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.ID.Short())
}

// Usage records how a dependent uses its provider. It selects which changes
// to the provider invalidate the dependent.
type Usage uint8

const (
	// UseName: the dependent refers to the provider by name or id.
	UseName Usage = 1 << iota
	// UsePosition: the dependent resolved column ordinals of the provider,
	// e.g. an INSERT without a column list or a SELECT *.
	UsePosition
	// UseType: the dependent captured the provider's type facets.
	UseType
)

// Has reports whether all bits of other are set.
func (u Usage) Has(other Usage) bool {
	return u&other == other
}

// UndoRecorder receives the inverse of each graph mutation. A transaction
// context satisfies it; a nil recorder disables undo.
type UndoRecorder interface {
	RecordUndo(desc string, fn transaction.UndoFunc)
}

// Edge is a single dependent -> provider relationship.
type Edge struct {
	Dependent Ref
	Provider  Ref
	Usage     Usage
}

// Graph is the dependency graph of one database.
type Graph struct {
	mu        sync.RWMutex
	providers map[Ref]map[Ref]Usage // dependent -> providers
	dependent map[Ref]map[Ref]Usage // provider -> dependents
	invalid   map[Ref]Reason
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		providers: make(map[Ref]map[Ref]Usage),
		dependent: make(map[Ref]map[Ref]Usage),
		invalid:   make(map[Ref]Reason),
	}
}

// AddEdge records that dep depends on prov. Adding an edge that already
// exists with the same usage is a no-op; a wider usage is merged in. It
// returns true when the graph changed.
func (g *Graph) AddEdge(undo UndoRecorder, dep, prov Ref, usage Usage) bool {
	if usage == 0 {
		usage = UseName
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	old, exists := g.providers[dep][prov]
	if exists && old.Has(usage) {
		return false
	}
	g.setEdge(dep, prov, old|usage)

	if undo != nil {
		undo.RecordUndo("add edge "+dep.String()+"->"+prov.String(), func() error {
			g.mu.Lock()
			defer g.mu.Unlock()
			if exists {
				g.setEdge(dep, prov, old)
			} else {
				g.deleteEdge(dep, prov)
			}
			return nil
		})
	}
	return true
}

func (g *Graph) setEdge(dep, prov Ref, usage Usage) {
	if g.providers[dep] == nil {
		g.providers[dep] = make(map[Ref]Usage)
	}
	if g.dependent[prov] == nil {
		g.dependent[prov] = make(map[Ref]Usage)
	}
	g.providers[dep][prov] = usage
	g.dependent[prov][dep] = usage
}

func (g *Graph) deleteEdge(dep, prov Ref) {
	delete(g.providers[dep], prov)
	if len(g.providers[dep]) == 0 {
		delete(g.providers, dep)
	}
	delete(g.dependent[prov], dep)
	if len(g.dependent[prov]) == 0 {
		delete(g.dependent, prov)
	}
}

// RemoveEdge deletes a single edge if present.
func (g *Graph) RemoveEdge(undo UndoRecorder, dep, prov Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	usage, ok := g.providers[dep][prov]
	if !ok {
		return
	}
	g.deleteEdge(dep, prov)
	g.recordRestore(undo, []Edge{{Dependent: dep, Provider: prov, Usage: usage}})
}

// RemoveDependent deletes every edge where dep is the dependent side. It is
// called when the dependent itself is dropped, and returns the removed edges.
func (g *Graph) RemoveDependent(undo UndoRecorder, dep Ref) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	var removed []Edge
	for prov, usage := range g.providers[dep] {
		removed = append(removed, Edge{Dependent: dep, Provider: prov, Usage: usage})
	}
	for _, e := range removed {
		g.deleteEdge(e.Dependent, e.Provider)
	}
	reason, wasInvalid := g.invalid[dep]
	delete(g.invalid, dep)

	g.recordRestore(undo, removed)
	if undo != nil && wasInvalid {
		undo.RecordUndo("restore invalid mark", func() error {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.invalid[dep] = reason
			return nil
		})
	}
	return removed
}

// RemoveProvider deletes every edge where prov is the provider side. It is
// called when a provider is dropped after its dependents were dealt with.
func (g *Graph) RemoveProvider(undo UndoRecorder, prov Ref) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	var removed []Edge
	for dep, usage := range g.dependent[prov] {
		removed = append(removed, Edge{Dependent: dep, Provider: prov, Usage: usage})
	}
	for _, e := range removed {
		g.deleteEdge(e.Dependent, e.Provider)
	}
	g.recordRestore(undo, removed)
	return removed
}

func (g *Graph) recordRestore(undo UndoRecorder, edges []Edge) {
	if undo == nil || len(edges) == 0 {
		return
	}
	undo.RecordUndo(fmt.Sprintf("restore %d edges", len(edges)), func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, e := range edges {
			g.setEdge(e.Dependent, e.Provider, e.Usage)
		}
		return nil
	})
}

// DependentsOf returns the direct dependents of prov.
func (g *Graph) DependentsOf(prov Ref) []Ref {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependent[prov])
}

// ProvidersOf returns the direct providers of dep.
func (g *Graph) ProvidersOf(dep Ref) []Ref {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.providers[dep])
}

// UsageOf returns how dep uses prov, or 0 when there is no edge.
func (g *Graph) UsageOf(dep, prov Ref) Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.providers[dep][prov]
}

// HasDependents reports whether anything depends on prov.
func (g *Graph) HasDependents(prov Ref) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.dependent[prov]) > 0
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, provs := range g.providers {
		n += len(provs)
	}
	return n
}

// Edges returns a snapshot of all edges ordered by dependent then provider.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for dep, provs := range g.providers {
		for prov, usage := range provs {
			out = append(out, Edge{Dependent: dep, Provider: prov, Usage: usage})
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := compareRef(a.Dependent, b.Dependent); c != 0 {
			return c
		}
		return compareRef(a.Provider, b.Provider)
	})
	return out
}

func compareRef(a, b Ref) int {
	if c := a.ID.Compare(b.ID); c != 0 {
		return c
	}
	return int(a.Kind) - int(b.Kind)
}

func sortedKeys(m map[Ref]Usage) []Ref {
	out := make([]Ref, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, compareRef)
	return out
}
