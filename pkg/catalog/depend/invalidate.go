package depend

// Reason says why a dependent was invalidated.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDropped
	ReasonRenamed
	ReasonPositionShift
	ReasonTypeChange
	ReasonStructure
)

func (r Reason) String() string {
	switch r {
	case ReasonDropped:
		return "DROPPED"
	case ReasonRenamed:
		return "RENAMED"
	case ReasonPositionShift:
		return "POSITION_SHIFT"
	case ReasonTypeChange:
		return "TYPE_CHANGE"
	case ReasonStructure:
		return "STRUCTURE"
	default:
		return "NONE"
	}
}

// Scope selects how far an invalidation travels.
type Scope int

const (
	// OneHop invalidates direct dependents only.
	OneHop Scope = iota
	// Transitive follows dependents of dependents, as needed for compiled
	// statement caches built on views.
	Transitive
)

// Invalidate marks the dependents of prov accepted by the filter as invalid
// and returns them. Invalid means "recompile on next use"; nothing fails
// immediately. Marking an already invalid dependent is a no-op, so repeated
// or cyclic invalidation terminates.
func (g *Graph) Invalidate(undo UndoRecorder, prov Ref, scope Scope, reason Reason, filter Filter) []Ref {
	if filter == nil {
		filter = All
	}

	var targets []Ref
	if scope == Transitive {
		targets = g.Closure(filter, prov)
	} else {
		g.mu.RLock()
		for _, dep := range sortedKeys(g.dependent[prov]) {
			if filter(dep, g.dependent[prov][dep]) {
				targets = append(targets, dep)
			}
		}
		g.mu.RUnlock()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var marked []Ref
	for _, dep := range targets {
		if _, already := g.invalid[dep]; already {
			continue
		}
		g.invalid[dep] = reason
		marked = append(marked, dep)
	}

	if undo != nil && len(marked) > 0 {
		undo.RecordUndo("clear invalidation marks", func() error {
			g.mu.Lock()
			defer g.mu.Unlock()
			for _, dep := range marked {
				delete(g.invalid, dep)
			}
			return nil
		})
	}
	return targets
}

// MarkInvalid flags a single dependent directly.
func (g *Graph) MarkInvalid(undo UndoRecorder, dep Ref, reason Reason) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, already := g.invalid[dep]; already {
		return
	}
	g.invalid[dep] = reason
	if undo != nil {
		undo.RecordUndo("clear invalidation mark", func() error {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.invalid, dep)
			return nil
		})
	}
}

// IsValid reports whether dep has not been invalidated since it was last
// compiled.
func (g *Graph) IsValid(dep Ref) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, bad := g.invalid[dep]
	return !bad
}

// InvalidReason returns why dep is invalid, or ReasonNone.
func (g *Graph) InvalidReason(dep Ref) Reason {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.invalid[dep]
}

// MarkValid clears the invalid flag after a successful recompile. Recompiles
// are not undone by rollback; a stale recompile is simply repeated.
func (g *Graph) MarkValid(dep Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.invalid, dep)
}
