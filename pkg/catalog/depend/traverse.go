package depend

// Filter decides whether a dependent reached during a traversal is included
// and whether the traversal continues through it.
type Filter func(dep Ref, usage Usage) bool

// All includes every dependent.
func All(Ref, Usage) bool { return true }

// Closure returns every dependent transitively reachable from the roots,
// ordered leaves first: when A depends on B and both are in the result, A
// comes before B. Roots themselves are not included. Traversal continues
// only through dependents accepted by the filter.
func (g *Graph) Closure(filter Filter, roots ...Ref) []Ref {
	if filter == nil {
		filter = All
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[Ref]bool, len(roots))
	for _, r := range roots {
		visited[r] = true
	}

	var order []Ref
	var visit func(r Ref)
	visit = func(r Ref) {
		for _, dep := range sortedKeys(g.dependent[r]) {
			if visited[dep] || !filter(dep, g.dependent[r][dep]) {
				continue
			}
			visited[dep] = true
			visit(dep)
			order = append(order, dep)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

// WouldInvalidate is the dry run used by RESTRICT: the dependents that an
// operation on the roots would reach, without touching any state.
func (g *Graph) WouldInvalidate(filter Filter, roots ...Ref) []Ref {
	return g.Closure(filter, roots...)
}
