package lock

// WaitForGraph tracks wait-for relationships between transactions for
// deadlock detection. An edge A -> B means transaction A is waiting for a lock
// held by transaction B; a cycle is a deadlock.
type WaitForGraph struct {
	edges map[int64]map[int64]bool
}

func NewWaitForGraph() *WaitForGraph {
	return &WaitForGraph{edges: make(map[int64]map[int64]bool)}
}

// AddEdge records that waiter is blocked on holder.
func (g *WaitForGraph) AddEdge(waiter, holder int64) {
	if g.edges[waiter] == nil {
		g.edges[waiter] = make(map[int64]bool)
	}
	g.edges[waiter][holder] = true
}

// RemoveWaiter drops the outgoing edges of a transaction that stopped waiting.
func (g *WaitForGraph) RemoveWaiter(txID int64) {
	delete(g.edges, txID)
}

// RemoveTransaction removes all edges where the transaction appears as
// either waiter or holder.
func (g *WaitForGraph) RemoveTransaction(txID int64) {
	delete(g.edges, txID)
	for waiter, holders := range g.edges {
		delete(holders, txID)
		if len(holders) == 0 {
			delete(g.edges, waiter)
		}
	}
}

// HasCycleFrom reports whether a cycle is reachable from start. Detection
// uses depth-first search with a recursion stack.
func (g *WaitForGraph) HasCycleFrom(start int64) bool {
	visited := make(map[int64]bool)
	onStack := make(map[int64]bool)
	return g.dfs(start, visited, onStack)
}

func (g *WaitForGraph) dfs(tx int64, visited, onStack map[int64]bool) bool {
	visited[tx] = true
	onStack[tx] = true
	for next := range g.edges[tx] {
		if onStack[next] {
			return true
		}
		if !visited[next] && g.dfs(next, visited, onStack) {
			return true
		}
	}
	onStack[tx] = false
	return false
}

// Waiters returns the transactions that currently wait on someone.
func (g *WaitForGraph) Waiters() []int64 {
	out := make([]int64, 0, len(g.edges))
	for tx := range g.edges {
		out = append(out, tx)
	}
	return out
}
