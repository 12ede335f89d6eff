package statistics

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Node is the statistics of one operator in one execution.
type Node struct {
	ID   NodeID
	Name string
	Counters
	// Timing is nil for a node that was never opened.
	Timing   *Timing
	Children []*Node

	parent  NodeID
	started time.Time
	running bool
}

// RuntimeStatistics is the statistics tree of one execution.
type RuntimeStatistics struct {
	ExecutionID uint64
	Statement   string
	Roots       []*Node
}

// Find returns the node with the given id.
func (rs *RuntimeStatistics) Find(id NodeID) (*Node, bool) {
	var walk func([]*Node) *Node
	walk = func(nodes []*Node) *Node {
		for _, n := range nodes {
			if n.ID == id {
				return n
			}
			if found := walk(n.Children); found != nil {
				return found
			}
		}
		return nil
	}
	n := walk(rs.Roots)
	return n, n != nil
}

func (rs *RuntimeStatistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statement Name: execution %d\nStatement Text:\n\t%s\n", rs.ExecutionID, rs.Statement)
	var write func(n *Node, depth int)
	write = func(n *Node, depth int) {
		indent := strings.Repeat("\t", depth)
		fmt.Fprintf(&b, "%s%s:\n", indent, n.Name)
		fmt.Fprintf(&b, "%sNumber of opens = %d\n", indent, n.Opens)
		fmt.Fprintf(&b, "%sRows seen = %d\n", indent, n.SeenRows)
		fmt.Fprintf(&b, "%sRows returned = %d\n", indent, n.ReturnedRows)
		if n.ScanType != "" {
			fmt.Fprintf(&b, "%sscan type = %s\n", indent, n.ScanType)
		}
		if n.Timing != nil {
			fmt.Fprintf(&b, "%sexecute time (nanoseconds) = %d\n", indent, n.Timing.Elapsed.Nanoseconds())
		}
		for _, c := range n.Children {
			write(c, depth+1)
		}
	}
	for _, root := range rs.Roots {
		write(root, 0)
	}
	return b.String()
}

// Recorder is a Sink that keeps the statistics of the latest execution.
// Begin starts a new execution and discards the previous tree.
type Recorder struct {
	mu        sync.Mutex
	now       func() time.Time
	execution uint64
	statement string
	nodes     map[NodeID]*Node
	order     []NodeID
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now, nodes: make(map[NodeID]*Node)}
}

// Begin starts recording a new execution of statement and returns its id.
// All counters start again from zero.
func (r *Recorder) Begin(statement string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execution++
	r.statement = statement
	r.nodes = make(map[NodeID]*Node)
	r.order = nil
	return r.execution
}

// Define declares a plan node so that the tree has the plan's shape even
// for nodes that never open.
func (r *Recorder) Define(id, parent NodeID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.node(id)
	n.Name = name
	n.parent = parent
}

func (r *Recorder) node(id NodeID) *Node {
	n, ok := r.nodes[id]
	if !ok {
		n = &Node{ID: id, Name: fmt.Sprintf("ResultSet %d", id), parent: NoParent}
		r.nodes[id] = n
		r.order = append(r.order, id)
	}
	return n
}

func (r *Recorder) OnOpen(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.node(id)
	n.Opens++
	if n.Timing == nil {
		n.Timing = &Timing{}
	}
	if !n.running {
		n.running = true
		n.started = r.now()
	}
}

func (r *Recorder) OnRow(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.node(id).ReturnedRows++
}

// OnClose folds the node's final counters in. Counters only grow within an
// execution.
func (r *Recorder) OnClose(id NodeID, c Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.node(id)
	n.SeenRows = max(n.SeenRows, c.SeenRows)
	n.ReturnedRows = max(n.ReturnedRows, c.ReturnedRows)
	if c.ScanType != "" {
		n.ScanType = c.ScanType
	}
	if n.running {
		n.running = false
		n.Timing.Elapsed += r.now().Sub(n.started)
		n.Timing.Closes++
	}
}

// Statistics returns a copy of the current execution's tree.
func (r *Recorder) Statistics() *RuntimeStatistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	copies := make(map[NodeID]*Node, len(r.nodes))
	for id, n := range r.nodes {
		c := *n
		c.Children = nil
		if n.Timing != nil {
			t := *n.Timing
			c.Timing = &t
		}
		copies[id] = &c
	}

	rs := &RuntimeStatistics{ExecutionID: r.execution, Statement: r.statement}
	ids := slices.Clone(r.order)
	slices.Sort(ids)
	for _, id := range ids {
		n := copies[id]
		if parent, ok := copies[n.parent]; ok && n.parent != id {
			parent.Children = append(parent.Children, n)
			continue
		}
		rs.Roots = append(rs.Roots, n)
	}
	return rs
}
