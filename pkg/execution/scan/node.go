package scan

import "dictengine/pkg/statistics"

// node carries one operator's counters and reports them to the sink.
type node struct {
	id     statistics.NodeID
	sink   statistics.Sink
	c      statistics.Counters
	opened bool
}

func newNode(id statistics.NodeID, sink statistics.Sink) *node {
	if sink == nil {
		sink = statistics.Discard{}
	}
	return &node{id: id, sink: sink}
}

func (n *node) Open() {
	n.opened = true
	n.c.Opens++
	n.sink.OnOpen(n.id)
}

func (n *node) Seen() { n.c.SeenRows++ }

func (n *node) Returned() {
	n.c.ReturnedRows++
	n.sink.OnRow(n.id)
}

// Close reports the counters. scanType is empty for nodes that do not scan.
func (n *node) Close(scanType string) {
	n.opened = false
	c := n.c
	c.ScanType = scanType
	n.sink.OnClose(n.id, c)
}

func (n *node) IsOpen() bool { return n.opened }
