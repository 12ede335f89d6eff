package statistics

import "time"

// NodeID identifies an operator within one plan.
type NodeID int

// NoParent marks a root node.
const NoParent NodeID = -1

// ScanHeap is the scan type of a full heap scan.
const ScanHeap = "heap"

// Counters are the per-node figures reported at close.
type Counters struct {
	Opens        int64
	SeenRows     int64
	ReturnedRows int64
	// ScanType is set by scan nodes. It is never left empty for a scan that
	// ran.
	ScanType string
}

// Sink receives execution reports. Implementations must tolerate nodes
// that are never opened.
type Sink interface {
	OnOpen(node NodeID)
	OnRow(node NodeID)
	OnClose(node NodeID, c Counters)
}

// Discard is a Sink that drops every report.
type Discard struct{}

func (Discard) OnOpen(NodeID)            {}
func (Discard) OnRow(NodeID)             {}
func (Discard) OnClose(NodeID, Counters) {}

// Timing is the single timing record of a node for one execution.
type Timing struct {
	// Elapsed sums the time between each open and the matching close.
	Elapsed time.Duration
	// Closes counts the open/close pairs folded into Elapsed.
	Closes int
}
