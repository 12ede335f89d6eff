package cursor

import (
	dberr "dictengine/pkg/error"
)

// ScrollType is the positioning capability of a cursor.
type ScrollType int

const (
	ForwardOnly ScrollType = iota
	ScrollInsensitive
	ScrollSensitive
)

func (s ScrollType) String() string {
	switch s {
	case ForwardOnly:
		return "FORWARD_ONLY"
	case ScrollInsensitive:
		return "SCROLL_INSENSITIVE"
	case ScrollSensitive:
		return "SCROLL_SENSITIVE"
	default:
		return "UNKNOWN"
	}
}

// Concurrency says whether rows can be changed through the cursor.
type Concurrency int

const (
	ReadOnly Concurrency = iota
	Updatable
)

func (c Concurrency) String() string {
	if c == Updatable {
		return "CONCUR_UPDATABLE"
	}
	return "CONCUR_READ_ONLY"
}

// Holdability says whether a cursor survives commit.
type Holdability int

const (
	CloseAtCommit Holdability = iota
	HoldOverCommit
)

func (h Holdability) String() string {
	if h == HoldOverCommit {
		return "HOLD_CURSORS_OVER_COMMIT"
	}
	return "CLOSE_CURSORS_AT_COMMIT"
}

// Options are the attributes requested for, or granted to, a cursor.
type Options struct {
	Scroll      ScrollType
	Concurrency Concurrency
	Holdability Holdability
}

// Capabilities is the summary of granted options reported to callers.
type Capabilities struct {
	Scrollable bool
	Updatable  bool
	Holdable   bool
}

// Capabilities returns what o grants.
func (o Options) Capabilities() Capabilities {
	return Capabilities{
		Scrollable: o.Scroll != ForwardOnly,
		Updatable:  o.Concurrency == Updatable,
		Holdable:   o.Holdability == HoldOverCommit,
	}
}

// Source describes what the statement under a cursor can support.
type Source struct {
	// Updatable is true when result rows map onto rows of one base table.
	Updatable bool
	// Holdable is false when the session cannot keep cursors over commit.
	Holdable bool
}

// Negotiate downgrades the requested options to what can be granted and
// reports one warning per downgrade. Scroll-sensitive cursors are not
// supported and become scroll-insensitive.
func Negotiate(req Options, src Source) (Options, []dberr.Warning) {
	granted := req
	var warnings []dberr.Warning

	if req.Scroll == ScrollSensitive {
		granted.Scroll = ScrollInsensitive
		warnings = append(warnings, dberr.Warning{
			Kind:    dberr.WarnNoScrollSensitive,
			Message: "Scroll sensitive cursors are not currently implemented.",
		})
	}
	if req.Concurrency == Updatable && !src.Updatable {
		granted.Concurrency = ReadOnly
		warnings = append(warnings, dberr.Warning{
			Kind:    dberr.WarnNoUpdatableConcurrency,
			Message: "Result set not updatable. Query does not qualify to generate an updatable ResultSet.",
		})
	}
	if req.Holdability == HoldOverCommit && !src.Holdable {
		granted.Holdability = CloseAtCommit
		warnings = append(warnings, dberr.Warning{
			Kind:    dberr.WarnNoHoldability,
			Message: "Holdable cursors are not supported here; the cursor closes at commit.",
		})
	}
	return granted, warnings
}
