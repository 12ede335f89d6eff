package cursor

import (
	"sync/atomic"

	"go.uber.org/zap"

	dberr "dictengine/pkg/error"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/iterator"
	"dictengine/pkg/logging"
	"dictengine/pkg/tuple"
	"dictengine/pkg/types"
)

// Position is where a cursor stands.
type Position int

const (
	BeforeFirst Position = iota
	OnRow
	AfterLast
	// InsertRow is the staging row used to build new rows.
	InsertRow
	// Between is a forward-only cursor whose current row was just updated
	// or deleted. There is no current row until the next fetch.
	Between
	Closed
)

func (p Position) String() string {
	switch p {
	case BeforeFirst:
		return "BEFORE_FIRST"
	case OnRow:
		return "ON_ROW"
	case AfterLast:
		return "AFTER_LAST"
	case InsertRow:
		return "INSERT_ROW"
	case Between:
		return "BETWEEN"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

type state struct {
	pos Position
	row int // 1-based, meaningful on OnRow and Between
}

// Cursor walks the result of one compiled plan. A cursor belongs to the
// session that opened it and is not safe for concurrent use.
type Cursor struct {
	name     string
	plan     *scan.Plan
	opts     Options
	warnings []dberr.Warning
	writer   Writer
	log      *zap.Logger

	// rows holds the materialized result of a scrollable cursor.
	rows []*tuple.Tuple
	// src is read lazily by a forward-only cursor.
	src     iterator.DbIterator
	srcOpen bool

	st      state
	current *tuple.Tuple
	saved   state

	pending map[int]types.Field
	insert  map[int]types.Field
	holes   map[int]bool
	updated map[int]bool

	wasNull     bool
	closeReason string
	invalid     atomic.Pointer[string]
	onClose     []func()
}

// Open negotiates req against what plan supports and starts a cursor over
// it, positioned before the first row. A scrollable cursor reads the whole
// result now. writer may be nil for a cursor that cannot be updatable.
func Open(name string, plan *scan.Plan, req Options, holdable bool, writer Writer) (*Cursor, error) {
	src := Source{Updatable: plan.Updatable() && writer != nil, Holdable: holdable}
	opts, warnings := Negotiate(req, src)

	c := &Cursor{
		name:     name,
		plan:     plan,
		opts:     opts,
		warnings: warnings,
		writer:   writer,
		log:      logging.WithCursor(name),
		src:      plan.Root,
		holes:    make(map[int]bool),
		updated:  make(map[int]bool),
	}

	if err := plan.Root.Open(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInternal, "Open", "cursor")
	}
	c.srcOpen = true

	if opts.Scroll != ForwardOnly {
		rows, err := iterator.Collect(plan.Root)
		if err != nil {
			_ = c.closeSource()
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Open", "cursor")
		}
		c.rows = rows
		if err := c.closeSource(); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInternal, "Open", "cursor")
		}
	}

	c.log.Debug("cursor opened",
		zap.String("statement", plan.Text),
		zap.Stringer("scroll", opts.Scroll),
		zap.Stringer("concurrency", opts.Concurrency),
		zap.Int("warnings", len(warnings)))
	return c, nil
}

// Name returns the cursor name.
func (c *Cursor) Name() string { return c.name }

// Options returns the granted options.
func (c *Cursor) Options() Options { return c.opts }

// Capabilities returns the granted capabilities.
func (c *Cursor) Capabilities() Capabilities { return c.opts.Capabilities() }

// Warnings returns the warnings raised while opening the cursor.
func (c *Cursor) Warnings() []dberr.Warning { return c.warnings }

// Plan returns the plan the cursor reads.
func (c *Cursor) Plan() *scan.Plan { return c.plan }

// Position returns the current position kind.
func (c *Cursor) Position() Position { return c.st.pos }

// IsClosed reports whether the cursor has been closed.
func (c *Cursor) IsClosed() bool { return c.st.pos == Closed || c.invalid.Load() != nil }

// ColumnCount returns the number of result columns.
func (c *Cursor) ColumnCount() int { return len(c.plan.Columns) }

// Row returns the 1-based number of the current row, or 0 when there is
// no current row.
func (c *Cursor) Row() int {
	if c.st.pos != OnRow {
		return 0
	}
	return c.st.row
}

// Next moves to the following row and reports whether the cursor is on a
// row. Leaving the insert row returns to the remembered position first.
func (c *Cursor) Next() (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	c.leaveInsertRow()

	if c.opts.Scroll == ForwardOnly {
		return c.fetchForward()
	}
	switch c.st.pos {
	case BeforeFirst:
		return c.moveTo(1), nil
	case OnRow:
		return c.moveTo(c.st.row + 1), nil
	default:
		return false, nil
	}
}

func (c *Cursor) fetchForward() (bool, error) {
	if c.st.pos == AfterLast {
		return false, nil
	}
	var next int
	if c.st.pos != BeforeFirst {
		next = c.st.row
	}
	next++

	ok, err := c.src.HasNext()
	if err != nil {
		return false, dberr.Wrap(err, dberr.CodeInternal, "Next", "cursor")
	}
	if !ok {
		c.st = state{pos: AfterLast, row: next - 1}
		c.current = nil
		c.clearPending()
		if err := c.closeSource(); err != nil {
			return false, dberr.Wrap(err, dberr.CodeInternal, "Next", "cursor")
		}
		return false, nil
	}
	t, err := c.src.Next()
	if err != nil {
		return false, dberr.Wrap(err, dberr.CodeInternal, "Next", "cursor")
	}
	c.st = state{pos: OnRow, row: next}
	c.current = t
	c.clearPending()
	return true, nil
}

// Previous moves to the preceding row.
func (c *Cursor) Previous() (bool, error) {
	if err := c.checkScrollable("previous"); err != nil {
		return false, err
	}
	switch c.st.pos {
	case AfterLast:
		return c.moveTo(len(c.rows)), nil
	case OnRow:
		return c.moveTo(c.st.row - 1), nil
	default:
		return false, nil
	}
}

// First moves to the first row. With no rows the cursor stays before the
// first row.
func (c *Cursor) First() (bool, error) {
	if err := c.checkScrollable("first"); err != nil {
		return false, err
	}
	if len(c.rows) == 0 {
		return c.moveTo(0), nil
	}
	return c.moveTo(1), nil
}

// Last moves to the last row.
func (c *Cursor) Last() (bool, error) {
	if err := c.checkScrollable("last"); err != nil {
		return false, err
	}
	if len(c.rows) == 0 {
		return c.moveTo(0), nil
	}
	return c.moveTo(len(c.rows)), nil
}

// BeforeFirst moves before the first row.
func (c *Cursor) BeforeFirst() error {
	if err := c.checkScrollable("beforeFirst"); err != nil {
		return err
	}
	c.moveTo(0)
	return nil
}

// AfterLast moves after the last row. It has no effect on an empty result.
func (c *Cursor) AfterLast() error {
	if err := c.checkScrollable("afterLast"); err != nil {
		return err
	}
	if len(c.rows) > 0 {
		c.moveTo(len(c.rows) + 1)
	}
	return nil
}

// Absolute moves to row k. Negative k counts back from the last row, so
// Absolute(-1) is the last row. Rows past either end leave the cursor
// after the last or before the first row; 0 moves before the first row.
func (c *Cursor) Absolute(k int) (bool, error) {
	if err := c.checkScrollable("absolute"); err != nil {
		return false, err
	}
	if k < 0 {
		k = len(c.rows) + 1 + k
		if k < 1 {
			k = 0
		}
	}
	return c.moveTo(k), nil
}

// Relative moves k rows from the current row. Relative(0) never moves.
func (c *Cursor) Relative(k int) (bool, error) {
	if err := c.checkScrollable("relative"); err != nil {
		return false, err
	}
	if k == 0 {
		return c.st.pos == OnRow, nil
	}
	if c.st.pos != OnRow {
		return false, c.noCurrentRow()
	}
	target := c.st.row + k
	if target < 1 {
		target = 0
	}
	return c.moveTo(target), nil
}

// IsBeforeFirst reports whether the cursor is before the first row of a
// non-empty result.
func (c *Cursor) IsBeforeFirst() (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	if c.st.pos != BeforeFirst {
		return false, nil
	}
	if c.opts.Scroll != ForwardOnly {
		return len(c.rows) > 0, nil
	}
	if !c.srcOpen {
		return false, nil
	}
	return c.src.HasNext()
}

// IsAfterLast reports whether the cursor is after the last row of a
// non-empty result.
func (c *Cursor) IsAfterLast() (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	if c.st.pos != AfterLast {
		return false, nil
	}
	if c.opts.Scroll != ForwardOnly {
		return len(c.rows) > 0, nil
	}
	return c.st.row > 0, nil
}

// moveTo positions a scrollable cursor on row n, clamping to before-first
// or after-last, and reports whether it landed on a row.
func (c *Cursor) moveTo(n int) bool {
	c.clearPending()
	switch {
	case n < 1:
		c.st = state{pos: BeforeFirst}
		c.current = nil
	case n > len(c.rows):
		c.st = state{pos: AfterLast}
		c.current = nil
	default:
		c.st = state{pos: OnRow, row: n}
		c.current = c.rows[n-1]
	}
	return c.st.pos == OnRow
}

func (c *Cursor) checkOpen() error {
	if reason := c.invalid.Load(); reason != nil && c.st.pos != Closed {
		c.log.Info("cursor invalidated", zap.String("reason", *reason))
		_ = c.close(*reason)
	}
	if c.st.pos == Closed {
		err := dberr.New(dberr.CategoryState, dberr.CodeCursorClosed, "ResultSet not open.")
		if c.closeReason != "" {
			err = err.WithDetail("closed by %s", c.closeReason)
		}
		return err
	}
	return nil
}

// checkScrollable rejects positioning on forward-only cursors without
// moving, and leaves the insert row for cursors that can move.
func (c *Cursor) checkScrollable(op string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.opts.Scroll == ForwardOnly {
		return dberr.Newf(dberr.CategoryCapability, dberr.CodeCursorNotScrollable,
			"The '%s()' method is only allowed on scroll cursors.", op).WithOp(op, "cursor")
	}
	c.leaveInsertRow()
	return nil
}

func (c *Cursor) noCurrentRow() error {
	return dberr.New(dberr.CategoryState, dberr.CodeNoCurrentRow,
		"Invalid cursor state - no current row.")
}

func (c *Cursor) clearPending() {
	c.pending = nil
}

// Close releases the cursor. Closing a closed cursor does nothing.
func (c *Cursor) Close() error {
	return c.close("")
}

func (c *Cursor) close(reason string) error {
	if c.st.pos == Closed {
		return nil
	}
	err := c.closeSource()
	c.st = state{pos: Closed}
	c.closeReason = reason
	c.current = nil
	c.rows = nil
	c.pending = nil
	if reason != "commit" {
		// Staged insert-row values outlive a commit.
		c.insert = nil
	}
	if reason != "" {
		c.log.Debug("cursor closed", zap.String("reason", reason))
	}
	hooks := c.onClose
	c.onClose = nil
	for _, fn := range hooks {
		fn()
	}
	return err
}

// AfterClose registers fn to run once when the cursor closes.
func (c *Cursor) AfterClose(fn func()) {
	if c.st.pos == Closed {
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
}

func (c *Cursor) closeSource() error {
	if !c.srcOpen {
		return nil
	}
	c.srcOpen = false
	return c.src.Close()
}

// OnCommit is called when the owning transaction commits. Cursors that are
// not held over commit close.
func (c *Cursor) OnCommit() error {
	if c.opts.Holdability == HoldOverCommit {
		return nil
	}
	return c.close("commit")
}

// OnRollback is called when the owning transaction rolls back. Every cursor
// closes.
func (c *Cursor) OnRollback() error {
	return c.close("rollback")
}

// Invalidate marks the cursor unusable because something it reads went
// away. It is safe to call from another goroutine; the cursor closes on
// its next operation and reports reason.
func (c *Cursor) Invalidate(reason string) {
	c.invalid.CompareAndSwap(nil, &reason)
}
