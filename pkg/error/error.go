package error

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by how a caller is expected to react to them.
// Callers legitimately branch on the category (for example retrying a RESTRICT
// failure with CASCADE), so every error produced by the engine carries one.
type ErrorCategory int

const (
	// CategoryNotFound covers missing tables, columns, constraints and schemas.
	// Never retried.
	CategoryNotFound ErrorCategory = iota

	// CategoryAlreadyExists covers duplicate column, constraint or object names.
	CategoryAlreadyExists

	// CategoryDependencyConflict is a RESTRICT operation blocked by live
	// dependents. Detail names the blocking object kind and identifier.
	CategoryDependencyConflict

	// CategoryConstraintViolation is a uniqueness, check, not-null or foreign
	// key failure, surfaced verbatim from the constraint checker.
	CategoryConstraintViolation

	// CategoryCapability is an operation the cursor type does not support,
	// e.g. absolute() on a forward-only cursor. The cursor stays usable.
	CategoryCapability

	// CategoryState is an operation issued in the wrong cursor state: no
	// current row, wrong submode, or closed.
	CategoryState

	// CategorySystem represents internal failures and invalid requests.
	CategorySystem

	// CategoryConcurrency represents lock timeouts and deadlocks propagated
	// from the lock manager.
	CategoryConcurrency
)

// String returns the category name used in log output.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNotFound:
		return "NOT_FOUND"
	case CategoryAlreadyExists:
		return "ALREADY_EXISTS"
	case CategoryDependencyConflict:
		return "DEPENDENCY_CONFLICT"
	case CategoryConstraintViolation:
		return "CONSTRAINT_VIOLATION"
	case CategoryCapability:
		return "CAPABILITY"
	case CategoryState:
		return "STATE"
	case CategorySystem:
		return "SYSTEM"
	case CategoryConcurrency:
		return "CONCURRENCY"
	default:
		return "UNKNOWN"
	}
}

// DBError represents a structured database error with rich context information.
type DBError struct {
	// Code is the SQLState of the error (e.g., "X0Y25", "XCL08").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	// For dependency conflicts it names the blocking object: "VIEW V1".
	Detail string

	// Hint suggests how the user might fix or work around this error.
	Hint string

	// Operation identifies the operation being performed, e.g. "DropColumn".
	Operation string

	// Component identifies the subsystem where the error originated.
	Component string

	// Cause is the underlying error that triggered this database error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified category, code, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf is New with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...any) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with database-specific context information.
// If the error is already a DBError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  CategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint sets Hint and returns the receiver for chaining.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// WithOp sets Operation and Component and returns the receiver for chaining.
func (e *DBError) WithOp(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// WithCause sets Cause and returns the receiver for chaining.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

// captureStack captures the current call stack for debugging purposes.
// It skips the first 3 frames to exclude captureStack, New/Wrap, and the
// immediate caller, focusing on the actual error origin.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *DBError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error, enabling error chain traversal
// with Go's standard error handling functions like errors.Is and errors.As.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is matches another DBError by code, so sentinel comparisons work:
//
//	errors.Is(err, dberr.New(dberr.CategoryState, dberr.CodeNoCurrentRow, ""))
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n",
			f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}

// CategoryOf returns the category of the first DBError in err's chain and
// false when there is none.
func CategoryOf(err error) (ErrorCategory, bool) {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Category, true
	}
	return CategorySystem, false
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	c, ok := CategoryOf(err)
	return ok && c == category
}

// CodeOf returns the SQLState of the first DBError in err's chain.
func CodeOf(err error) string {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given SQLState.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
