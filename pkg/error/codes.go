package error

// SQLState codes produced by the engine.
const (
	CodeTableNotFound       = "42X05"
	CodeColumnNotFound      = "42X04"
	CodeObjectNotFound      = "42Y55"
	CodeConstraintNotFound  = "42X86"
	CodeDuplicateColumn     = "42X12"
	CodeObjectAlreadyExists = "X0Y32"

	CodeProviderHasDependent   = "X0Y25"
	CodeProviderHasView        = "X0Y23"
	CodeRenameBreaksCheck      = "42Z97"
	CodeRenameReferencedColumn = "42Z98"
	CodeNonNullOnNonEmpty      = "X0Y57"
	CodeNotWidening            = "42Z15"
	CodeNullsInColumn          = "X0Y80"
	CodeNullableKeyColumn      = "42831"
	CodeDuplicatePrimaryKey    = "X0Y58"
	CodeBackingIndex           = "X0Y26"
	CodeTypeMismatch           = "42821"
	CodeColumnCountMismatch    = "42802"
	CodeTransitionRow          = "42Y92"

	CodeNullIntoNonNull = "23502"
	CodeFKViolation     = "23503"
	CodeDuplicateKey    = "23505"
	CodeCheckViolated   = "23513"
	CodeFKNoRefKey      = "X0Y44"
	CodeFKColumnCount   = "X0Y43"
	CodeAddFKViolation  = "X0Y45"

	CodeCursorNotScrollable = "XJ061"
	CodeCursorNotUpdatable  = "XJ083"
	CodeNoCurrentRow        = "XCL08"
	CodeCursorClosed        = "XCL16"
	CodeWrongSubmode        = "XJ086"
	CodeRowIsHole           = "XCL07"
	CodeColumnIndexInvalid  = "XCL14"
	CodeMissingRow          = "XCL19"
	CodeColumnNotUpdatable  = "XJ084"

	CodeLockTimeout      = "40XL1"
	CodeDeadlock         = "40001"
	CodeTriggerRecursion = "54038"
	CodeInvalidRequest   = "XJ001"
	CodeSavepointAuto    = "XJ010"
	CodeNoSavepoint      = "3B001"
	CodeNoConnection     = "08003"
	CodeInternal         = "XJ000"
)

// WarningKind enumerates the non-fatal side effects an operation can report.
type WarningKind int

const (
	WarnConstraintDropped WarningKind = iota
	WarnViewDropped
	WarnTriggerDropped
	WarnIndexDropped
	WarnStatementInvalidated
	WarnNoScrollSensitive
	WarnNoUpdatableConcurrency
	WarnNoHoldability
)

// SQLState returns the warning class code for the kind.
func (k WarningKind) SQLState() string {
	switch k {
	case WarnConstraintDropped:
		return "01500"
	case WarnViewDropped:
		return "01501"
	case WarnTriggerDropped:
		return "01502"
	case WarnIndexDropped:
		return "01506"
	case WarnStatementInvalidated:
		return "01507"
	case WarnNoScrollSensitive:
		return "01J02"
	case WarnNoUpdatableConcurrency:
		return "01J03"
	case WarnNoHoldability:
		return "01J07"
	default:
		return "01000"
	}
}

// String returns the kind name.
func (k WarningKind) String() string {
	switch k {
	case WarnConstraintDropped:
		return "CONSTRAINT_DROPPED"
	case WarnViewDropped:
		return "VIEW_DROPPED"
	case WarnTriggerDropped:
		return "TRIGGER_DROPPED"
	case WarnIndexDropped:
		return "INDEX_DROPPED"
	case WarnStatementInvalidated:
		return "STATEMENT_INVALIDATED"
	case WarnNoScrollSensitive:
		return "NO_SCROLL_SENSITIVE"
	case WarnNoUpdatableConcurrency:
		return "NO_UPDATABLE_CONCURRENCY"
	case WarnNoHoldability:
		return "NO_HOLDABILITY"
	default:
		return "WARNING"
	}
}

// Warning is a successful-but-partial side effect. It is not an error and is
// attached to the result of the operation that produced it.
type Warning struct {
	Kind    WarningKind
	Message string
	// Object is the name of the object the warning is about, e.g. the dropped view.
	Object string
	// Table is the table the side effect was observed on.
	Table string
}

// SQLState returns the warning's code.
func (w Warning) SQLState() string {
	return w.Kind.SQLState()
}

func (w Warning) String() string {
	return "[" + w.SQLState() + "] " + w.Message
}
