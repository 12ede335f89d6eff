package binder

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// Truth is a SQL three-valued logic result.
type Truth int

const (
	Unknown Truth = iota
	True
	False
)

func (t Truth) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// Env supplies values for an evaluation. Bare column names map to values of
// the bound row; NEW and OLD map to the transition rows of a trigger. NULL
// is represented by nil.
type Env struct {
	Columns map[string]any
	New     map[string]any
	Old     map[string]any
}

func (e Env) vars() map[string]any {
	vars := make(map[string]any, len(e.Columns)+2)
	for k, v := range e.Columns {
		vars[k] = v
	}
	if e.New != nil {
		vars[QualifierNew] = e.New
	}
	if e.Old != nil {
		vars[QualifierOld] = e.Old
	}
	return vars
}

// touchesNull reports whether any referenced column is NULL or absent.
func (e *Expression) touchesNull(env Env) bool {
	for _, ref := range e.refs {
		var row map[string]any
		switch ref.Qualifier {
		case QualifierNew:
			row = env.New
		case QualifierOld:
			row = env.Old
		default:
			row = env.Columns
		}
		if v, ok := row[ref.Name]; !ok || v == nil {
			return true
		}
	}
	return false
}

// Eval evaluates the expression to a value. An expression that fails at run
// time because one of its operands is NULL yields nil, i.e. NULL.
func (e *Expression) Eval(env Env) (any, error) {
	out, err := expr.Run(e.program, env.vars())
	if err != nil {
		if e.touchesNull(env) {
			return nil, nil
		}
		return nil, fmt.Errorf("evaluate %s: %w", e.text, err)
	}
	return out, nil
}

// Test evaluates the expression as a condition. A false result computed
// from a NULL operand is Unknown, as comparisons with NULL are in SQL,
// unless the expression tests for NULL explicitly.
func (e *Expression) Test(env Env) (Truth, error) {
	out, err := e.Eval(env)
	if err != nil {
		return Unknown, err
	}
	switch v := out.(type) {
	case nil:
		return Unknown, nil
	case bool:
		if v {
			return True, nil
		}
		if !e.nullTest && e.touchesNull(env) {
			return Unknown, nil
		}
		return False, nil
	default:
		return Unknown, fmt.Errorf("expression %s is not boolean, got %T", e.text, out)
	}
}

// Satisfied reports whether a CHECK condition holds. Unknown passes.
func (e *Expression) Satisfied(env Env) (bool, error) {
	t, err := e.Test(env)
	if err != nil {
		return false, err
	}
	return t != False, nil
}
