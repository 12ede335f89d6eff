package binder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Row qualifiers available inside trigger actions.
const (
	QualifierNew = "NEW"
	QualifierOld = "OLD"
)

// ColumnRef is a column mentioned by an expression. Qualifier is empty for
// bare column names and NEW or OLD for transition row references.
type ColumnRef struct {
	Qualifier string
	Name      string
}

func (r ColumnRef) String() string {
	if r.Qualifier == "" {
		return r.Name
	}
	return r.Qualifier + "." + r.Name
}

// Expression is a parsed, normalized expression. It is immutable; renames
// produce a new Expression.
type Expression struct {
	text    string
	tree    *parser.Tree
	refs    []ColumnRef
	program *vm.Program

	// nullTest is set when the expression compares against NULL itself.
	nullTest bool
}

// Parse parses and compiles an expression, normalizing column identifiers to
// upper case. SQL condition syntax (=, <>, AND, IS NULL) is accepted as well
// as expr syntax.
func Parse(text string) (*Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	tree, err := parser.Parse(fromSQL(text))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", text, err)
	}

	w := newRefWalker(tree)
	w.rewrite(func(ref ColumnRef) string { return strings.ToUpper(ref.Name) })
	return build(tree)
}

func build(tree *parser.Tree) (*Expression, error) {
	text := tree.Node.String()
	program, err := expr.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", text, err)
	}
	return &Expression{
		text:     text,
		tree:     tree,
		refs:     newRefWalker(tree).collect(),
		program:  program,
		nullTest: hasNil(tree),
	}, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(text string) *Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

// Text returns the normalized expression text.
func (e *Expression) Text() string {
	return e.text
}

func (e *Expression) String() string {
	return e.text
}

// References returns each distinct column reference, in first-use order.
func (e *Expression) References() []ColumnRef {
	return slices.Clone(e.refs)
}

// ReferencesColumn reports whether the expression mentions the column with
// the given qualifier ("" for bare names).
func (e *Expression) ReferencesColumn(qualifier, name string) bool {
	want := ColumnRef{Qualifier: strings.ToUpper(qualifier), Name: strings.ToUpper(name)}
	return slices.Contains(e.refs, want)
}

// ColumnNames returns the distinct names referenced with the given qualifier.
func (e *Expression) ColumnNames(qualifier string) []string {
	qualifier = strings.ToUpper(qualifier)
	var out []string
	for _, r := range e.refs {
		if r.Qualifier == qualifier && !slices.Contains(out, r.Name) {
			out = append(out, r.Name)
		}
	}
	return out
}

// RenameColumn returns a copy of the expression with every reference to
// oldName under the given qualifier replaced by newName, and whether anything
// changed.
func (e *Expression) RenameColumn(qualifier, oldName, newName string) (*Expression, bool, error) {
	if !e.ReferencesColumn(qualifier, oldName) {
		return e, false, nil
	}
	tree, err := parser.Parse(e.text)
	if err != nil {
		return nil, false, err
	}

	qualifier = strings.ToUpper(qualifier)
	oldName = strings.ToUpper(oldName)
	newName = strings.ToUpper(newName)
	newRefWalker(tree).rewrite(func(ref ColumnRef) string {
		if ref.Qualifier == qualifier && ref.Name == oldName {
			return newName
		}
		return ref.Name
	})

	renamed, err := build(tree)
	if err != nil {
		return nil, false, err
	}
	return renamed, true, nil
}

// refWalker finds column references in a tree. Identifiers that name called
// functions are skipped.
type refWalker struct {
	tree    *parser.Tree
	callees map[*ast.IdentifierNode]bool
	quals   map[*ast.IdentifierNode]bool
}

func newRefWalker(tree *parser.Tree) *refWalker {
	w := &refWalker{
		tree:    tree,
		callees: make(map[*ast.IdentifierNode]bool),
		quals:   make(map[*ast.IdentifierNode]bool),
	}
	ast.Walk(&tree.Node, visitorFunc(func(node *ast.Node) {
		switch n := (*node).(type) {
		case *ast.CallNode:
			if id, ok := n.Callee.(*ast.IdentifierNode); ok {
				w.callees[id] = true
			}
		case *ast.MemberNode:
			if id, ok := n.Node.(*ast.IdentifierNode); ok && isQualifier(id.Value) {
				w.quals[id] = true
			}
		}
	}))
	return w
}

func isQualifier(name string) bool {
	return strings.EqualFold(name, QualifierNew) || strings.EqualFold(name, QualifierOld)
}

// each calls fn for every column reference with a setter for its name.
func (w *refWalker) each(fn func(ref ColumnRef, set func(string))) {
	ast.Walk(&w.tree.Node, visitorFunc(func(node *ast.Node) {
		switch n := (*node).(type) {
		case *ast.IdentifierNode:
			if w.callees[n] || w.quals[n] {
				return
			}
			fn(ColumnRef{Name: n.Value}, func(s string) { n.Value = s })
		case *ast.MemberNode:
			id, ok := n.Node.(*ast.IdentifierNode)
			if !ok || !w.quals[id] {
				return
			}
			prop, ok := n.Property.(*ast.StringNode)
			if !ok {
				return
			}
			id.Value = strings.ToUpper(id.Value)
			fn(ColumnRef{Qualifier: id.Value, Name: prop.Value}, func(s string) { prop.Value = s })
		}
	}))
}

func (w *refWalker) rewrite(name func(ColumnRef) string) {
	w.each(func(ref ColumnRef, set func(string)) {
		ref.Name = strings.ToUpper(ref.Name)
		set(name(ref))
	})
}

func (w *refWalker) collect() []ColumnRef {
	var refs []ColumnRef
	w.each(func(ref ColumnRef, _ func(string)) {
		if !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	})
	return refs
}

func hasNil(tree *parser.Tree) bool {
	found := false
	ast.Walk(&tree.Node, visitorFunc(func(node *ast.Node) {
		if _, ok := (*node).(*ast.NilNode); ok {
			found = true
		}
	}))
	return found
}

type visitorFunc func(node *ast.Node)

func (f visitorFunc) Visit(node *ast.Node) { f(node) }
