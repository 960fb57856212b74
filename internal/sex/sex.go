// Package sex compiles and evaluates selection expressions. It installs
// itself as the compiler core.RSet.Rebuild uses for "%constraint"
// fields (via core.CompileSex), so importing this package anywhere in a
// binary is enough to make descriptor constraints work.
package sex

import (
	"recdb/internal/core"
	"recdb/internal/sex/ast"
	"recdb/internal/sex/eval"
	"recdb/internal/sex/parser"
)

func init() {
	core.CompileSex = func(expr string) (core.Predicate, error) {
		return Compile(expr)
	}
}

// Expr is a compiled selection expression: an AST plus the source text
// it was parsed from.
type Expr struct {
	root   *ast.Node
	source string

	// IgnoreCase, when set via WithIgnoreCase, makes string equality
	// comparisons case-insensitive (REC_F_ICASE).
	IgnoreCase bool
}

// Compile parses source into an Expr.
func Compile(source string) (*Expr, error) {
	root, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	return &Expr{root: root, source: source}, nil
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.source }

// Eval implements core.Predicate: it runs the full field-latching
// iteration algorithm against record.
func (e *Expr) Eval(record *core.Record) bool {
	ev := eval.New(e.root)
	ev.IgnoreCase = e.IgnoreCase
	return ev.Eval(record)
}

// WithIgnoreCase returns a copy of e with case-insensitive string
// comparison enabled.
func (e *Expr) WithIgnoreCase(icase bool) *Expr {
	ne := *e
	ne.IgnoreCase = icase
	return &ne
}
