// Package ast defines the selection-expression abstract syntax tree.
package ast

// Kind enumerates every SEX AST node kind named in the specification.
type Kind int

const (
	NoVal Kind = iota
	IntLit
	RealLit
	StrLit
	NameRef

	Neg
	Not
	HashOp

	Add
	Sub
	Mul
	Div
	Mod

	Eql
	Neq
	Lt
	Lte
	Gt
	Gte

	And
	Or

	Concat
	Mat

	Before
	After
	SameTime

	Implies
	Cond
)

// Node is a single AST node. Binary/unary/ternary operators keep their
// operands in Children; NameRef carries Base/Sub (the field name, with
// Sub "" if no ".sub" was written) and Index (-1 if no explicit
// subscript was written in the source).
//
// Per the design note that a Name node's "fixed" memo cell belongs to an
// evaluation context rather than to the AST, Node carries only a stable
// ID; latch state lives in a side-table owned by the evaluator (see
// package eval), not on the node itself.
type Node struct {
	Kind Kind

	IntVal  int64
	RealVal float64
	StrVal  string

	Base  string
	Sub   string
	Index int // -1 = unbound (iterate), >=0 = explicit subscript

	Children []*Node

	id int
}

// ID returns the node's stable identity, used as the evaluator's
// latch-table key.
func (n *Node) ID() int { return n.id }

// IDGen hands out increasing, unique node identities for one parse.
type IDGen struct{ next int }

// New allocates a node with a fresh identity and the given kind/children.
func (g *IDGen) New(kind Kind, children ...*Node) *Node {
	g.next++
	return &Node{Kind: kind, Children: children, id: g.next, Index: -1}
}

// EffectiveName returns the field name this NameRef addresses: Base, or
// Base + "_" + Sub if a subname was written.
func (n *Node) EffectiveName() string {
	if n.Sub == "" {
		return n.Base
	}
	return n.Base + "_" + n.Sub
}

// HashName reports whether this node is a HashOp counting the given
// field name (used to exclude "#Name" references from the iteration
// algorithm's "AST mentions Name" test).
func HashName(n *Node) (string, bool) {
	if n.Kind == HashOp && len(n.Children) == 1 && n.Children[0].Kind == NameRef {
		return n.Children[0].EffectiveName(), true
	}
	return "", false
}

// Walk calls visit on n and every descendant, depth-first.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		Walk(c, visit)
	}
}
