// Package eval evaluates a SEX AST against a record, implementing the
// field-latching iteration algorithm: a predicate naming a repeated
// field matches if ANY occurrence of that field satisfies it, unless an
// explicit subscript pins one occurrence.
package eval

import (
	"regexp"
	"strconv"
	"strings"

	"recdb/internal/core"
	"recdb/internal/rectype"
	"recdb/internal/sex/ast"
)

// ValueKind tags the three runtime value domains a SEX expression can
// produce.
type ValueKind int

const (
	VInt ValueKind = iota
	VReal
	VStr
)

// Value is a SEX runtime value: exactly one of an int, a real or a
// string, tagged by Kind.
type Value struct {
	Kind ValueKind
	I    int64
	R    float64
	S    string
}

// Evaluator evaluates one compiled AST against records. IgnoreCase
// controls string equality/inequality comparisons (REC_F_ICASE).
type Evaluator struct {
	Root       *ast.Node
	IgnoreCase bool

	latch map[int]Value
	ok    bool // set false by the current evalNode call tree on a hard error
}

// New returns an evaluator for root.
func New(root *ast.Node) *Evaluator {
	return &Evaluator{Root: root, latch: make(map[int]Value)}
}

// Eval implements the full record-evaluation algorithm from the
// specification: unlatch, try the whole record once, then vary each
// multiply-occurring referenced field in turn.
func (e *Evaluator) Eval(record *core.Record) bool {
	e.latch = make(map[int]Value)

	if e.evalOnce(e.Root, record) {
		return true
	}

	record.ResetMarks()
	fields := record.Fields()
	for _, f := range fields {
		if f.Mark() != 0 {
			continue
		}
		name := f.Name
		count := record.NumFieldsByName(name)
		if count <= 1 {
			continue
		}
		if !mentionsName(e.Root, name) || mentionsHashName(e.Root, name) {
			continue
		}

		for _, f2 := range fields {
			if f2.Name == name {
				f2.SetMark(1)
			}
		}

		for k := 0; k < count; k++ {
			working := buildWorking(record, name, k)
			if e.evalOnce(e.Root, working) {
				return true
			}
		}
	}

	return false
}

func buildWorking(record *core.Record, name string, k int) *core.Record {
	working := record.Dup()
	nth := record.FieldByName(name, k)
	working.RemoveFieldByName(name, -1)
	if nth != nil {
		working.AppendField(nth.Dup())
	}
	return working
}

func mentionsName(root *ast.Node, name string) bool {
	found := false
	ast.Walk(root, func(n *ast.Node) {
		if n.Kind == ast.NameRef && n.EffectiveName() == name {
			found = true
		}
	})
	return found
}

func mentionsHashName(root *ast.Node, name string) bool {
	found := false
	ast.Walk(root, func(n *ast.Node) {
		if hashed, ok := ast.HashName(n); ok && hashed == name {
			found = true
		}
	})
	return found
}

func (e *Evaluator) evalOnce(root *ast.Node, record *core.Record) bool {
	e.ok = true
	v := e.evalNode(root, record)
	if !e.ok {
		return false
	}
	return truthy(v)
}

func truthy(v Value) bool {
	switch v.Kind {
	case VInt:
		return v.I != 0
	case VReal:
		return v.R != 0
	default:
		if v.S == "" {
			return false
		}
		if f, err := strconv.ParseFloat(v.S, 64); err == nil {
			return f != 0
		}
		return true
	}
}

func (e *Evaluator) fail() Value {
	e.ok = false
	return Value{Kind: VInt, I: 0}
}

func (e *Evaluator) evalNode(n *ast.Node, record *core.Record) Value {
	if !e.ok {
		return Value{}
	}
	switch n.Kind {
	case ast.NoVal:
		return Value{Kind: VInt, I: 1}
	case ast.IntLit:
		return Value{Kind: VInt, I: n.IntVal}
	case ast.RealLit:
		return Value{Kind: VReal, R: n.RealVal}
	case ast.StrLit:
		return Value{Kind: VStr, S: n.StrVal}
	case ast.NameRef:
		return e.resolveName(n, record)

	case ast.Neg:
		v := e.evalNode(n.Children[0], record)
		if isReal(v) {
			f, err := toReal(v)
			if err != nil {
				return e.fail()
			}
			return Value{Kind: VReal, R: -f}
		}
		i, err := toInt(v)
		if err != nil {
			return e.fail()
		}
		return Value{Kind: VInt, I: -i}

	case ast.Not:
		v := e.evalNode(n.Children[0], record)
		if !e.ok {
			return Value{}
		}
		return boolValue(!truthy(v))

	case ast.HashOp:
		name := n.Children[0].EffectiveName()
		return Value{Kind: VInt, I: int64(record.NumFieldsByName(name))}

	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		return e.evalArith(n, record)

	case ast.Eql, ast.Neq:
		return e.evalEquality(n, record)

	case ast.Lt, ast.Gt, ast.Lte, ast.Gte:
		return e.evalOrder(n, record)

	case ast.And:
		l := e.evalNode(n.Children[0], record)
		if !e.ok {
			return Value{}
		}
		if !truthy(l) {
			return boolValue(false)
		}
		r := e.evalNode(n.Children[1], record)
		if !e.ok {
			return Value{}
		}
		return boolValue(truthy(r))

	case ast.Or:
		l := e.evalNode(n.Children[0], record)
		if !e.ok {
			return Value{}
		}
		if truthy(l) {
			return boolValue(true)
		}
		r := e.evalNode(n.Children[1], record)
		if !e.ok {
			return Value{}
		}
		return boolValue(truthy(r))

	case ast.Implies:
		l := e.evalNode(n.Children[0], record)
		if !e.ok {
			return Value{}
		}
		if !truthy(l) {
			return boolValue(true)
		}
		r := e.evalNode(n.Children[1], record)
		if !e.ok {
			return Value{}
		}
		return boolValue(truthy(r))

	case ast.Mat:
		l := e.evalNode(n.Children[0], record)
		r := e.evalNode(n.Children[1], record)
		if !e.ok {
			return Value{}
		}
		re, err := regexp.Compile(asString(r))
		if err != nil {
			return e.fail()
		}
		return boolValue(re.MatchString(asString(l)))

	case ast.Before, ast.After, ast.SameTime:
		l := e.evalNode(n.Children[0], record)
		r := e.evalNode(n.Children[1], record)
		if !e.ok {
			return Value{}
		}
		lt, lok := rectype.ParseDate(asString(l))
		rt, rok := rectype.ParseDate(asString(r))
		if !lok || !rok {
			return e.fail()
		}
		switch n.Kind {
		case ast.Before:
			return boolValue(lt.Before(rt))
		case ast.After:
			return boolValue(lt.After(rt))
		default:
			ly, lm, ld := lt.Date()
			ry, rm, rd := rt.Date()
			return boolValue(ly == ry && lm == rm && ld == rd)
		}

	case ast.Cond:
		c := e.evalNode(n.Children[0], record)
		if !e.ok {
			return Value{}
		}
		if truthy(c) {
			return e.evalNode(n.Children[1], record)
		}
		return e.evalNode(n.Children[2], record)
	}

	return e.fail()
}

func (e *Evaluator) resolveName(n *ast.Node, record *core.Record) Value {
	if v, ok := e.latch[n.ID()]; ok {
		return v
	}

	idx := n.Index
	if idx < 0 {
		idx = 0
	}
	f := record.FieldByName(n.EffectiveName(), idx)
	var v Value
	if f == nil {
		v = Value{Kind: VStr, S: ""}
	} else {
		v = Value{Kind: VStr, S: f.Value}
	}

	if n.Index != -1 {
		e.latch[n.ID()] = v
	}
	return v
}

func boolValue(b bool) Value {
	if b {
		return Value{Kind: VInt, I: 1}
	}
	return Value{Kind: VInt, I: 0}
}

func asString(v Value) string {
	switch v.Kind {
	case VInt:
		return strconv.FormatInt(v.I, 10)
	case VReal:
		return strconv.FormatFloat(v.R, 'g', -1, 64)
	default:
		return v.S
	}
}

// isReal reports whether v should drive an operator into real-valued
// arithmetic: it is a real literal, or a string that parses as a real
// but not as an int.
func isReal(v Value) bool {
	switch v.Kind {
	case VReal:
		return true
	case VInt:
		return false
	default:
		s := strings.TrimSpace(v.S)
		if s == "" {
			return false
		}
		if _, err := strconv.ParseInt(s, 0, 64); err == nil {
			return false
		}
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	}
}

// isNumeric reports whether v can be coerced to a number at all.
func isNumeric(v Value) bool {
	switch v.Kind {
	case VInt, VReal:
		return true
	default:
		s := strings.TrimSpace(v.S)
		if s == "" {
			return true
		}
		if _, err := strconv.ParseInt(s, 0, 64); err == nil {
			return true
		}
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	}
}

func toInt(v Value) (int64, error) {
	switch v.Kind {
	case VInt:
		return v.I, nil
	case VReal:
		return int64(v.R), nil
	default:
		s := strings.TrimSpace(v.S)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 0, 64)
	}
}

func toReal(v Value) (float64, error) {
	switch v.Kind {
	case VReal:
		return v.R, nil
	case VInt:
		return float64(v.I), nil
	default:
		s := strings.TrimSpace(v.S)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
}

func (e *Evaluator) evalArith(n *ast.Node, record *core.Record) Value {
	l := e.evalNode(n.Children[0], record)
	r := e.evalNode(n.Children[1], record)
	if !e.ok {
		return Value{}
	}

	// '+' concatenates rather than adds when either side cannot be
	// coerced to a number at all (e.g. plain words): this realizes the
	// spec's separate "Concat" node as a runtime fallback of Add, since
	// the grammar uses one operator for both and only the operand types
	// distinguish them.
	if n.Kind == ast.Add && (!isNumeric(l) || !isNumeric(r)) {
		return Value{Kind: VStr, S: asString(l) + asString(r)}
	}

	if isReal(l) || isReal(r) {
		lf, err1 := toReal(l)
		rf, err2 := toReal(r)
		if err1 != nil || err2 != nil {
			return e.fail()
		}
		switch n.Kind {
		case ast.Add:
			return Value{Kind: VReal, R: lf + rf}
		case ast.Sub:
			return Value{Kind: VReal, R: lf - rf}
		case ast.Mul:
			return Value{Kind: VReal, R: lf * rf}
		case ast.Div:
			if rf == 0 {
				return e.fail()
			}
			return Value{Kind: VReal, R: lf / rf}
		case ast.Mod:
			if rf == 0 {
				return e.fail()
			}
			return Value{Kind: VReal, R: float64(int64(lf) % int64(rf))}
		}
	}

	li, err1 := toInt(l)
	ri, err2 := toInt(r)
	if err1 != nil || err2 != nil {
		return e.fail()
	}
	switch n.Kind {
	case ast.Add:
		return Value{Kind: VInt, I: li + ri}
	case ast.Sub:
		return Value{Kind: VInt, I: li - ri}
	case ast.Mul:
		return Value{Kind: VInt, I: li * ri}
	case ast.Div:
		if ri == 0 {
			return e.fail()
		}
		return Value{Kind: VInt, I: li / ri}
	case ast.Mod:
		if ri == 0 {
			return e.fail()
		}
		return Value{Kind: VInt, I: li % ri}
	}
	return e.fail()
}

func (e *Evaluator) evalEquality(n *ast.Node, record *core.Record) Value {
	l := e.evalNode(n.Children[0], record)
	r := e.evalNode(n.Children[1], record)
	if !e.ok {
		return Value{}
	}

	if l.Kind == VStr && r.Kind == VStr {
		ls, rs := l.S, r.S
		if e.IgnoreCase {
			ls, rs = strings.ToLower(ls), strings.ToLower(rs)
		}
		eq := ls == rs
		if n.Kind == ast.Neq {
			eq = !eq
		}
		return boolValue(eq)
	}

	lf, err1 := toReal(l)
	rf, err2 := toReal(r)
	if err1 != nil || err2 != nil {
		return e.fail()
	}
	eq := lf == rf
	if n.Kind == ast.Neq {
		eq = !eq
	}
	return boolValue(eq)
}

func (e *Evaluator) evalOrder(n *ast.Node, record *core.Record) Value {
	l := e.evalNode(n.Children[0], record)
	r := e.evalNode(n.Children[1], record)
	if !e.ok {
		return Value{}
	}

	var c int
	lf, err1 := toReal(l)
	rf, err2 := toReal(r)
	if err1 == nil && err2 == nil {
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	} else {
		c = strings.Compare(asString(l), asString(r))
	}

	switch n.Kind {
	case ast.Lt:
		return boolValue(c < 0)
	case ast.Gt:
		return boolValue(c > 0)
	case ast.Lte:
		return boolValue(c <= 0)
	default:
		return boolValue(c >= 0)
	}
}

// String renders a value as the writer/aggregate formatting contract
// expects ("%d"/"%g" style, raw text for strings).
func (v Value) String() string {
	switch v.Kind {
	case VInt:
		return strconv.FormatInt(v.I, 10)
	case VReal:
		return strconv.FormatFloat(v.R, 'g', -1, 64)
	default:
		return v.S
	}
}
