// Package parser implements a precedence-climbing (Pratt) parser that
// turns SEX source text into an ast.Node tree.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"recdb/internal/sex/ast"
	"recdb/internal/sex/lexer"
	"recdb/internal/sex/token"
)

const (
	LOWEST int = iota
	COND_PREC
	IMPLIES_PREC
	OR_PREC
	AND_PREC
	NOT_PREC
	COMPARE
	DATECMP_PREC
	MATCH_PREC
	SUM
	PRODUCT
	PREFIX
	CALL
)

var precedences = map[token.Type]int{
	token.QUESTION: COND_PREC,
	token.IMPLIES:  IMPLIES_PREC,
	token.OR:       OR_PREC,
	token.AND:      AND_PREC,
	token.EQ:       COMPARE,
	token.NEQ:      COMPARE,
	token.LT:       COMPARE,
	token.GT:       COMPARE,
	token.LTE:      COMPARE,
	token.GTE:      COMPARE,
	token.BEFORE:   DATECMP_PREC,
	token.AFTER:    DATECMP_PREC,
	token.SAMEDAY:  DATECMP_PREC,
	token.MATCH:    MATCH_PREC,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
}

var binOpKind = map[token.Type]ast.Kind{
	token.PLUS:     ast.Add,
	token.MINUS:    ast.Sub,
	token.ASTERISK: ast.Mul,
	token.SLASH:    ast.Div,
	token.PERCENT:  ast.Mod,
	token.EQ:       ast.Eql,
	token.NEQ:      ast.Neq,
	token.LT:       ast.Lt,
	token.GT:       ast.Gt,
	token.LTE:      ast.Lte,
	token.GTE:      ast.Gte,
	token.AND:      ast.And,
	token.OR:       ast.Or,
	token.MATCH:    ast.Mat,
	token.BEFORE:   ast.Before,
	token.AFTER:    ast.After,
	token.SAMEDAY:  ast.SameTime,
	token.IMPLIES:  ast.Implies,
}

// Parser is a recursive-descent/Pratt parser over a SEX token stream.
type Parser struct {
	l   *lexer.Lexer
	gen *ast.IDGen

	cur  token.Token
	peek token.Token

	errs []string
}

// Parse compiles source into an AST. An empty or whitespace-only source
// parses to a NoVal node that always evaluates true.
func Parse(source string) (*ast.Node, error) {
	if strings.TrimSpace(source) == "" {
		g := &ast.IDGen{}
		return g.New(ast.NoVal), nil
	}
	p := &Parser{l: lexer.New(source), gen: &ast.IDGen{}}
	p.next()
	p.next()
	n := p.parseExpression(LOWEST)
	if p.cur.Type != token.EOF {
		p.errs = append(p.errs, fmt.Sprintf("unexpected trailing token %q", p.cur.Literal))
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("sex: %s", strings.Join(p.errs, "; "))
	}
	return n, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peek.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parseExpression(precedence int) *ast.Node {
	left := p.parsePrefix()
	if left == nil {
		return p.gen.New(ast.NoVal)
	}

	for precedence < precedences[p.cur.Type] {
		left = p.parseInfix(left)
	}
	return left
}

func (p *Parser) parsePrefix() *ast.Node {
	switch p.cur.Type {
	case token.INT:
		v, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Sprintf("bad integer %q", p.cur.Literal))
		}
		n := p.gen.New(ast.IntLit)
		n.IntVal = v
		p.next()
		return n
	case token.REAL:
		v, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Sprintf("bad real %q", p.cur.Literal))
		}
		n := p.gen.New(ast.RealLit)
		n.RealVal = v
		p.next()
		return n
	case token.STRING:
		n := p.gen.New(ast.StrLit)
		n.StrVal = p.cur.Literal
		p.next()
		return n
	case token.IDENT:
		return p.parseName()
	case token.HASH:
		p.next()
		name := p.parseName()
		return p.gen.New(ast.HashOp, name)
	case token.MINUS:
		p.next()
		operand := p.parseExpression(PREFIX)
		return p.gen.New(ast.Neg, operand)
	case token.BANG:
		p.next()
		operand := p.parseExpression(PREFIX)
		return p.gen.New(ast.Not, operand)
	case token.LPAREN:
		p.next()
		n := p.parseExpression(LOWEST)
		if p.cur.Type == token.RPAREN {
			p.next()
		} else {
			p.errs = append(p.errs, "expected closing ')'")
		}
		return n
	default:
		p.errs = append(p.errs, fmt.Sprintf("unexpected token %q", p.cur.Literal))
		p.next()
		return p.gen.New(ast.NoVal)
	}
}

// parseName parses a bare NAME(.SUB)? identifier optionally followed by
// an explicit [N] subscript, producing a NameRef node.
func (p *Parser) parseName() *ast.Node {
	lit := p.cur.Literal
	base, sub := lit, ""
	if i := strings.IndexByte(lit, '.'); i >= 0 {
		base, sub = lit[:i], lit[i+1:]
	}
	n := p.gen.New(ast.NameRef)
	n.Base, n.Sub = base, sub
	n.Index = -1
	p.next()

	if p.cur.Type == token.LBRACKET {
		p.next()
		if p.cur.Type == token.INT {
			idx, _ := strconv.Atoi(p.cur.Literal)
			n.Index = idx
			p.next()
		}
		if p.cur.Type == token.RBRACKET {
			p.next()
		}
	}
	return n
}

func (p *Parser) parseInfix(left *ast.Node) *ast.Node {
	if p.cur.Type == token.QUESTION {
		return p.parseTernary(left)
	}

	kind, ok := binOpKind[p.cur.Type]
	if !ok {
		p.errs = append(p.errs, fmt.Sprintf("unexpected operator %q", p.cur.Literal))
		return left
	}
	prec := precedences[p.cur.Type]
	p.next()
	right := p.parseExpression(prec)
	return p.gen.New(kind, left, right)
}

func (p *Parser) parseTernary(cond *ast.Node) *ast.Node {
	p.next()
	thenExpr := p.parseExpression(COND_PREC)
	if p.cur.Type != token.COLON {
		p.errs = append(p.errs, "expected ':' in conditional expression")
		return p.gen.New(ast.Cond, cond, thenExpr, p.gen.New(ast.NoVal))
	}
	p.next()
	elseExpr := p.parseExpression(COND_PREC)
	return p.gen.New(ast.Cond, cond, thenExpr, elseExpr)
}
