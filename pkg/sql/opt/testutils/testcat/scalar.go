// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
)

// The condition language of scenario files:
//
//	expr    = or
//	or      = and {OR and}
//	and     = not {AND not}
//	not     = NOT not | pred
//	pred    = '(' expr ')' | operand [cmp operand | IS [NOT] NULL | [NOT] IN '(' operand {',' operand} ')']
//	operand = column | number | 'string' | NULL | TRUE | FALSE | $n
//
// Literals take the type of the column they are compared with.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPlaceholder
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'':
			var sb strings.Builder
			j := i + 1
			for ; ; j++ {
				if j >= len(s) {
					return nil, errors.Newf("unterminated string in %q", s)
				}
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						sb.WriteByte('\'')
						j++
						continue
					}
					break
				}
				sb.WriteByte(s[j])
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case c == '$':
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j == i+1 {
				return nil, errors.Newf("invalid placeholder in %q", s)
			}
			toks = append(toks, token{tokPlaceholder, s[i+1 : j]})
			i = j
		case c == '=' || c == '<' || c == '>' || c == '!':
			j := i + 1
			if j < len(s) && (s[j] == '=' || (c == '<' && s[j] == '>')) {
				j++
			}
			op := s[i:j]
			if op == "!" {
				return nil, errors.Newf("invalid operator in %q", s)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(s) && (s[j] == '.' || (s[j] >= '0' && s[j] <= '9') || s[j] == 'e' || s[j] == 'E') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case c == '_' || unicode.IsLetter(rune(c)):
			j := i + 1
			for j < len(s) && (s[j] == '_' || s[j] == '.' || unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return nil, errors.Newf("unexpected character %q in %q", c, s)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// columnResolver maps a column reference to its id and type.
type columnResolver interface {
	resolveColumn(name string) (opt.ColumnID, tree.Family, error)
}

type scalarParser struct {
	src  string
	toks []token
	pos  int
	res  columnResolver
}

// operand is a parsed operand; literals are typed once the other side of
// the comparison is known.
type operand struct {
	expr opt.ScalarExpr
	typ  tree.Family
	// lit is set for untyped literals.
	lit *token
}

// parseScalar parses a condition, resolving columns with res.
func parseScalar(src string, res columnResolver) (opt.ScalarExpr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &scalarParser{src: src, toks: toks, res: res}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return e, nil
}

// parseFilters parses a condition into its conjuncts. An empty string
// yields no filters.
func parseFilters(src string, res columnResolver) (opt.FiltersExpr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	e, err := parseScalar(src, res)
	if err != nil {
		return nil, err
	}
	return opt.Conjuncts(e), nil
}

func (p *scalarParser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.Newf(format, args...), "parsing %q", p.src)
}

func (p *scalarParser) peek() token { return p.toks[p.pos] }

func (p *scalarParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *scalarParser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *scalarParser) expect(kind tokenKind, what string) error {
	if p.next().kind != kind {
		return p.errorf("expected %s", what)
	}
	return nil
}

func (p *scalarParser) parseOr() (opt.ScalarExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &opt.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *scalarParser) parseAnd() (opt.ScalarExpr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &opt.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *scalarParser) parseNot() (opt.ScalarExpr, error) {
	if p.keyword("NOT") {
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &opt.Not{Input: e}, nil
	}
	return p.parsePred()
}

func (p *scalarParser) parsePred() (opt.ScalarExpr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.keyword("IS") {
		not := p.keyword("NOT")
		if !p.keyword("NULL") {
			return nil, p.errorf("expected NULL after IS")
		}
		in, err := p.typed(left, tree.UnknownFamily)
		if err != nil {
			return nil, err
		}
		var e opt.ScalarExpr = &opt.IsNull{Input: in}
		if not {
			e = &opt.Not{Input: e}
		}
		return e, nil
	}

	not := p.keyword("NOT")
	if p.keyword("IN") {
		return p.parseInList(left, not)
	}
	if not {
		return nil, p.errorf("expected IN after NOT")
	}

	t := p.peek()
	if t.kind != tokOp {
		if left.lit != nil || left.typ != tree.BoolFamily {
			return nil, p.errorf("expected comparison")
		}
		return left.expr, nil
	}
	p.next()
	op, err := tree.ComparisonOperatorByName(t.text)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	l, r, err := p.unify(left, right)
	if err != nil {
		return nil, err
	}
	return &opt.Comparison{Op: op, Left: l, Right: r}, nil
}

func (p *scalarParser) parseInList(left operand, not bool) (opt.ScalarExpr, error) {
	if err := p.expect(tokLParen, "'(' after IN"); err != nil {
		return nil, err
	}
	var items []operand
	for {
		o, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		items = append(items, o)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	typ := left.typ
	if left.lit != nil {
		for _, it := range items {
			if it.lit == nil {
				typ = it.typ
				break
			}
		}
	}
	in, err := p.typed(left, typ)
	if err != nil {
		return nil, err
	}
	list := make([]opt.ScalarExpr, len(items))
	for i, it := range items {
		if list[i], err = p.typed(it, typ); err != nil {
			return nil, err
		}
	}
	var e opt.ScalarExpr = &opt.InList{Input: in, List: list}
	if not {
		e = &opt.Not{Input: e}
	}
	return e, nil
}

func (p *scalarParser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "NULL":
			return operand{expr: &opt.Const{Value: tree.DNull}, typ: tree.UnknownFamily}, nil
		case "TRUE":
			return operand{expr: &opt.Const{Value: tree.DBool(true)}, typ: tree.BoolFamily}, nil
		case "FALSE":
			return operand{expr: &opt.Const{Value: tree.DBool(false)}, typ: tree.BoolFamily}, nil
		}
		col, typ, err := p.res.resolveColumn(t.text)
		if err != nil {
			return operand{}, p.errorf("%v", err)
		}
		return operand{expr: &opt.Variable{Col: col}, typ: typ}, nil
	case tokNumber, tokString:
		tt := t
		return operand{lit: &tt}, nil
	case tokPlaceholder:
		idx, err := strconv.Atoi(t.text)
		if err != nil {
			return operand{}, p.errorf("%v", err)
		}
		return operand{expr: &opt.Placeholder{Idx: idx}, typ: tree.UnknownFamily}, nil
	}
	return operand{}, p.errorf("expected operand, found %q", t.text)
}

func (p *scalarParser) unify(l, r operand) (opt.ScalarExpr, opt.ScalarExpr, error) {
	typ := tree.UnknownFamily
	switch {
	case l.lit == nil && l.typ != tree.UnknownFamily:
		typ = l.typ
	case r.lit == nil && r.typ != tree.UnknownFamily:
		typ = r.typ
	}
	le, err := p.typed(l, typ)
	if err != nil {
		return nil, nil, err
	}
	re, err := p.typed(r, typ)
	if err != nil {
		return nil, nil, err
	}
	return le, re, nil
}

// typed returns the expression of o, parsing literals as values of typ. An
// unknown type parses numbers as INT or FLOAT and strings as STRING.
func (p *scalarParser) typed(o operand, typ tree.Family) (opt.ScalarExpr, error) {
	if o.lit == nil {
		return o.expr, nil
	}
	if typ == tree.UnknownFamily {
		typ = tree.StringFamily
		if o.lit.kind == tokNumber {
			typ = tree.IntFamily
			if strings.ContainsAny(o.lit.text, ".eE") {
				typ = tree.FloatFamily
			}
		}
	}
	if o.lit.kind == tokNumber && typ == tree.StringFamily {
		return nil, p.errorf("cannot compare %s with a string column", o.lit.text)
	}
	d, err := tree.ParseDatum(typ, o.lit.text)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	return &opt.Const{Value: d}, nil
}
