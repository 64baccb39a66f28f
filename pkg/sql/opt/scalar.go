// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
)

// ScalarExpr is a scalar expression. It is a closed sum type: the only
// implementations are the expression types in this file.
type ScalarExpr interface {
	scalarExpr()
}

// Variable is a reference to a column.
type Variable struct {
	Col ColumnID
}

// Const is a constant value.
type Const struct {
	Value tree.Datum
}

// Placeholder is a query parameter whose value is not known at planning time.
type Placeholder struct {
	Idx int
}

// Comparison compares two scalar expressions.
type Comparison struct {
	Op    tree.ComparisonOperator
	Left  ScalarExpr
	Right ScalarExpr
}

// And is a logical conjunction.
type And struct {
	Left, Right ScalarExpr
}

// Or is a logical disjunction.
type Or struct {
	Left, Right ScalarExpr
}

// Not is a logical negation.
type Not struct {
	Input ScalarExpr
}

// IsNull tests its input for NULL.
type IsNull struct {
	Input ScalarExpr
}

// InList tests whether its input is equal to one of the list elements.
type InList struct {
	Input ScalarExpr
	List  []ScalarExpr
}

func (*Variable) scalarExpr()    {}
func (*Const) scalarExpr()       {}
func (*Placeholder) scalarExpr() {}
func (*Comparison) scalarExpr()  {}
func (*And) scalarExpr()         {}
func (*Or) scalarExpr()          {}
func (*Not) scalarExpr()         {}
func (*IsNull) scalarExpr()      {}
func (*InList) scalarExpr()      {}

// FiltersExpr is a list of conjuncts.
type FiltersExpr []ScalarExpr

// Conjuncts flattens nested And expressions into a list of conjuncts.
func Conjuncts(e ScalarExpr) FiltersExpr {
	var res FiltersExpr
	var walk func(e ScalarExpr)
	walk = func(e ScalarExpr) {
		if and, ok := e.(*And); ok {
			walk(and.Left)
			walk(and.Right)
			return
		}
		res = append(res, e)
	}
	if e != nil {
		walk(e)
	}
	return res
}

// OuterCols returns the columns referenced by e.
func OuterCols(e ScalarExpr) ColSet {
	var cols ColSet
	visitScalar(e, func(e ScalarExpr) {
		if v, ok := e.(*Variable); ok {
			cols.Add(int(v.Col))
		}
	})
	return cols
}

// OuterCols returns the columns referenced by any of the conjuncts.
func (f FiltersExpr) OuterCols() ColSet {
	var cols ColSet
	for _, e := range f {
		cols.UnionWith(OuterCols(e))
	}
	return cols
}

// Without returns the conjuncts of f that are not in remove. Conjuncts are
// compared by identity.
func (f FiltersExpr) Without(remove FiltersExpr) FiltersExpr {
	if len(remove) == 0 {
		return f
	}
	var res FiltersExpr
	for _, e := range f {
		found := false
		for _, r := range remove {
			if e == r {
				found = true
				break
			}
		}
		if !found {
			res = append(res, e)
		}
	}
	return res
}

func visitScalar(e ScalarExpr, fn func(ScalarExpr)) {
	if e == nil {
		return
	}
	fn(e)
	switch t := e.(type) {
	case *Variable, *Const, *Placeholder:
	case *Comparison:
		visitScalar(t.Left, fn)
		visitScalar(t.Right, fn)
	case *And:
		visitScalar(t.Left, fn)
		visitScalar(t.Right, fn)
	case *Or:
		visitScalar(t.Left, fn)
		visitScalar(t.Right, fn)
	case *Not:
		visitScalar(t.Input, fn)
	case *IsNull:
		visitScalar(t.Input, fn)
	case *InList:
		visitScalar(t.Input, fn)
		for _, l := range t.List {
			visitScalar(l, fn)
		}
	default:
		panic(errors.AssertionFailedf("unhandled scalar expression %T", e))
	}
}

// ColumnComparison describes a conjunct of the form "col op value".
type ColumnComparison struct {
	Col   ColumnID
	Op    tree.ComparisonOperator
	Value ScalarExpr
}

// MatchColumnComparison returns the comparison described by e if e compares
// a column against a constant, a placeholder or another column. The column
// is normalized to the left side.
func MatchColumnComparison(e ScalarExpr, col ColumnID) (ColumnComparison, bool) {
	cmp, ok := e.(*Comparison)
	if !ok {
		return ColumnComparison{}, false
	}
	if v, ok := cmp.Left.(*Variable); ok && v.Col == col && !refersTo(cmp.Right, col) {
		return ColumnComparison{Col: col, Op: cmp.Op, Value: cmp.Right}, isValue(cmp.Right)
	}
	if v, ok := cmp.Right.(*Variable); ok && v.Col == col && !refersTo(cmp.Left, col) {
		return ColumnComparison{Col: col, Op: cmp.Op.Commute(), Value: cmp.Left}, isValue(cmp.Left)
	}
	return ColumnComparison{}, false
}

func isValue(e ScalarExpr) bool {
	switch e.(type) {
	case *Const, *Placeholder, *Variable:
		return true
	}
	return false
}

func refersTo(e ScalarExpr, col ColumnID) bool {
	return OuterCols(e).Contains(int(col))
}

// FormatScalar returns a string representation of e, using md to name
// columns. md may be nil.
func FormatScalar(md *Metadata, e ScalarExpr) string {
	var sb strings.Builder
	formatScalar(&sb, md, e)
	return sb.String()
}

func formatScalar(sb *strings.Builder, md *Metadata, e ScalarExpr) {
	switch t := e.(type) {
	case *Variable:
		if md != nil {
			sb.WriteString(md.QualifiedAlias(t.Col))
		} else {
			sb.WriteString("@")
			sb.WriteString(strconv.Itoa(int(t.Col)))
		}
	case *Const:
		sb.WriteString(t.Value.String())
	case *Placeholder:
		sb.WriteString("$")
		sb.WriteString(strconv.Itoa(t.Idx))
	case *Comparison:
		formatScalar(sb, md, t.Left)
		sb.WriteString(" ")
		sb.WriteString(t.Op.String())
		sb.WriteString(" ")
		formatScalar(sb, md, t.Right)
	case *And:
		sb.WriteString("(")
		formatScalar(sb, md, t.Left)
		sb.WriteString(" AND ")
		formatScalar(sb, md, t.Right)
		sb.WriteString(")")
	case *Or:
		sb.WriteString("(")
		formatScalar(sb, md, t.Left)
		sb.WriteString(" OR ")
		formatScalar(sb, md, t.Right)
		sb.WriteString(")")
	case *Not:
		sb.WriteString("NOT ")
		formatScalar(sb, md, t.Input)
	case *IsNull:
		formatScalar(sb, md, t.Input)
		sb.WriteString(" IS NULL")
	case *InList:
		formatScalar(sb, md, t.Input)
		sb.WriteString(" IN (")
		for i, l := range t.List {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatScalar(sb, md, l)
		}
		sb.WriteString(")")
	default:
		panic(errors.AssertionFailedf("unhandled scalar expression %T", e))
	}
}

// FormatFilters returns the conjuncts of f joined by AND.
func FormatFilters(md *Metadata, f FiltersExpr) string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = FormatScalar(md, e)
	}
	return strings.Join(parts, " AND ")
}
