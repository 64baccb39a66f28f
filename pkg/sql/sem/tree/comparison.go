// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ComparisonOperator represents a binary comparison operator.
type ComparisonOperator int

// ComparisonExpr.Operator
const (
	EQ ComparisonOperator = iota
	NE
	LT
	LE
	GT
	GE
)

var comparisonOpName = [...]string{
	EQ: "=",
	NE: "!=",
	LT: "<",
	LE: "<=",
	GT: ">",
	GE: ">=",
}

func (op ComparisonOperator) String() string {
	if op < 0 || int(op) >= len(comparisonOpName) {
		return fmt.Sprintf("ComparisonOp(%d)", int(op))
	}
	return comparisonOpName[op]
}

// ComparisonOperatorByName returns the operator spelled as name.
func ComparisonOperatorByName(name string) (ComparisonOperator, error) {
	for i, n := range comparisonOpName {
		if n == name {
			return ComparisonOperator(i), nil
		}
	}
	if name == "<>" {
		return NE, nil
	}
	return 0, errors.Newf("unknown comparison operator %q", name)
}

// Commute returns the operator to use when the operands are swapped, so that
// "a op b" is equivalent to "b op.Commute() a".
func (op ComparisonOperator) Commute() ComparisonOperator {
	switch op {
	case LT:
		return GT
	case LE:
		return GE
	case GT:
		return LT
	case GE:
		return LE
	}
	return op
}

// IsRange returns true for the inequality operators that bound a range.
func (op ComparisonOperator) IsRange() bool {
	return op == LT || op == LE || op == GT || op == GE
}

// Eval evaluates "left op right" for non-NULL datums. It returns false when
// either side is NULL.
func (op ComparisonOperator) Eval(left, right Datum) bool {
	if left == DNull || right == DNull {
		return false
	}
	c := left.Compare(right)
	switch op {
	case EQ:
		return c == 0
	case NE:
		return c != 0
	case LT:
		return c < 0
	case LE:
		return c <= 0
	case GT:
		return c > 0
	case GE:
		return c >= 0
	}
	return false
}
