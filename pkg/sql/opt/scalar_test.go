// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/stretchr/testify/require"
)

func TestConjunctsAndOuterCols(t *testing.T) {
	a := &Comparison{Op: tree.EQ, Left: &Variable{Col: 1}, Right: &Const{Value: tree.DInt(5)}}
	b := &Comparison{Op: tree.LT, Left: &Variable{Col: 2}, Right: &Variable{Col: 3}}
	c := &IsNull{Input: &Variable{Col: 4}}
	e := &And{Left: a, Right: &And{Left: b, Right: c}}

	f := Conjuncts(e)
	require.Equal(t, FiltersExpr{a, b, c}, f)
	require.Equal(t, MakeColSet(1, 2, 3, 4), f.OuterCols())
	require.Equal(t, FiltersExpr{a, c}, f.Without(FiltersExpr{b}))
	require.Equal(t, "(@1 = 5 AND (@2 < @3 AND @4 IS NULL))", FormatScalar(nil, e))
}

func TestMatchColumnComparison(t *testing.T) {
	e := &Comparison{Op: tree.LT, Left: &Const{Value: tree.DInt(5)}, Right: &Variable{Col: 1}}
	m, ok := MatchColumnComparison(e, 1)
	require.True(t, ok)
	require.Equal(t, tree.GT, m.Op)
	require.Equal(t, &Const{Value: tree.DInt(5)}, m.Value)

	_, ok = MatchColumnComparison(e, 2)
	require.False(t, ok)

	self := &Comparison{Op: tree.EQ, Left: &Variable{Col: 1}, Right: &Variable{Col: 1}}
	_, ok = MatchColumnComparison(self, 1)
	require.False(t, ok)

	nested := &Comparison{Op: tree.EQ, Left: &Variable{Col: 1}, Right: &Not{Input: &Variable{Col: 2}}}
	_, ok = MatchColumnComparison(nested, 1)
	require.False(t, ok)
}
