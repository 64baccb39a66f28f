// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/stretchr/testify/require"
)

func TestSemiJoinKeyCols(t *testing.T) {
	sc, err := testcat.LoadScenario([]byte(threeGroups + `
query:
  from:
    join: semi
    left: {tree: {table: a}}
    right:
      as: v
      values:
        columns: [x int, lim int]
        rows: [["1", "10"]]
    on: a.x = v.x
  select: [a.y]
`))
	require.NoError(t, err)
	q, err := sc.Catalog.BuildQuery(sc.Query)
	require.NoError(t, err)
	md := q.Metadata

	col := func(name string) opt.ColumnID {
		for c := opt.ColumnID(1); int(c) <= md.NumColumns(); c++ {
			if md.QualifiedAlias(c) == name {
				return c
			}
		}
		t.Fatalf("no column %s", name)
		return 0
	}
	ax, ay := col("a.x"), col("a.y")
	vx, vlim := col("v.x"), col("v.lim")
	right := opt.MakeColSet(vx, vlim)

	v := func(c opt.ColumnID) opt.ScalarExpr { return &opt.Variable{Col: c} }
	cmp := func(op tree.ComparisonOperator, l, r opt.ScalarExpr) opt.ScalarExpr {
		return &opt.Comparison{Op: op, Left: l, Right: r}
	}

	testCases := []struct {
		name string
		on   opt.FiltersExpr
		keys opt.ColSet
		ok   bool
	}{
		{
			name: "equality",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(ax), v(vx))},
			keys: opt.MakeColSet(vx),
			ok:   true,
		},
		{
			name: "right column first",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(vx), v(ax))},
			keys: opt.MakeColSet(vx),
			ok:   true,
		},
		{
			name: "two equalities",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(ax), v(vx)), cmp(tree.EQ, v(ay), v(vlim))},
			keys: opt.MakeColSet(vx, vlim),
			ok:   true,
		},
		{name: "no conditions"},
		{
			name: "inequality on another right column",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(ax), v(vx)), cmp(tree.LT, v(ay), v(vlim))},
		},
		{
			name: "constant",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(vx), &opt.Const{Value: tree.NewDInt(1)})},
		},
		{
			name: "both right",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(vx), v(vlim))},
		},
		{
			name: "both left",
			on:   opt.FiltersExpr{cmp(tree.EQ, v(ax), v(ay))},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			keys, ok := semiJoinKeyCols(tc.on, right)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.True(t, tc.keys.Equals(keys), "got %s", keys)
			}
		})
	}
}
