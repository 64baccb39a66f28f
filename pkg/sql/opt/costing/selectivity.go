// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing

import (
	"context"
	"math"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
)

// columnHistogram finds a histogram for the given column: the leading key
// column histogram of any index of the column's table that has one.
func (m *Model) columnHistogram(
	ctx context.Context, md *opt.Metadata, col opt.ColumnID,
) (h *stats.Histogram, descending bool) {
	tabID := md.ColumnTable(col)
	if tabID == 0 {
		return nil, false
	}
	tm := md.TableMeta(tabID)
	ord := tm.ColumnOrdinal(col)
	for i, n := 0, tm.Table.IndexCount(); i < n; i++ {
		idx := tm.Table.Index(i)
		if idx.KeyColumnCount() == 0 {
			continue
		}
		c := idx.Column(0)
		if c.Table.ID() != tm.Table.ID() || c.Ordinal != ord {
			continue
		}
		if st := m.stats.IndexStatistics(ctx, idx); st != nil {
			if h := st.Histogram(0); h != nil {
				return h, c.Descending
			}
		}
	}
	return nil, false
}

// distinctCount returns the number of distinct values of col, or a negative
// value if unknown.
func (m *Model) distinctCount(ctx context.Context, md *opt.Metadata, col opt.ColumnID) float64 {
	if h, _ := m.columnHistogram(ctx, md, col); h != nil {
		return h.DistinctCount()
	}
	return -1
}

// ConditionSelectivity estimates the fraction of rows that satisfy e.
// Predicates that cannot be estimated from statistics get the missing
// statistics selectivity.
func (m *Model) ConditionSelectivity(
	ctx context.Context, md *opt.Metadata, e opt.ScalarExpr,
) Selectivity {
	missing := MakeSelectivity(m.missingSel)
	switch t := e.(type) {
	case *opt.And:
		s := m.ConditionSelectivity(ctx, md, t.Left)
		s.Multiply(m.ConditionSelectivity(ctx, md, t.Right))
		return s

	case *opt.Or:
		l := m.ConditionSelectivity(ctx, md, t.Left).AsFloat()
		r := m.ConditionSelectivity(ctx, md, t.Right).AsFloat()
		return MakeSelectivity(l + r - l*r)

	case *opt.Not:
		s := OneSelectivity
		s.Subtract(m.ConditionSelectivity(ctx, md, t.Input))
		return s

	case *opt.InList:
		s := ZeroSelectivity
		for _, v := range t.List {
			s.Add(m.ConditionSelectivity(ctx, md, &opt.Comparison{Op: tree.EQ, Left: t.Input, Right: v}))
		}
		return s

	case *opt.IsNull:
		v, ok := t.Input.(*opt.Variable)
		if !ok {
			return missing
		}
		if tabID := md.ColumnTable(v.Col); tabID != 0 {
			tm := md.TableMeta(tabID)
			if !tm.Table.Column(tm.ColumnOrdinal(v.Col)).Nullable {
				return ZeroSelectivity
			}
		}
		h, desc := m.columnHistogram(ctx, md, v.Col)
		if h == nil || h.RowCount() == 0 {
			return missing
		}
		return MakeSelectivity(h.EqualRows(tree.DNull.EncodeKey(nil, desc)) / h.RowCount())

	case *opt.Comparison:
		l, lok := t.Left.(*opt.Variable)
		r, rok := t.Right.(*opt.Variable)
		if lok && rok {
			return m.joinComparisonSelectivity(ctx, md, t.Op, l.Col, r.Col)
		}
		col := l
		cmp, ok := opt.ColumnComparison{}, false
		if lok {
			cmp, ok = opt.MatchColumnComparison(t, l.Col)
		} else if rok {
			col = r
			cmp, ok = opt.MatchColumnComparison(t, r.Col)
		}
		if !ok {
			return missing
		}
		h, desc := m.columnHistogram(ctx, md, col.Col)
		if h == nil {
			return missing
		}
		return m.comparisonSelectivity(h, desc, cmp)
	}
	return missing
}

func (m *Model) comparisonSelectivity(
	h *stats.Histogram, desc bool, cmp opt.ColumnComparison,
) Selectivity {
	switch cmp.Op {
	case tree.EQ:
		return m.equalitySelectivity(h, desc, cmp.Value)
	case tree.NE:
		s := OneSelectivity
		s.Subtract(m.equalitySelectivity(h, desc, cmp.Value))
		return s
	case tree.LT, tree.LE:
		return m.rangeSelectivity(h, desc, nil, &RangeBound{Value: cmp.Value, Inclusive: cmp.Op == tree.LE})
	case tree.GT, tree.GE:
		return m.rangeSelectivity(h, desc, &RangeBound{Value: cmp.Value, Inclusive: cmp.Op == tree.GE}, nil)
	}
	return MakeSelectivity(m.missingSel)
}

func (m *Model) joinComparisonSelectivity(
	ctx context.Context, md *opt.Metadata, op tree.ComparisonOperator, a, b opt.ColumnID,
) Selectivity {
	if op != tree.EQ {
		return MakeSelectivity(m.missingSel)
	}
	d := math.Max(m.distinctCount(ctx, md, a), m.distinctCount(ctx, md, b))
	if d <= 0 {
		return MakeSelectivity(m.missingSel)
	}
	return MakeSelectivity(1 / d)
}

// JoinConditionSelectivity estimates the fraction of row pairs that satisfy
// all of the given conditions, assuming independence.
func (m *Model) JoinConditionSelectivity(
	ctx context.Context, md *opt.Metadata, conds opt.FiltersExpr,
) Selectivity {
	s := OneSelectivity
	for _, c := range conds {
		s.Multiply(m.ConditionSelectivity(ctx, md, c))
	}
	return s
}
