// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
)

// EstimateGroupScan estimates a full scan of a storage group containing
// tables with the given row counts.
func (m *Model) EstimateGroupScan(tableRows []float64) CostEstimate {
	var rows float64
	for _, r := range tableRows {
		rows += r
	}
	return CostEstimate{
		RowCount: rows,
		Cost:     m.Units.RandomAccess + rows*m.Units.SequentialRow,
	}
}

// EstimateAncestorLookup estimates fetching n ancestor rows for each input
// row.
func (m *Model) EstimateAncestorLookup(in CostEstimate, n int) CostEstimate {
	return CostEstimate{
		RowCount: in.RowCount,
		Cost:     in.Cost + in.RowCount*float64(n)*m.Units.RandomAccess,
	}
}

// EstimateBranchLookup estimates fetching, for each input row, the subtree
// below it; fanout is the number of branch rows per input row.
func (m *Model) EstimateBranchLookup(in CostEstimate, fanout float64) CostEstimate {
	return CostEstimate{
		RowCount: in.RowCount * fanout,
		Cost:     in.Cost + in.RowCount*(m.Units.RandomAccess+fanout*m.Units.SequentialRow),
	}
}

// EstimateFlatten estimates flattening nested rows into rows flat rows.
func (m *Model) EstimateFlatten(in CostEstimate, rows float64) CostEstimate {
	return CostEstimate{
		RowCount: rows,
		Cost:     in.Cost + rows*m.Units.FlattenRow,
	}
}

// EstimateProduct estimates the product of independent branches sharing an
// ancestor. main and branches are estimates over all ancRows ancestor rows;
// each branch contributes its rows per ancestor row as a factor.
func (m *Model) EstimateProduct(
	main CostEstimate, branches []CostEstimate, ancRows float64,
) CostEstimate {
	rows := main.RowCount
	cost := main.Cost
	for _, b := range branches {
		cost += b.Cost
		if ancRows > 0 {
			rows *= b.RowCount / ancRows
		} else {
			rows = 0
		}
	}
	return CostEstimate{RowCount: rows, Cost: cost + rows*m.Units.ProductRow}
}

// EstimateSort estimates sorting the input.
func (m *Model) EstimateSort(in CostEstimate) CostEstimate {
	rows := in.RowCount
	return CostEstimate{
		RowCount: rows,
		Cost:     in.Cost + rows*math.Log2(math.Max(rows, 2))*m.Units.SortRow,
	}
}

// EstimateSelect estimates evaluating nconds predicates on every input row,
// keeping the given fraction.
func (m *Model) EstimateSelect(in CostEstimate, sel Selectivity, nconds int) CostEstimate {
	return CostEstimate{
		RowCount: in.RowCount * sel.AsFloat(),
		Cost:     in.Cost + in.RowCount*m.Units.SelectRow*float64(nconds),
	}
}

// EstimateIntersection estimates intersecting two scans of the same table.
// When one input is at least minRatio times larger than the other, the
// smaller input drives a skip scan of the larger one instead of a merge.
func (m *Model) EstimateIntersection(
	a, b CostEstimate, tableRows float64, minRatio float64,
) (_ CostEstimate, skipScan bool) {
	small, large := a, b
	if large.RowCount < small.RowCount {
		small, large = large, small
	}
	rows := 0.0
	if tableRows > 0 {
		rows = a.RowCount * b.RowCount / tableRows
	}
	if rows > small.RowCount {
		rows = small.RowCount
	}
	if small.RowCount > 0 && large.RowCount/small.RowCount >= minRatio {
		return CostEstimate{
			RowCount: rows,
			Cost:     small.Cost + small.RowCount*m.Units.RandomAccess,
		}, true
	}
	return CostEstimate{
		RowCount: rows,
		Cost:     a.Cost + b.Cost + (a.RowCount+b.RowCount)*m.Units.IntersectRow,
	}, false
}

// EstimateDistinct estimates removing duplicates from the input. distinct
// is the expected number of distinct rows, or a negative value if unknown.
func (m *Model) EstimateDistinct(in CostEstimate, distinct float64) CostEstimate {
	rows := in.RowCount
	if distinct >= 0 && distinct < rows {
		rows = distinct
	}
	return CostEstimate{RowCount: rows, Cost: in.Cost + in.RowCount*m.Units.DistinctRow}
}

// EstimateValues estimates producing n literal rows.
func (m *Model) EstimateValues(n int) CostEstimate {
	return CostEstimate{RowCount: float64(n), Cost: float64(n) * m.Units.ValuesRow}
}

// EstimateJoin estimates a nested loop join. inner is the estimate of one
// lookup into the inner side, and sel is the selectivity of the join
// conditions that are not already applied by the lookup.
func (m *Model) EstimateJoin(
	joinType opt.JoinType, outer, inner CostEstimate, sel Selectivity,
) CostEstimate {
	nested := outer.Nest(inner, m.Units.NestedLoopRow)
	matches := inner.RowCount * sel.AsFloat()
	switch joinType {
	case opt.InnerJoin:
		nested.RowCount = outer.RowCount * matches
	case opt.LeftJoin, opt.RightJoin:
		nested.RowCount = outer.RowCount * math.Max(matches, 1)
	case opt.FullJoin:
		nested.RowCount = outer.RowCount*math.Max(matches, 1) + inner.RowCount
	case opt.SemiJoin, opt.SemiJoinAlreadyDistinct, opt.SemiJoinNeedsDistinct:
		nested.RowCount = outer.RowCount * math.Min(matches, 1)
	case opt.AntiJoin:
		nested.RowCount = outer.RowCount * (1 - math.Min(matches, 1))
	default:
		panic(errors.AssertionFailedf("unknown join type %s", joinType))
	}
	return nested
}

// EstimateLimit estimates returning the first n rows of the input. If
// scalable is set the input can stop early, and its cost is scaled by the
// fraction of rows consumed.
func (m *Model) EstimateLimit(in CostEstimate, n int64, scalable bool) CostEstimate {
	rows := math.Min(in.RowCount, float64(n))
	cost := in.Cost
	if scalable && in.RowCount > 0 {
		cost *= rows / in.RowCount
	}
	return CostEstimate{RowCount: rows, Cost: cost}
}

// EstimateAggregate estimates grouping the input into groups rows. A
// streaming aggregation relies on the input being ordered or grouped on the
// grouping columns.
func (m *Model) EstimateAggregate(in CostEstimate, groups float64, streaming bool) CostEstimate {
	perRow := m.Units.DistinctRow
	if streaming {
		perRow = m.Units.SelectRow
	}
	if groups > in.RowCount {
		groups = in.RowCount
	}
	return CostEstimate{RowCount: math.Max(groups, 1), Cost: in.Cost + in.RowCount*perRow}
}
