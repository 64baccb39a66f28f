// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/sql/stats"
	"github.com/cockroachdb/groupopt/pkg/util/log"
)

// Statistics is the read-only statistics interface consumed by the model.
type Statistics = stats.Source

// RangeBound is one end of a range predicate on an index key column.
type RangeBound struct {
	Value     opt.ScalarExpr
	Inclusive bool
}

// Model estimates the cost of physical operators. A Model belongs to one
// planning call and must not be used concurrently.
type Model struct {
	Units Units

	stats          Statistics
	missingSel     float64
	mostlyDistinct float64

	// OnMissingStats, if set, is called whenever an estimate falls back to
	// the missing statistics selectivity.
	OnMissingStats func(idx cat.Index)

	missingEvery log.EveryN
}

// NewModel returns a model that reads its tunables from sv (nil for the
// defaults) and its statistics from st (nil for none).
func NewModel(sv *settings.Values, st Statistics) *Model {
	if st == nil {
		st = stats.NewMemStore()
	}
	return &Model{
		Units:          MakeUnits(sv),
		stats:          st,
		missingSel:     MissingStatsSelectivity.Get(sv),
		mostlyDistinct: MostlyDistinctFraction.Get(sv),
		missingEvery:   log.Every(10 * time.Second),
	}
}

// MissingStatsSelectivity returns the selectivity used without statistics.
func (m *Model) MissingStatsSelectivity() Selectivity {
	return MakeSelectivity(m.missingSel)
}

// TableRowCount returns the row count of the table, preferring the
// statistics store over the catalog.
func (m *Model) TableRowCount(ctx context.Context, tab cat.Table) float64 {
	if n := m.stats.TableRowCount(ctx, tab); n >= 0 {
		return float64(n)
	}
	if n := tab.RowCount(); n > 0 {
		return float64(n)
	}
	return 0
}

// Fanout returns the expected number of rows of table to per row of table
// from, when the two are connected through their lowest common ancestor.
func (m *Model) Fanout(ctx context.Context, from, to cat.Table) float64 {
	lca := cat.LowestCommonAncestor(from, to)
	if lca == nil {
		return m.TableRowCount(ctx, to)
	}
	lcaRows := m.TableRowCount(ctx, lca)
	if lcaRows <= 0 {
		return 0
	}
	return m.TableRowCount(ctx, to) / lcaRows
}

func (m *Model) missingStats(ctx context.Context, idx cat.Index, col int) Selectivity {
	if m.missingEvery.ShouldLog() {
		log.Warningf(ctx, "missing statistics for column %d of index %s.%s",
			col, idx.Table().Name(), idx.Name())
	}
	if m.OnMissingStats != nil {
		m.OnMissingStats(idx)
	}
	return MakeSelectivity(m.missingSel)
}

// histogram returns the histogram of the i-th key column of idx. Without
// statistics for the leading column, the statistics of a sibling index with
// the same leading column are used.
func (m *Model) histogram(
	ctx context.Context, idx cat.Index, st *stats.IndexStatistics, i int,
) *stats.Histogram {
	if st != nil {
		if h := st.Histogram(i); h != nil {
			return h
		}
	}
	if i != 0 || idx.KeyColumnCount() == 0 {
		return nil
	}
	lead := idx.Column(0)
	tab := idx.Table()
	for j, n := 0, tab.IndexCount(); j < n; j++ {
		sib := tab.Index(j)
		if sib.ID() == idx.ID() || sib.KeyColumnCount() == 0 {
			continue
		}
		c := sib.Column(0)
		if c.Table.ID() != lead.Table.ID() || c.Ordinal != lead.Ordinal || c.Descending != lead.Descending {
			continue
		}
		if sst := m.stats.IndexStatistics(ctx, sib); sst != nil {
			if h := sst.Histogram(0); h != nil {
				log.VEventf(ctx, 2, "using statistics of %s for %s", sib.Name(), idx.Name())
				return h
			}
		}
	}
	return nil
}

// EstimateIndexScan estimates a scan of idx restricted by equalities on its
// leading key columns (eqs[i] is the value of key column i) and an optional
// range on the next key column. It returns the estimate and the selectivity
// of the restriction.
func (m *Model) EstimateIndexScan(
	ctx context.Context, idx cat.Index, eqs []opt.ScalarExpr, lo, hi *RangeBound,
) (CostEstimate, Selectivity) {
	tableRows := m.TableRowCount(ctx, idx.Table())
	ncols := idx.ColumnCount()
	if idx.IsUnique() && len(eqs) == idx.KeyColumnCount() && len(eqs) > 0 && lo == nil && hi == nil {
		sel := OneSelectivity
		if tableRows > 1 {
			sel = MakeSelectivity(1 / tableRows)
		}
		return m.scanEstimate(1, ncols), sel
	}

	var st *stats.IndexStatistics
	if len(eqs) > 0 || lo != nil || hi != nil {
		st = m.stats.IndexStatistics(ctx, idx)
	}
	sel := OneSelectivity
	for i, eq := range eqs {
		h := m.histogram(ctx, idx, st, i)
		if h == nil {
			sel.Multiply(m.missingStats(ctx, idx, i))
			continue
		}
		sel.Multiply(m.equalitySelectivity(h, idx.Column(i).Descending, eq))
	}
	if lo != nil || hi != nil {
		i := len(eqs)
		h := m.histogram(ctx, idx, st, i)
		if h == nil {
			sel.Multiply(m.missingStats(ctx, idx, i))
		} else {
			sel.Multiply(m.rangeSelectivity(h, idx.Column(i).Descending, lo, hi))
		}
	}

	base := tableRows
	if st != nil && st.MostlyDistinct(m.mostlyDistinct) {
		base = float64(st.RowCount)
	}
	rows := sel.AsFloat() * base
	if tableRows > 0 && rows < 1 {
		rows = 1
	}
	return m.scanEstimate(rows, ncols), sel
}

func (m *Model) scanEstimate(rows float64, ncols int) CostEstimate {
	return CostEstimate{
		RowCount: rows,
		Cost:     m.Units.RandomAccess + rows*(m.Units.SequentialRow+m.Units.FieldAccess*float64(ncols)),
	}
}

// equalitySelectivity returns the fraction of rows described by h that are
// equal to the given value.
func (m *Model) equalitySelectivity(
	h *stats.Histogram, descending bool, value opt.ScalarExpr,
) Selectivity {
	total := h.RowCount()
	switch t := value.(type) {
	case *opt.Const:
		if t.Value == tree.DNull || total == 0 {
			return ZeroSelectivity
		}
		return MakeSelectivity(h.EqualRows(t.Value.EncodeKey(nil, descending)) / total)
	case *opt.Placeholder, *opt.Variable:
		return MakeSelectivity(1 / math.Max(h.DistinctCount(), 1))
	}
	return MakeSelectivity(m.missingSel)
}

// rangeSelectivity returns the fraction of rows described by h that fall
// between lo and hi. Bounds are given in value order; for descending columns
// they are swapped in key order.
func (m *Model) rangeSelectivity(h *stats.Histogram, descending bool, lo, hi *RangeBound) Selectivity {
	total := h.RowCount()
	if total == 0 {
		return ZeroSelectivity
	}
	loKey, loIncl, ok := boundKey(lo, descending)
	if !ok {
		return MakeSelectivity(m.missingSel)
	}
	hiKey, hiIncl, ok := boundKey(hi, descending)
	if !ok {
		return MakeSelectivity(m.missingSel)
	}
	if descending {
		loKey, hiKey = hiKey, loKey
		loIncl, hiIncl = hiIncl, loIncl
	}
	if (lo != nil && isNullBound(lo)) || (hi != nil && isNullBound(hi)) {
		return ZeroSelectivity
	}
	below := total
	if hiKey != nil {
		below = h.RowsBelow(hiKey, hiIncl)
	}
	var under float64
	if loKey != nil {
		under = h.RowsBelow(loKey, !loIncl)
	}
	return MakeSelectivity((below - under) / total)
}

func isNullBound(b *RangeBound) bool {
	c, ok := b.Value.(*opt.Const)
	return ok && c.Value == tree.DNull
}

// boundKey encodes a range bound. A nil bound yields a nil key. ok is false
// if the bound is not a constant.
func boundKey(b *RangeBound, descending bool) (key []byte, inclusive bool, ok bool) {
	if b == nil {
		return nil, false, true
	}
	c, isConst := b.Value.(*opt.Const)
	if !isConst {
		return nil, false, false
	}
	return c.Value.EncodeKey(nil, descending), b.Inclusive, true
}
