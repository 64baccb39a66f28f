// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/util/log"
)

// GroupIndexGoal describes what a table-group relation must deliver: the
// filters it must apply, the outer columns bound by an enclosing nested
// loop, and the order and row limit the query could exploit.
type GroupIndexGoal struct {
	Relation *logical.TableGroupJoinTree
	// Required are the tables that own required columns. The root table is
	// required if no other table is.
	Required opt.TableSet
	Filters  opt.FiltersExpr
	// Bound are the outer columns available as constants to index lookups.
	Bound opt.ColSet

	// Need is the order the query could exploit; Ordering, Grouping and
	// MinMax describe it.
	Need     physical.OrderingEffectiveness
	Ordering opt.Ordering
	Grouping opt.ColSet
	MinMax   opt.ColumnID
	// Limit is the number of rows the query reads from this relation, or 0.
	Limit int64
}

// ScanCandidate is an access path for a goal together with the estimate of
// the assembled relation.
type ScanCandidate struct {
	Scan physical.Node
	// Est is the estimate of the flat rows produced from Scan.
	Est     costing.CostEstimate
	Ordered bool
	// Filters are the goal's filters not applied by the scan.
	Filters opt.FiltersExpr
}

// scanPicker evaluates the candidates of one goal.
type scanPicker struct {
	ctx     context.Context
	md      *opt.Metadata
	model   *costing.Model
	asm     *groupjoin.Assembler
	goal    *GroupIndexGoal
	tree    *groupjoin.Tree
	byTable map[cat.StableID]opt.TableID

	intersectionEnabled bool
	skipScanMinRatio    float64
	onCandidate         func()

	best, bestOrdered *ScanCandidate
	bestRank          costing.CostEstimate
	bestOrderedRank   costing.CostEstimate
}

// PickBestScan returns the cheapest candidate and the cheapest candidate
// delivering the needed order (nil if none does). The group scan is
// evaluated first, so it wins ties.
func (g *GroupIndexGoal) PickBestScan(
	ctx context.Context, o *planner,
) (best, bestOrdered *ScanCandidate) {
	p := scanPicker{
		ctx:                 ctx,
		md:                  o.md,
		model:               o.model,
		asm:                 o.asm,
		goal:                g,
		tree:                g.Relation.Tree,
		byTable:             make(map[cat.StableID]opt.TableID),
		intersectionEnabled: IndexIntersectionEnabled.Get(o.opt.sv),
		skipScanMinRatio:    SkipScanMinRatio.Get(o.opt.sv),
		onCandidate:         o.opt.metrics.scanCandidate,
	}
	p.tree.Walk(func(n groupjoin.NodeIdx) {
		tab := p.tree.Node(n).Table
		p.byTable[o.md.Table(tab).ID()] = tab
	})

	gs := o.asm.NewGroupScan(ctx, p.tree)
	p.consider("group scan", gs, nil, false)

	var restricted []*physical.IndexScan
	g.Required.ForEach(func(i int) {
		tab := opt.TableID(i)
		ct := o.md.Table(tab)
		for j, n := 0, ct.IndexCount(); j < n; j++ {
			if s := p.indexScan(ct.Index(j), tab); s != nil {
				if len(s.Equalities) > 0 && s.Covered.Empty() {
					restricted = append(restricted, s)
				}
			}
		}
	})
	if grp := p.tree.Group; grp != nil {
		for j, n := 0, grp.IndexCount(); j < n; j++ {
			p.groupIndexScan(grp.Index(j))
		}
	}
	if p.intersectionEnabled {
		p.intersections(restricted)
	}
	return p.best, p.bestOrdered
}

// groupIndexScan considers a group index. Its rows exist only for complete
// paths, so every table it spans must be in the tree, joined by inner joins,
// and its anchor must be required.
func (p *scanPicker) groupIndexScan(idx cat.Index) {
	var anchor opt.TableID
	for _, ct := range cat.IndexTables(idx) {
		tab, ok := p.byTable[ct.ID()]
		if !ok {
			return
		}
		n, _ := p.tree.Lookup(tab)
		if !p.tree.InnerPath(n) {
			return
		}
		anchor = tab
	}
	if !p.goal.Required.Contains(int(anchor)) {
		return
	}
	p.indexScan(idx, anchor)
}

// indexScan builds and considers the scan of idx anchored at tab. It returns
// nil if the scan is of no use to the goal.
func (p *scanPicker) indexScan(idx cat.Index, tab opt.TableID) *physical.IndexScan {
	s := &physical.IndexScan{Index: idx, Table: tab}
	cols := make([]opt.ColumnID, idx.KeyColumnCount())
	var stored opt.ColSet
	for i, n := 0, idx.ColumnCount(); i < n; i++ {
		ic := idx.Column(i)
		t, ok := p.byTable[ic.Table.ID()]
		if !ok {
			return nil
		}
		col := p.md.TableMeta(t).ColumnID(ic.Ordinal)
		if i < len(cols) {
			cols[i] = col
		}
		stored.Add(int(col))
	}
	if idx.IsPrimary() {
		stored.UnionWith(p.md.TableMeta(tab).Columns())
	}

	// Equalities on a prefix of the key, then a range on the next column.
	used := make(map[opt.ScalarExpr]bool)
	for _, col := range cols {
		f, cmp, ok := p.findComparison(col, used, func(op tree.ComparisonOperator) bool {
			return op == tree.EQ
		})
		if !ok {
			break
		}
		used[f] = true
		s.Equalities = append(s.Equalities, cmp.Value)
		s.Consumed = append(s.Consumed, f)
	}
	if k := len(s.Equalities); k < len(cols) {
		for {
			f, cmp, ok := p.findComparison(cols[k], used, tree.ComparisonOperator.IsRange)
			if !ok {
				break
			}
			b := &costing.RangeBound{Value: cmp.Value, Inclusive: cmp.Op == tree.LE || cmp.Op == tree.GE}
			isLo := cmp.Op == tree.GT || cmp.Op == tree.GE
			if (isLo && s.Lo != nil) || (!isLo && s.Hi != nil) {
				break
			}
			if isLo {
				s.Lo = b
			} else {
				s.Hi = b
			}
			used[f] = true
			s.Consumed = append(s.Consumed, f)
		}
	}

	p.goal.Required.ForEach(func(i int) {
		req := p.goal.Relation.RequiredCols.Intersection(p.md.TableMeta(opt.TableID(i)).Columns())
		if req.SubsetOf(stored) {
			s.Covered.Add(i)
		}
	})
	s.Effectiveness, s.Reverse = p.effectiveness(idx, cols, len(s.Equalities))

	restrictedScan := len(s.Consumed) > 0
	covering := p.goal.Required.SubsetOf(s.Covered)
	useful := restrictedScan || covering || idx.IsPrimary() ||
		(s.Effectiveness != physical.OrderingNone && s.Effectiveness == p.goal.Need)
	if !useful {
		return nil
	}
	s.Est, _ = p.model.EstimateIndexScan(p.ctx, idx, s.Equalities, s.Lo, s.Hi)
	p.consider(idx.Name(), s, s.Consumed, s.Effectiveness == p.goal.Need && p.goal.Need != physical.OrderingNone)
	return s
}

// findComparison returns an unused filter comparing col with a constant, a
// placeholder or a bound outer column using an operator accepted by ok.
func (p *scanPicker) findComparison(
	col opt.ColumnID, used map[opt.ScalarExpr]bool, ok func(tree.ComparisonOperator) bool,
) (opt.ScalarExpr, opt.ColumnComparison, bool) {
	for _, f := range p.goal.Filters {
		if used[f] {
			continue
		}
		cmp, match := opt.MatchColumnComparison(f, col)
		if !match || !ok(cmp.Op) {
			continue
		}
		if v, isVar := cmp.Value.(*opt.Variable); isVar && !p.goal.Bound.Contains(int(v.Col)) {
			continue
		}
		return f, cmp, true
	}
	return nil, opt.ColumnComparison{}, false
}

// effectiveness describes how the order of a scan of idx, restricted by
// equalities on its first eqs key columns, serves the goal.
func (p *scanPicker) effectiveness(
	idx cat.Index, cols []opt.ColumnID, eqs int,
) (_ physical.OrderingEffectiveness, reverse bool) {
	g := p.goal
	var fixed opt.ColSet
	for _, c := range cols[:eqs] {
		fixed.Add(int(c))
	}
	switch g.Need {
	case physical.OrderingSorted:
		i := eqs
		dir := 0
		for _, oc := range g.Ordering {
			if fixed.Contains(int(oc.Col)) {
				continue
			}
			if i >= len(cols) || cols[i] != oc.Col {
				return physical.OrderingNone, false
			}
			d := 1
			if idx.Column(i).Descending != oc.Descending {
				d = -1
			}
			if dir != 0 && d != dir {
				return physical.OrderingNone, false
			}
			dir = d
			i++
		}
		return physical.OrderingSorted, dir < 0

	case physical.OrderingGrouped:
		remaining := g.Grouping.Difference(fixed)
		for i := eqs; !remaining.Empty(); i++ {
			if i >= len(cols) || !remaining.Contains(int(cols[i])) {
				return physical.OrderingNone, false
			}
			remaining.Remove(int(cols[i]))
		}
		return physical.OrderingGrouped, false

	case physical.OrderingForMinMax:
		if eqs < len(cols) && cols[eqs] == g.MinMax {
			return physical.OrderingForMinMax, false
		}
	}
	return physical.OrderingNone, false
}

// intersections considers the intersection of every pair of restricted,
// non-covering scans of the same table.
func (p *scanPicker) intersections(scans []*physical.IndexScan) {
	for i := range scans {
		for j := i + 1; j < len(scans); j++ {
			a, b := scans[i], scans[j]
			if a.Table != b.Table || a.Index.IsGroupIndex() || b.Index.IsGroupIndex() {
				continue
			}
			tableRows := p.model.TableRowCount(p.ctx, p.md.Table(a.Table))
			est, skip := p.model.EstimateIntersection(a.Est, b.Est, tableRows, p.skipScanMinRatio)
			is := &physical.IntersectScan{Inputs: []*physical.IndexScan{a, b}, SkipScan: skip}
			is.Est = est
			consumed := append(append(opt.FiltersExpr(nil), a.Consumed...), b.Consumed...)
			p.consider(a.Index.Name()+"&"+b.Index.Name(), is, consumed, false)
		}
	}
}

// consider estimates the relation assembled from scan and records it if it
// beats the best candidates so far.
func (p *scanPicker) consider(name string, scan physical.Node, consumed opt.FiltersExpr, ordered bool) {
	if p.onCandidate != nil {
		p.onCandidate()
	}
	filters := p.goal.Filters.Without(consumed)
	in := groupjoin.Input{Tree: p.tree, Required: p.goal.Required, Filters: filters}
	c := &ScanCandidate{
		Scan:    scan,
		Est:     p.asm.Estimate(p.ctx, in, scan),
		Ordered: ordered,
		Filters: filters,
	}
	rank := c.Est
	if p.goal.Limit > 0 && (ordered || p.goal.Need == physical.OrderingNone) {
		rank = p.model.EstimateLimit(rank, p.goal.Limit, true)
	}
	log.VEventf(p.ctx, 2, "candidate %s: %s (rank %s)", name, c.Est, rank)

	if p.best == nil || rank.Less(p.bestRank) {
		p.best, p.bestRank = c, rank
	}
	if ordered && (p.bestOrdered == nil || rank.Less(p.bestOrderedRank)) {
		p.bestOrdered, p.bestOrderedRank = c, rank
	}
}
