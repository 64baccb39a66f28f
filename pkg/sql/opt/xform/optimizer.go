// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform chooses the physical plan of a query: the join order, the
// access path of every table-group relation and the operators that finish
// the query.
package xform

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/cockroachdb/logtags"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Optimizer plans queries against one settings snapshot and statistics
// source. Planning calls do not share state and may run concurrently.
type Optimizer struct {
	sv      *settings.Values
	stats   costing.Statistics
	metrics *Metrics
	tracer  trace.Tracer
}

// NewOptimizer returns an optimizer reading its tunables from sv (nil for the
// defaults) and its statistics from st (nil for none).
func NewOptimizer(sv *settings.Values, st costing.Statistics) *Optimizer {
	return &Optimizer{sv: sv, stats: st, tracer: otel.Tracer("groupopt/xform")}
}

// SetMetrics makes the optimizer record its work in m.
func (o *Optimizer) SetMetrics(m *Metrics) { o.metrics = m }

// Optimize returns the cheapest plan for q. Internal errors of the planner
// are returned as assertion failures.
func (o *Optimizer) Optimize(ctx context.Context, q *logical.Query) (physical.Node, error) {
	n, _, err := o.OptimizeWithMemo(ctx, q)
	return n, err
}

// OptimizeWithMemo is Optimize, also returning the memo of the top-level
// join graph.
func (o *Optimizer) OptimizeWithMemo(
	ctx context.Context, q *logical.Query,
) (res physical.Node, memo *Memo, err error) {
	id := uuid.New().String()
	ctx = logtags.AddTag(ctx, "opt", id[:8])
	ctx, span := o.tracer.Start(ctx, "optimize",
		trace.WithAttributes(attribute.String("groupopt.planning_id", id)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(opt.CatchOptimizerError(r), "optimizer")
			res, memo = nil, nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.metrics.planned(start, err)
		span.End()
	}()

	model := costing.NewModel(o.sv, o.stats)
	if o.metrics != nil {
		model.OnMissingStats = o.metrics.missingStats
	}
	asm := &groupjoin.Assembler{Model: model, Metadata: q.Metadata}
	p := newPlanner(ctx, o, model, asm, q)
	res = p.plan()

	span.SetAttributes(
		attribute.Int("groupopt.relations", len(p.jb.Vertices())),
		attribute.Int("groupopt.plan_classes", p.memo.Len()),
	)
	log.Infof(ctx, "planned %d relations in %d plan classes; estimated %s",
		len(p.jb.Vertices()), p.memo.Len(), physical.Estimate(res))
	return res, p.memo, nil
}

// planner holds the state of planning one query block.
type planner struct {
	ctx   context.Context
	opt   *Optimizer
	md    *opt.Metadata
	model *costing.Model
	asm   *groupjoin.Assembler
	q     *logical.Query

	jb   JoinOrderBuilder
	memo *Memo

	need   physical.OrderingEffectiveness
	minMax opt.ColumnID

	nested map[nestedKey]*Plan
}

// nestedKey identifies a relation planned inside a nested loop.
type nestedKey struct {
	rel   opt.RelationID
	bound opt.RelSet
	on    string
}

func newPlanner(
	ctx context.Context, o *Optimizer, model *costing.Model, asm *groupjoin.Assembler, q *logical.Query,
) *planner {
	p := &planner{
		ctx:    ctx,
		opt:    o,
		md:     q.Metadata,
		model:  model,
		asm:    asm,
		q:      q,
		memo:   newMemo(),
		nested: make(map[nestedKey]*Plan),
	}
	p.need, p.minMax = neededOrder(q)
	return p
}

// neededOrder returns the order of the join output that the query can
// exploit.
func neededOrder(q *logical.Query) (physical.OrderingEffectiveness, opt.ColumnID) {
	switch {
	case !q.Grouping.Empty():
		return physical.OrderingGrouped, 0
	case len(q.Aggregates) > 0:
		if col, ok := opt.IsMinMax(q.Aggregates); ok {
			return physical.OrderingForMinMax, col
		}
		return physical.OrderingNone, 0
	case !q.Ordering.Empty():
		return physical.OrderingSorted, 0
	}
	return physical.OrderingNone, 0
}

func (p *planner) plan() physical.Node {
	p.jb.Init(p.md, p.q.Input)
	p.jb.hasPlan = func(s opt.RelSet) bool { return p.memo.Class(s).HasPlan() }
	p.jb.onJoin = p.evaluateJoin

	for i, rel := range p.jb.Vertices() {
		p.evaluateRelation(opt.RelationID(i), rel)
	}

	_, span := p.opt.tracer.Start(p.ctx, "enumerate joins",
		trace.WithAttributes(attribute.Int("groupopt.relations", len(p.jb.Vertices()))))
	if n := len(p.jb.Vertices()); int64(n) > JoinReorderLimit.Get(p.opt.sv) {
		log.VEventf(p.ctx, 1, "%d relations exceed the reorder limit; keeping the written join order", n)
		p.jb.BuildSyntactic()
	} else {
		p.jb.Reorder()
	}
	span.End()

	all := p.jb.AllVertices()
	root := p.memo.Class(all)
	if !root.HasPlan() {
		panic(errors.AssertionFailedf("no plan joins all relations %s", all))
	}
	return p.finalize(root)
}

func (p *planner) class(rels opt.RelSet) *PlanClass {
	if c := p.memo.Class(rels); c != nil {
		return c
	}
	p.opt.metrics.planClass()
	return p.memo.ensure(rels)
}

// evaluateRelation seeds the plan class of a single relation.
func (p *planner) evaluateRelation(v opt.RelationID, rel logical.Relation) {
	c := p.class(opt.MakeRelSet(v))
	filters := p.jb.VertexFilters(v)
	switch t := rel.(type) {
	case *logical.TableGroupJoinTree:
		goal := p.newGoal(t, filters, opt.ColSet{})
		if p.limitApplies() {
			goal.Limit = p.q.Limit
		}
		best, ordered := goal.PickBestScan(p.ctx, p)
		c.consider(p.ctx, p.md, p.treePlan(v, t, goal, best))
		if ordered != nil && ordered != best {
			c.consider(p.ctx, p.md, p.treePlan(v, t, goal, ordered))
		}

	case *logical.ValuesSource:
		n := &physical.ValuesScan{Rows: t.Rows, Cols: t.Cols}
		n.Est = p.model.EstimateValues(len(t.Rows))
		c.consider(p.ctx, p.md, p.leafPlan(v, rel, p.selectNode(n, filters)))

	case *logical.SubquerySource:
		sub := newPlanner(p.ctx, p.opt, p.model, p.asm, t.Query)
		in := sub.plan()
		n := &physical.SubqueryScan{Input: in, Cols: t.Cols}
		n.Est = physical.Estimate(in)
		c.consider(p.ctx, p.md, p.leafPlan(v, rel, p.selectNode(n, filters)))

	default:
		panic(errors.AssertionFailedf("unhandled relation %T", rel))
	}
}

// limitApplies returns true if the query's limit bounds the rows read from
// its only relation.
func (p *planner) limitApplies() bool {
	q := p.q
	return q.Limit > 0 && len(p.jb.Vertices()) == 1 && len(p.jb.Residual()) == 0 &&
		len(q.Aggregates) == 0 && q.Grouping.Empty() && !q.Distinct
}

func (p *planner) newGoal(
	t *logical.TableGroupJoinTree, filters opt.FiltersExpr, bound opt.ColSet,
) *GroupIndexGoal {
	required := t.RequiredTables(p.md)
	if required.Empty() {
		required.Add(int(t.Tree.Node(t.Tree.Root()).Table))
	}
	g := &GroupIndexGoal{
		Relation: t,
		Required: required,
		Filters:  append(t.Filters[:len(t.Filters):len(t.Filters)], filters...),
		Bound:    bound,
	}
	if bound.Empty() {
		g.Need = p.need
		g.Ordering = p.q.Ordering
		g.Grouping = p.q.Grouping
		g.MinMax = p.minMax
	}
	return g
}

func (p *planner) treePlan(
	v opt.RelationID, t *logical.TableGroupJoinTree, g *GroupIndexGoal, c *ScanCandidate,
) *Plan {
	return &Plan{
		Relations: opt.MakeRelSet(v),
		Est:       c.Est,
		Ordered:   c.Ordered,
		relation:  t,
		node:      c.Scan,
		required:  g.Required,
		filters:   c.Filters,
	}
}

func (p *planner) leafPlan(v opt.RelationID, rel logical.Relation, n physical.Node) *Plan {
	return &Plan{Relations: opt.MakeRelSet(v), Est: physical.Estimate(n), relation: rel, node: n}
}

// evaluateJoin adds the nested loop joins of s1 and s2 to the plan class of
// their union. Both the ordered and the unordered plan of s1 can drive the
// loop; s2 is either planned on its own or, for a single table-group
// relation, with the join conditions available to its index lookups.
func (p *planner) evaluateJoin(
	s1, s2 opt.RelSet, joinType opt.JoinType, on, selFilters opt.FiltersExpr,
) {
	c := p.class(s1.Union(s2))
	lc, rc := p.memo.Class(s1), p.memo.Class(s2)

	lefts := []*Plan{lc.BestPlan(0, false)}
	if o := lc.BestPlan(0, true); o != nil && o != lefts[0] {
		lefts = append(lefts, o)
	}
	type rightOption struct {
		plan *Plan
		on   opt.FiltersExpr
	}
	rights := []rightOption{{plan: rc.BestPlan(0, false), on: on}}
	if np := p.nestedPlan(s2, s1, joinType, on); np != nil {
		rights = append(rights, rightOption{plan: np})
	}

	for _, lp := range lefts {
		for _, r := range rights {
			jp := &Plan{
				Relations: s1.Union(s2),
				Ordered:   lp.Ordered && joinType != opt.FullJoin,
				Left:      lp,
				Right:     r.plan,
				JoinType:  joinType,
				On:        r.on,
				Filters:   selFilters,
			}
			sel := p.model.JoinConditionSelectivity(p.ctx, p.md, r.on)
			jp.joinEst = p.model.EstimateJoin(joinType, lp.Est, r.plan.Est, sel)
			jp.Est = p.filterEstimate(jp.joinEst, selFilters)
			c.consider(p.ctx, p.md, jp)
		}
	}

	if joinType.IsSemi() {
		p.evaluateReversedSemi(c, s1, s2, joinType, on, selFilters)
	}
}

// nestedPlan plans s2 as the inner side of a nested loop driven by s1, with
// the join conditions applied inside s2 so that its index lookups can use
// the outer columns. It returns nil if s2 is not a single table-group
// relation correlated with s1.
func (p *planner) nestedPlan(s2, s1 opt.RelSet, joinType opt.JoinType, on opt.FiltersExpr) *Plan {
	if joinType == opt.FullJoin || !s2.IsSingleton() || len(on) == 0 {
		return nil
	}
	v, _ := s2.Next(0)
	t, ok := p.jb.Vertices()[v].(*logical.TableGroupJoinTree)
	if !ok {
		return nil
	}
	outer := on.OuterCols().Difference(logical.OutputCols(p.md, t))
	bound := p.jb.verticesOf(outer).Intersection(s1)
	if bound.Empty() {
		return nil
	}
	key := nestedKey{rel: v, bound: bound, on: opt.FormatFilters(p.md, on)}
	if np, ok := p.nested[key]; ok {
		return np
	}
	goal := p.newGoal(t, p.jb.VertexFilters(v), outer)
	goal.Filters = append(goal.Filters, on...)
	best, _ := goal.PickBestScan(p.ctx, p)
	np := p.treePlan(v, t, goal, best)
	np.Bound = bound
	p.memo.Class(s2).consider(p.ctx, p.md, np)
	p.nested[key] = np
	return np
}

// evaluateReversedSemi adds the plan that drives a semi join from its right
// side when that side is a values list or a subquery. The right side is
// deduplicated on the join columns unless it is known to be distinct, and
// the left side is then looked up once per right row.
func (p *planner) evaluateReversedSemi(
	c *PlanClass, s1, s2 opt.RelSet, joinType opt.JoinType, on, selFilters opt.FiltersExpr,
) {
	if !s2.IsSingleton() {
		return
	}
	v, _ := s2.Next(0)
	rel := p.jb.Vertices()[v]
	switch rel.(type) {
	case *logical.ValuesSource, *logical.SubquerySource:
	default:
		return
	}
	rightCols := logical.OutputCols(p.md, rel)
	keyCols, ok := semiJoinKeyCols(on, rightCols)
	if !ok || selFilters.OuterCols().Intersects(rightCols) {
		return
	}
	drive := p.memo.Class(s2).BestPlan(0, false)

	var distinctCols opt.ColSet
	driveEst := drive.Est
	var distinctEst costing.CostEstimate
	if joinType == opt.SemiJoinNeedsDistinct ||
		(joinType == opt.SemiJoin && !p.provablyDistinct(rel, keyCols)) {
		distinctCols = keyCols
		distinctEst = p.model.EstimateDistinct(drive.Est, -1)
		driveEst = distinctEst
	}

	type innerOption struct {
		plan *Plan
		on   opt.FiltersExpr
	}
	inners := []innerOption{{plan: p.memo.Class(s1).BestPlan(0, false), on: on}}
	if np := p.nestedPlan(s1, s2, opt.InnerJoin, on); np != nil {
		inners = append(inners, innerOption{plan: np})
	}
	for _, in := range inners {
		jp := &Plan{
			Relations:    s1.Union(s2),
			Left:         drive,
			Right:        in.plan,
			JoinType:     opt.InnerJoin,
			On:           in.on,
			Filters:      selFilters,
			reversed:     true,
			distinctCols: distinctCols,
			distinctEst:  distinctEst,
		}
		sel := p.model.JoinConditionSelectivity(p.ctx, p.md, in.on)
		jp.joinEst = p.model.EstimateJoin(opt.InnerJoin, driveEst, in.plan.Est, sel)
		jp.Est = p.filterEstimate(jp.joinEst, selFilters)
		c.consider(p.ctx, p.md, jp)
	}
}

// semiJoinKeyCols returns the right-side columns of a semi join whose ON
// conditions are all equalities between a left column and a right column.
// Deduplicating the right side on these columns turns the semi join into an
// inner join with the same result. It returns false for any other ON
// condition.
func semiJoinKeyCols(on opt.FiltersExpr, rightCols opt.ColSet) (opt.ColSet, bool) {
	var keyCols opt.ColSet
	if len(on) == 0 {
		return keyCols, false
	}
	for _, cond := range on {
		cmp, ok := cond.(*opt.Comparison)
		if !ok || cmp.Op != tree.EQ {
			return opt.ColSet{}, false
		}
		l, lok := cmp.Left.(*opt.Variable)
		r, rok := cmp.Right.(*opt.Variable)
		if !lok || !rok {
			return opt.ColSet{}, false
		}
		lRight, rRight := rightCols.Contains(int(l.Col)), rightCols.Contains(int(r.Col))
		switch {
		case rRight && !lRight:
			keyCols.Add(int(r.Col))
		case lRight && !rRight:
			keyCols.Add(int(l.Col))
		default:
			return opt.ColSet{}, false
		}
	}
	return keyCols, true
}

// provablyDistinct returns true if no two rows of rel agree on keyCols.
func (p *planner) provablyDistinct(rel logical.Relation, keyCols opt.ColSet) bool {
	switch t := rel.(type) {
	case *logical.ValuesSource:
		seen := make(map[string]bool, len(t.Rows))
		for _, row := range t.Rows {
			var key string
			for i, col := range t.Cols {
				if !keyCols.Contains(int(col)) {
					continue
				}
				c, ok := row[i].(*opt.Const)
				if !ok {
					return false
				}
				key += c.Value.String() + "\x00"
			}
			if seen[key] {
				return false
			}
			seen[key] = true
		}
		return true

	case *logical.SubquerySource:
		q := t.Query
		if q.Distinct && opt.MakeColSet(t.Cols...).SubsetOf(keyCols) {
			return true
		}
		return !q.Grouping.Empty() && q.Grouping.SubsetOf(keyCols)
	}
	return false
}

func (p *planner) filterEstimate(in costing.CostEstimate, filters opt.FiltersExpr) costing.CostEstimate {
	if len(filters) == 0 {
		return in
	}
	sel := p.model.JoinConditionSelectivity(p.ctx, p.md, filters)
	return p.model.EstimateSelect(in, sel, len(filters))
}

func (p *planner) selectNode(n physical.Node, filters opt.FiltersExpr) physical.Node {
	if len(filters) == 0 {
		return n
	}
	s := &physical.Select{Input: n, Filters: filters}
	s.Est = p.filterEstimate(physical.Estimate(n), filters)
	return s
}

// install builds the physical plan of pl.
func (p *planner) install(pl *Plan) physical.Node {
	if !pl.IsJoin() {
		if t, ok := pl.relation.(*logical.TableGroupJoinTree); ok {
			in := groupjoin.Input{Tree: t.Tree, Required: pl.required, Filters: pl.filters}
			return p.asm.JoinBranches(p.ctx, in, pl.node)
		}
		return pl.node
	}
	left := p.install(pl.Left)
	if !pl.distinctCols.Empty() {
		d := &physical.Distinct{Input: left, Cols: pl.distinctCols}
		d.Est = pl.distinctEst
		left = d
	}
	j := &physical.NestedLoopJoin{
		Left:  left,
		Right: p.install(pl.Right),
		Type:  pl.JoinType,
		On:    pl.On,
		Impl:  physical.JoinImplNestedLoop,
	}
	j.Est = pl.joinEst
	return p.selectNode(j, pl.Filters)
}

// finalize completes the best plans of the root class with the operators
// above the joins and returns the cheapest. The unordered plan is tried
// first and wins ties.
func (p *planner) finalize(root *PlanClass) physical.Node {
	var best physical.Node
	unordered := root.BestPlan(0, false)
	for i, pl := range []*Plan{unordered, root.BestPlan(0, true)} {
		if pl == nil || (i > 0 && pl == unordered) {
			continue
		}
		n := p.finish(pl)
		if best == nil || physical.Estimate(n).Less(physical.Estimate(best)) {
			best = n
		}
	}
	return best
}

func (p *planner) finish(pl *Plan) physical.Node {
	q := p.q
	n := p.selectNode(p.install(pl), p.jb.Residual())
	ordered := pl.Ordered
	scalable := true

	if len(q.Aggregates) > 0 || !q.Grouping.Empty() {
		if ordered && p.need == physical.OrderingForMinMax {
			n = p.limitNode(n, 1, true)
		}
		agg := &physical.Aggregate{
			Input:        n,
			Grouping:     q.Grouping,
			Aggregations: q.Aggregates,
			Streaming:    ordered,
		}
		in := physical.Estimate(n)
		groups := 1.0
		if !q.Grouping.Empty() {
			groups = in.RowCount
		}
		agg.Est = p.model.EstimateAggregate(in, groups, agg.Streaming)
		n = agg
		scalable = agg.Streaming
		ordered = false
	}
	if q.Distinct {
		d := &physical.Distinct{Input: n, Cols: q.Output}
		d.Est = p.model.EstimateDistinct(physical.Estimate(n), -1)
		n = d
	}
	if !q.Ordering.Empty() && !(ordered && p.need == physical.OrderingSorted) {
		s := &physical.Sort{Input: n, Ordering: q.Ordering}
		s.Est = p.model.EstimateSort(physical.Estimate(n))
		n = s
		scalable = false
	}
	if q.Limit > 0 {
		n = p.limitNode(n, q.Limit, scalable)
	}
	return n
}

func (p *planner) limitNode(n physical.Node, count int64, scalable bool) physical.Node {
	l := &physical.Limit{Input: n, Count: count}
	l.Est = p.model.EstimateLimit(physical.Estimate(n), count, scalable)
	return l
}
