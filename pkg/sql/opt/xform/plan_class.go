// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/google/btree"
)

// Memo holds the plan classes of one planning call, keyed by the set of
// relations they join.
type Memo struct {
	classes map[opt.RelSet]*PlanClass
	// order indexes the classes by size and then by set, for deterministic
	// iteration.
	order *btree.BTree
}

func newMemo() *Memo {
	return &Memo{classes: make(map[opt.RelSet]*PlanClass), order: btree.New(8)}
}

// Class returns the plan class of the given relations, or nil.
func (m *Memo) Class(rels opt.RelSet) *PlanClass {
	return m.classes[rels]
}

// ensure returns the plan class of the given relations, creating it if
// needed.
func (m *Memo) ensure(rels opt.RelSet) *PlanClass {
	if c, ok := m.classes[rels]; ok {
		return c
	}
	c := &PlanClass{Relations: rels, best: make(map[planKey]*Plan)}
	m.classes[rels] = c
	m.order.ReplaceOrInsert(c)
	return c
}

// Len returns the number of plan classes.
func (m *Memo) Len() int { return len(m.classes) }

// ForEach calls fn on the plan classes, smallest first.
func (m *Memo) ForEach(fn func(c *PlanClass)) {
	m.order.Ascend(func(i btree.Item) bool {
		fn(i.(*PlanClass))
		return true
	})
}

// String lists the best plans of every class.
func (m *Memo) String(md *opt.Metadata) string {
	var sb strings.Builder
	m.ForEach(func(c *PlanClass) {
		fmt.Fprintf(&sb, "%s\n", c.Relations)
		for _, k := range c.keys {
			p := c.best[k]
			fmt.Fprintf(&sb, "  %s: %s %s\n", k, p.describe(md), p.Est)
		}
	})
	return sb.String()
}

// planKey identifies the plans of a class that are interchangeable: plans
// that depend on the same outer relations and deliver the same order.
type planKey struct {
	// bound are the relations whose columns the plan reads from an enclosing
	// nested loop.
	bound   opt.RelSet
	ordered bool
}

func (k planKey) String() string {
	s := "best"
	if k.ordered {
		s = "ordered"
	}
	if !k.bound.Empty() {
		s += fmt.Sprintf(" bound=%s", k.bound)
	}
	return s
}

// PlanClass is the set of plans joining the same relations. It keeps the
// best plan per planKey.
type PlanClass struct {
	Relations opt.RelSet

	best map[planKey]*Plan
	keys []planKey
}

// Less implements btree.Item.
func (c *PlanClass) Less(than btree.Item) bool {
	o := than.(*PlanClass)
	if c.Relations.Len() != o.Relations.Len() {
		return c.Relations.Len() < o.Relations.Len()
	}
	return c.Relations < o.Relations
}

// BestPlan returns the best plan of the class for the given outer relations
// and order, or nil.
func (c *PlanClass) BestPlan(bound opt.RelSet, ordered bool) *Plan {
	return c.best[planKey{bound: bound, ordered: ordered}]
}

// HasPlan returns true if the class has an unbound plan.
func (c *PlanClass) HasPlan() bool {
	return c != nil && c.BestPlan(0, false) != nil
}

// consider records p if it is strictly cheaper than the best plan for its
// key. An ordered plan also competes with the unordered plans. It returns
// true if p was recorded anywhere.
func (c *PlanClass) consider(ctx context.Context, md *opt.Metadata, p *Plan) bool {
	recorded := c.considerKey(ctx, md, planKey{bound: p.Bound, ordered: p.Ordered}, p)
	if p.Ordered && c.considerKey(ctx, md, planKey{bound: p.Bound}, p) {
		recorded = true
	}
	return recorded
}

func (c *PlanClass) considerKey(ctx context.Context, md *opt.Metadata, k planKey, p *Plan) bool {
	old, ok := c.best[k]
	if ok && !p.Est.Less(old.Est) {
		return false
	}
	if !ok {
		c.keys = append(c.keys, k)
	}
	c.best[k] = p
	if log.V(1) {
		log.VEventf(ctx, 1, "new %s plan for %s: %s %s", k, c.Relations, p.describe(md), p.Est)
	}
	return true
}

// Plan is a candidate plan for a plan class: either a single relation with
// its access path, or a nested loop join of two plan classes.
type Plan struct {
	Relations opt.RelSet
	// Est is the estimate of the complete plan. For a plan with bound
	// relations it describes one execution per outer row.
	Est costing.CostEstimate
	// Ordered is set if the plan delivers the order the query needs.
	Ordered bool
	Bound   opt.RelSet

	// Leaf plans. A table-group relation keeps its chosen scan and the
	// filters left to the assembler; other relations keep their complete
	// node.
	relation logical.Relation
	node     physical.Node
	required opt.TableSet
	filters  opt.FiltersExpr

	// Join plans.
	Left, Right *Plan
	JoinType    opt.JoinType
	On          opt.FiltersExpr
	// Filters are applied above the join.
	Filters opt.FiltersExpr
	// reversed is set for a semi join driven by its right side; distinctCols
	// are deduplicated before the right side drives the loop.
	reversed     bool
	distinctCols opt.ColSet
	distinctEst  costing.CostEstimate
	joinEst      costing.CostEstimate
}

// IsJoin returns true for join plans.
func (p *Plan) IsJoin() bool { return p.Left != nil }

func (p *Plan) describe(md *opt.Metadata) string {
	if !p.IsJoin() {
		return relationName(md, p.relation)
	}
	name := p.JoinType.String()
	if p.reversed {
		name = "reversed-semi"
	}
	return fmt.Sprintf("%s(%s, %s)", name, p.Left.describe(md), p.Right.describe(md))
}

// relationName names a relation after its first table or its kind.
func relationName(md *opt.Metadata, rel logical.Relation) string {
	switch t := rel.(type) {
	case *logical.TableGroupJoinTree:
		var names []string
		t.Tree.Walk(func(n groupjoin.NodeIdx) {
			names = append(names, md.TableMeta(t.Tree.Node(n).Table).Alias)
		})
		return strings.Join(names, "+")
	case *logical.ValuesSource:
		return "values"
	case *logical.SubquerySource:
		return "subquery"
	}
	return "?"
}
