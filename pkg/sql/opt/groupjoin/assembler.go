// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package groupjoin

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/util/log"
)

// Input describes a table-group relation to assemble.
type Input struct {
	Tree *Tree
	// Required are the tables whose columns the query needs.
	Required opt.TableSet
	// Filters are the conditions on the relation's tables that the scan does
	// not apply.
	Filters opt.FiltersExpr
}

// Assembler turns a scan of a table group into a plan producing flat rows.
type Assembler struct {
	Model    *costing.Model
	Metadata *opt.Metadata
}

// NewGroupScan returns a scan of the whole group of the tree with its
// estimate.
func (a *Assembler) NewGroupScan(ctx context.Context, t *Tree) *physical.GroupScan {
	var rows []float64
	if g := t.Group; g != nil {
		for i, n := 0, g.TableCount(); i < n; i++ {
			rows = append(rows, a.Model.TableRowCount(ctx, g.Table(i)))
		}
	} else {
		t.Walk(func(n NodeIdx) {
			rows = append(rows, a.tableRows(ctx, t.Node(n).Table))
		})
	}
	gs := &physical.GroupScan{Group: t.Group}
	gs.Est = a.Model.EstimateGroupScan(rows)
	return gs
}

// JoinBranches returns the plan that produces the flat rows of the relation
// from the given scan. The scan is an *IndexScan, an *IntersectScan or a
// *GroupScan anchored in the tree.
func (a *Assembler) JoinBranches(ctx context.Context, in Input, scan physical.Node) physical.Node {
	n, _ := a.Assemble(ctx, in, scan)
	return n
}

// Estimate returns the estimate of the plan JoinBranches would build.
func (a *Assembler) Estimate(ctx context.Context, in Input, scan physical.Node) costing.CostEstimate {
	n, _ := a.Assemble(ctx, in, scan)
	return physical.Estimate(n)
}

// Assemble is JoinBranches, also returning the marking it used.
func (a *Assembler) Assemble(
	ctx context.Context, in Input, scan physical.Node,
) (physical.Node, *Marking) {
	asm := assembly{ctx: ctx, a: a, in: in, tree: in.Tree}
	asm.mark = MarkBranches(in.Tree, in.Required)
	res := asm.build(scan)
	if pending := asm.mark.PendingTables(); !pending.Empty() {
		panic(errors.AssertionFailedf("tables %s still pending after assembly", pending))
	}
	return res, asm.mark
}

// assembly is the state of one JoinBranches call.
type assembly struct {
	ctx  context.Context
	a    *Assembler
	in   Input
	tree *Tree
	mark *Marking

	// cur estimates the stream built so far. Its row count is expressed in
	// rows of the driving node.
	cur     costing.CostEstimate
	driving NodeIdx
}

func (asm *assembly) lookup(tab opt.TableID) NodeIdx {
	n, ok := asm.tree.Lookup(tab)
	if !ok {
		panic(errors.AssertionFailedf("scan table %d is not in the group tree", tab))
	}
	return n
}

func (asm *assembly) build(scan physical.Node) physical.Node {
	var anchor NodeIdx
	var covered opt.TableSet
	isGroupScan := false
	switch s := scan.(type) {
	case *physical.IndexScan:
		anchor = asm.lookup(s.Table)
		covered = s.Covered.Intersection(asm.in.Required)
	case *physical.IntersectScan:
		anchor = asm.lookup(s.Inputs[0].Table)
	case *physical.GroupScan:
		anchor = asm.tree.Root()
		isGroupScan = true
	default:
		panic(errors.AssertionFailedf("unexpected scan %T", scan))
	}

	asm.cur = physical.Estimate(scan)
	asm.driving = anchor
	if !isGroupScan && asm.in.Required.SubsetOf(covered) {
		asm.tree.Walk(asm.mark.ClearPending)
		log.VEventf(asm.ctx, 3, "covering scan")
		return asm.selectAbove(scan, asm.filters())
	}
	asm.tree.Walk(func(n NodeIdx) {
		if covered.Contains(int(asm.tree.Node(n).Table)) {
			asm.mark.ClearPending(n)
		}
	})

	var node physical.Node
	var leaf NodeIdx
	if isGroupScan {
		node, leaf = asm.startGroupScan(scan.(*physical.GroupScan))
	} else {
		node, leaf = asm.startIndexScan(scan, anchor)
	}

	path := asm.requiredPath(asm.tree.Root(), leaf)
	below, above := asm.splitFilters(path)
	node = asm.selectBelow(node, below)
	node = asm.flatten(node, path)
	node = asm.fillSideBranches(node, leaf, NoNode)
	return asm.selectAbove(node, above)
}

// startGroupScan keeps the rows of the main path of the group scan. Other
// branches are fetched by nested lookups.
func (asm *assembly) startGroupScan(s *physical.GroupScan) (physical.Node, NodeIdx) {
	root := asm.tree.Root()
	leaf := asm.mark.singleBranchPending(root)
	gs := *s
	gs.Tables = nil
	for _, n := range asm.requiredPath(root, leaf) {
		gs.Tables = append(gs.Tables, asm.tree.Node(n).Table)
		asm.mark.ClearPending(n)
	}
	asm.cur = costing.CostEstimate{RowCount: asm.nodeRows(root), Cost: s.Est.Cost}
	asm.driving = root
	return &gs, leaf
}

// startIndexScan adds the lookups that bring the ancestors of the anchor and
// its own pending branch into the stream. It returns the leaf of the main
// path.
func (asm *assembly) startIndexScan(scan physical.Node, anchor NodeIdx) (physical.Node, NodeIdx) {
	node := scan
	needBranch := asm.mark.PendingBelow(anchor)

	var ancestors []NodeIdx
	for _, n := range asm.tree.Path(anchor) {
		if n == anchor {
			break
		}
		if asm.mark.IsPending(n) {
			ancestors = append(ancestors, n)
		}
	}
	if asm.mark.IsPending(anchor) && !needBranch {
		ancestors = append(ancestors, anchor)
	}
	if len(ancestors) > 0 {
		lookup := &physical.AncestorLookup{
			Input:  node,
			From:   asm.tree.Node(anchor).Table,
			Tables: asm.takeTables(ancestors),
		}
		asm.cur = asm.a.Model.EstimateAncestorLookup(asm.cur, len(ancestors))
		lookup.Est = asm.cur
		node = lookup
	}

	switch {
	case needBranch:
		leaf := asm.mark.singleBranchPending(anchor)
		branch := anchor
		if !asm.mark.IsPending(anchor) {
			branch = asm.childToward(anchor, leaf)
		}
		return asm.branchLookup(node, anchor, branch, leaf), leaf

	case asm.mark.Has(anchor, Required):
		return node, anchor

	default:
		// The anchor itself is not needed. The deepest required table above
		// it is already in the stream, fetched by the ancestor lookup or
		// covered by the scan. It ends the main path unless it is the node
		// that the nearest pending branch hangs off; then the stream jumps
		// into that branch.
		deep := NoNode
		for n := asm.tree.Node(anchor).Parent; n != NoNode; n = asm.tree.Node(n).Parent {
			if asm.mark.Has(n, Required) {
				deep = n
				break
			}
		}
		if deep == NoNode {
			panic(errors.AssertionFailedf("no required table in group tree"))
		}
		x, c := asm.nearestPendingBranch(anchor)
		if c == NoNode || deep != x {
			// Branches off deep or its ancestors are fetched as side
			// branches.
			return node, deep
		}
		from := anchor
		if len(ancestors) > 0 {
			// The stream now holds ancestor rows; branch out from the shared
			// ancestor rather than from the anchor.
			from = x
		}
		leaf := asm.mark.singleBranchPending(c)
		return asm.branchLookup(node, from, c, leaf), leaf
	}
}

// branchLookup fetches the pending nodes on the path from branch to leaf for
// each row of from.
func (asm *assembly) branchLookup(
	input physical.Node, from, branch, leaf NodeIdx,
) physical.Node {
	lookup := &physical.BranchLookup{
		Input:  input,
		From:   asm.tree.Node(from).Table,
		Branch: asm.tree.Node(branch).Table,
		Tables: asm.takeTables(asm.pendingOnPath(branch, leaf)),
	}
	asm.cur = asm.a.Model.EstimateBranchLookup(asm.cur, asm.fanout(asm.driving, leaf))
	asm.driving = leaf
	lookup.Est = asm.cur
	return lookup
}

// nearestPendingBranch walks up from n and returns the first ancestor x with
// a child c, not on the path to n, whose subtree has pending work.
func (asm *assembly) nearestPendingBranch(n NodeIdx) (x, c NodeIdx) {
	prev := n
	for x = asm.tree.Node(n).Parent; x != NoNode; prev, x = x, asm.tree.Node(x).Parent {
		for _, ch := range asm.tree.Children(x) {
			if ch != prev && (asm.mark.IsPending(ch) || asm.mark.PendingBelow(ch)) {
				return x, ch
			}
		}
	}
	return NoNode, NoNode
}

// childToward returns the child of anc on the path to n.
func (asm *assembly) childToward(anc, n NodeIdx) NodeIdx {
	path := asm.tree.PathBetween(anc, n)
	return path[1]
}

func (asm *assembly) pendingOnPath(from, to NodeIdx) []NodeIdx {
	var res []NodeIdx
	for _, n := range asm.tree.PathBetween(from, to) {
		if asm.mark.IsPending(n) {
			res = append(res, n)
		}
	}
	return res
}

// requiredPath returns the required nodes on the path from anc down to n.
func (asm *assembly) requiredPath(anc, n NodeIdx) []NodeIdx {
	var res []NodeIdx
	for _, p := range asm.tree.PathBetween(anc, n) {
		if asm.mark.Has(p, Required) {
			res = append(res, p)
		}
	}
	return res
}

// takeTables clears the pending flag of the given nodes and returns their
// tables.
func (asm *assembly) takeTables(nodes []NodeIdx) []opt.TableID {
	res := make([]opt.TableID, len(nodes))
	for i, n := range nodes {
		asm.mark.ClearPending(n)
		res[i] = asm.tree.Node(n).Table
	}
	return res
}

func (asm *assembly) nodeRows(n NodeIdx) float64 {
	return asm.a.tableRows(asm.ctx, asm.tree.Node(n).Table)
}

func (a *Assembler) tableRows(ctx context.Context, tab opt.TableID) float64 {
	return a.Model.TableRowCount(ctx, a.Metadata.Table(tab))
}

// fanout returns the number of rows of to per row of from.
func (asm *assembly) fanout(from, to NodeIdx) float64 {
	if from == to {
		return 1
	}
	md := asm.a.Metadata
	return asm.a.Model.Fanout(asm.ctx,
		md.Table(asm.tree.Node(from).Table), md.Table(asm.tree.Node(to).Table))
}

// filters returns the relation's filters together with the extra conditions
// of inner group joins.
func (asm *assembly) filters() opt.FiltersExpr {
	res := append(opt.FiltersExpr(nil), asm.in.Filters...)
	asm.tree.Walk(func(n NodeIdx) {
		node := asm.tree.Node(n)
		if node.JoinType == opt.InnerJoin {
			res = append(res, node.JoinConditions...)
		}
	})
	return res
}

// splitFilters separates the filters that can be applied to the stream
// before it is flattened: those on a single table of the main path that is
// joined to the root by inner joins only.
func (asm *assembly) splitFilters(path []NodeIdx) (below, above opt.FiltersExpr) {
	md := asm.a.Metadata
	for _, f := range asm.filters() {
		tabs := md.TablesOf(opt.OuterCols(f))
		pushed := false
		if tabs.Len() == 1 {
			tab, _ := tabs.Next(0)
			for _, n := range path {
				if int(asm.tree.Node(n).Table) == tab && asm.tree.InnerPath(n) {
					pushed = true
					break
				}
			}
		}
		if pushed {
			below = append(below, f)
		} else {
			above = append(above, f)
		}
	}
	return below, above
}

func (asm *assembly) selectBelow(input physical.Node, filters opt.FiltersExpr) physical.Node {
	if len(filters) == 0 {
		return input
	}
	sel := asm.a.Model.JoinConditionSelectivity(asm.ctx, asm.a.Metadata, filters)
	asm.cur = asm.a.Model.EstimateSelect(asm.cur, sel, len(filters))
	s := &physical.Select{Input: input, Filters: filters}
	s.Est = asm.cur
	return s
}

func (asm *assembly) selectAbove(input physical.Node, filters opt.FiltersExpr) physical.Node {
	if len(filters) == 0 {
		return input
	}
	sel := asm.a.Model.JoinConditionSelectivity(asm.ctx, asm.a.Metadata, filters)
	s := &physical.Select{Input: input, Filters: filters}
	s.Est = asm.a.Model.EstimateSelect(physical.Estimate(input), sel, len(filters))
	return s
}

// flatten merges the rows of the nodes on path, which runs down from the
// top of the stream to its leaf. A single table needs no flattening.
func (asm *assembly) flatten(input physical.Node, path []NodeIdx) physical.Node {
	if len(path) < 2 {
		return input
	}
	leaf := path[len(path)-1]
	f := &physical.Flatten{Input: input}
	for i, n := range path {
		node := asm.tree.Node(n)
		f.Tables = append(f.Tables, node.Table)
		if i == 0 {
			continue
		}
		f.JoinTypes = append(f.JoinTypes, node.JoinType)
		var conds opt.FiltersExpr
		if node.JoinType != opt.InnerJoin {
			conds = node.JoinConditions
		}
		f.Conditions = append(f.Conditions, conds)
	}
	rows := asm.cur.RowCount
	if asm.tree.IsAncestor(asm.driving, leaf) {
		rows *= asm.fanout(asm.driving, leaf)
		asm.driving = leaf
	}
	asm.cur = asm.a.Model.EstimateFlatten(asm.cur, rows)
	f.Est = asm.cur
	return f
}

// fillSideBranches walks up from leaf to (but excluding) stop. At every node
// with pending branches off the walked path, each branch is fetched by a
// nested lookup, flattened on its own, and combined with the plan so far by
// a Product on that node.
func (asm *assembly) fillSideBranches(main physical.Node, leaf, stop NodeIdx) physical.Node {
	baseRows := physical.Estimate(main).RowCount
	prev := NoNode
	for n := leaf; n != stop && n != NoNode; prev, n = n, asm.tree.Node(n).Parent {
		var sides []NodeIdx
		for _, ch := range asm.tree.Children(n) {
			if ch != prev && (asm.mark.IsPending(ch) || asm.mark.PendingBelow(ch)) {
				sides = append(sides, ch)
			}
		}
		if len(sides) == 0 {
			continue
		}
		ancRows := 0.0
		if f := asm.fanout(n, leaf); f > 0 {
			ancRows = baseRows / f
		}
		p := &physical.Product{Ancestor: asm.tree.Node(n).Table, Inputs: []physical.Node{main}}
		var branchEsts []costing.CostEstimate
		for _, ch := range sides {
			sub := asm.sideBranch(n, ch, ancRows)
			p.Inputs = append(p.Inputs, sub)
			chNode := asm.tree.Node(ch)
			p.JoinTypes = append(p.JoinTypes, chNode.JoinType)
			var conds opt.FiltersExpr
			if chNode.JoinType != opt.InnerJoin {
				conds = chNode.JoinConditions
			}
			p.Conditions = append(p.Conditions, conds)
			branchEsts = append(branchEsts, physical.Estimate(sub))
		}
		p.Est = asm.a.Model.EstimateProduct(physical.Estimate(main), branchEsts, ancRows)
		main = p
	}
	return main
}

// sideBranch builds the nested plan for the branch rooted at ch, run once
// per row of its parent x.
func (asm *assembly) sideBranch(x, ch NodeIdx, ancRows float64) physical.Node {
	sub := assembly{ctx: asm.ctx, a: asm.a, in: asm.in, tree: asm.tree, mark: asm.mark}
	sub.cur = costing.CostEstimate{RowCount: ancRows}
	sub.driving = x
	leaf := asm.mark.singleBranchPending(ch)
	lookup := &physical.BranchLookup{
		From:   asm.tree.Node(x).Table,
		Branch: asm.tree.Node(ch).Table,
		Tables: sub.takeTables(sub.pendingOnPath(ch, leaf)),
		Nested: true,
	}
	sub.cur = asm.a.Model.EstimateBranchLookup(sub.cur, sub.fanout(x, leaf))
	sub.driving = leaf
	lookup.Est = sub.cur
	node := sub.flatten(lookup, sub.requiredPath(ch, leaf))
	return sub.fillSideBranches(node, leaf, x)
}
