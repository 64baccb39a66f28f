// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/util"
)

// JoinOrderBuilder enumerates the valid join orders of a join graph. The
// leaves of the graph are its vertices; every join operator of the graph
// contributes one or more edges. Inner joins contribute one edge per
// conjunct of their ON condition, other joins a single edge.
//
// Enumeration is DPsube: every subset of vertices is split in every way into
// two non-empty halves, and a join of the halves is added whenever an edge
// connects them. The applicability of an edge to a split is governed by its
// total eligibility set (TES) and its conflict rules, both computed once by
// the CD-C algorithm from the shape of the original join tree. See:
//
//	Moerkotte, Fender, Eich. On the correct and complete enumeration of the
//	core search space. SIGMOD 2013.
//
// Filters of Select operators are pushed as far down the graph as the join
// types allow before edges are built. Filters that cannot be pushed into a
// join are applied on top of the complete join.
type JoinOrderBuilder struct {
	md *opt.Metadata

	vertices []logical.Relation
	// vertexFilters are the conjuncts that reference a single vertex and were
	// pushed down to it.
	vertexFilters []opt.FiltersExpr
	colVertex     map[opt.ColumnID]opt.RelationID

	edges         []edge
	innerEdges    util.FastIntSet
	nonInnerEdges util.FastIntSet
	// ops are the join operators of the original tree, in post-order.
	ops []*operator

	// residual are filters applied above the complete join.
	residual opt.FiltersExpr

	// hasPlan reports whether a set of vertices has at least one plan.
	hasPlan func(opt.RelSet) bool
	// onJoin is called for every valid join of two sets of vertices.
	onJoin func(left, right opt.RelSet, joinType opt.JoinType, on, selFilters opt.FiltersExpr)
}

// Init builds the join graph of e. It panics if the graph has more than
// opt.MaxRelations leaves.
func (jb *JoinOrderBuilder) Init(md *opt.Metadata, e logical.Expr) {
	*jb = JoinOrderBuilder{md: md, colVertex: make(map[opt.ColumnID]opt.RelationID)}
	jb.populateGraph(e, nil)
}

// Vertices returns the leaves of the join graph; the i-th leaf is relation
// i.
func (jb *JoinOrderBuilder) Vertices() []logical.Relation { return jb.vertices }

// VertexFilters returns the conjuncts pushed down to the given vertex.
func (jb *JoinOrderBuilder) VertexFilters(v opt.RelationID) opt.FiltersExpr {
	return jb.vertexFilters[v]
}

// Residual returns the filters that must be applied above the complete join.
func (jb *JoinOrderBuilder) Residual() opt.FiltersExpr { return jb.residual }

// AllVertices returns the set of all vertices.
func (jb *JoinOrderBuilder) AllVertices() opt.RelSet {
	return opt.AllRelations(len(jb.vertices))
}

// VertexOf returns the vertex producing the given column.
func (jb *JoinOrderBuilder) VertexOf(col opt.ColumnID) (opt.RelationID, bool) {
	v, ok := jb.colVertex[col]
	return v, ok
}

// Vertices of the columns referenced by e.
func (jb *JoinOrderBuilder) verticesOf(cols opt.ColSet) opt.RelSet {
	var s opt.RelSet
	cols.ForEach(func(c int) {
		if v, ok := jb.colVertex[opt.ColumnID(c)]; ok {
			s = s.Add(v)
		}
	})
	return s
}

// populateGraph adds the vertices and edges of e, pushing the given filters
// down. It returns the vertices and edges it added.
func (jb *JoinOrderBuilder) populateGraph(
	e logical.Expr, pushed opt.FiltersExpr,
) (opt.RelSet, util.FastIntSet) {
	switch t := e.(type) {
	case *logical.Select:
		return jb.populateGraph(t.Input, append(pushed[:len(pushed):len(pushed)], t.Filters...))

	case logical.Relation:
		return jb.addVertex(t, pushed), util.FastIntSet{}

	case *logical.Join:
		return jb.buildJoinOp(t, pushed)
	}
	panic(errors.AssertionFailedf("unhandled logical expression %T", e))
}

func (jb *JoinOrderBuilder) addVertex(rel logical.Relation, filters opt.FiltersExpr) opt.RelSet {
	if len(jb.vertices) >= opt.MaxRelations {
		panic(errors.AssertionFailedf("join graph has more than %d relations", opt.MaxRelations))
	}
	v := opt.RelationID(len(jb.vertices))
	jb.vertices = append(jb.vertices, rel)
	jb.vertexFilters = append(jb.vertexFilters, filters)
	logical.OutputCols(jb.md, rel).ForEach(func(c int) {
		jb.colVertex[opt.ColumnID(c)] = v
	})
	return opt.MakeRelSet(v)
}

func (jb *JoinOrderBuilder) buildJoinOp(
	j *logical.Join, pushed opt.FiltersExpr,
) (opt.RelSet, util.FastIntSet) {
	left, right, joinType := j.Left, j.Right, j.Type
	if joinType == opt.RightJoin {
		left, right, joinType = right, left, opt.LeftJoin
	}
	leftCols := logical.OutputCols(jb.md, left)
	rightCols := logical.OutputCols(jb.md, right)

	var leftPushed, rightPushed, on opt.FiltersExpr
	for _, f := range pushed {
		cols := opt.OuterCols(f)
		switch {
		case joinType != opt.FullJoin && cols.SubsetOf(leftCols):
			leftPushed = append(leftPushed, f)
		case joinType == opt.InnerJoin && cols.SubsetOf(rightCols):
			rightPushed = append(rightPushed, f)
		case joinType == opt.InnerJoin:
			on = append(on, f)
		default:
			jb.residual = append(jb.residual, f)
		}
	}
	for _, f := range j.On {
		cols := opt.OuterCols(f)
		switch {
		case joinType == opt.InnerJoin && cols.SubsetOf(leftCols):
			leftPushed = append(leftPushed, f)
		case joinType != opt.FullJoin && !cols.Empty() && cols.SubsetOf(rightCols):
			rightPushed = append(rightPushed, f)
		default:
			on = append(on, f)
		}
	}

	leftV, leftE := jb.populateGraph(left, leftPushed)
	rightV, rightE := jb.populateGraph(right, rightPushed)
	op := &operator{
		joinType:      joinType,
		leftVertices:  leftV,
		rightVertices: rightV,
		leftEdges:     leftE,
		rightEdges:    rightE,
	}
	jb.ops = append(jb.ops, op)

	start := len(jb.edges)
	if joinType == opt.InnerJoin && len(on) > 0 {
		for _, f := range on {
			jb.addEdge(op, opt.FiltersExpr{f})
		}
	} else {
		jb.addEdge(op, on)
	}
	var edges util.FastIntSet
	edges.UnionWith(leftE)
	edges.UnionWith(rightE)
	edges.AddRange(start, len(jb.edges)-1)
	return leftV.Union(rightV), edges
}

func (jb *JoinOrderBuilder) addEdge(op *operator, filters opt.FiltersExpr) {
	e := edge{op: op, filters: filters}
	e.ses = jb.verticesOf(filters.OuterCols())
	e.calcTES(jb.edges)
	jb.edges = append(jb.edges, e)
	if op.joinType == opt.InnerJoin {
		jb.innerEdges.Add(len(jb.edges) - 1)
	} else {
		jb.nonInnerEdges.Add(len(jb.edges) - 1)
	}
}

// Reorder enumerates every valid join of the graph, bottom up. Every subset
// is visited after all of its subsets.
func (jb *JoinOrderBuilder) Reorder() {
	all := jb.AllVertices()
	for s := opt.RelSet(1); s != 0 && s <= all; s++ {
		if s.IsSingleton() {
			continue
		}
		// Visit every split once: s1 always holds the lowest vertex of s.
		low := s & -s
		for s1 := (s - 1) & s; s1 > 0; s1 = (s1 - 1) & s {
			if s1&low == 0 {
				continue
			}
			jb.addJoins(s1, s.Difference(s1))
		}
	}
}

// BuildSyntactic adds the joins of the original tree only.
func (jb *JoinOrderBuilder) BuildSyntactic() {
	for _, op := range jb.ops {
		jb.addJoins(op.leftVertices, op.rightVertices)
	}
}

// addJoins adds the joins of s1 and s2 allowed by the edges, in both
// orientations.
func (jb *JoinOrderBuilder) addJoins(s1, s2 opt.RelSet) {
	if !jb.hasPlan(s1) || !jb.hasPlan(s2) {
		// Both inputs must be connected.
		return
	}

	var innerFilters opt.FiltersExpr
	addInner := false
	for i, ok := jb.innerEdges.Next(0); ok; i, ok = jb.innerEdges.Next(i + 1) {
		e := &jb.edges[i]
		if e.applicable(s1, s2) {
			innerFilters = append(innerFilters, e.filters...)
			addInner = true
			continue
		}
		if e.splits(s1, s2) {
			// The edge spans the split but may not be applied here; its filter
			// would be lost.
			return
		}
	}

	for i, ok := jb.nonInnerEdges.Next(0); ok; i, ok = jb.nonInnerEdges.Next(i + 1) {
		e := &jb.edges[i]
		if e.applicable(s1, s2) {
			jb.addJoin(e.op.joinType, s1, s2, e.filters, innerFilters)
			return
		}
		if e.applicable(s2, s1) {
			jb.addJoin(e.op.joinType, s2, s1, e.filters, innerFilters)
			return
		}
	}

	if addInner {
		// Only add an inner join when no non-inner join applies; otherwise the
		// non-inner join could be replaced by an inner join.
		jb.addJoin(opt.InnerJoin, s1, s2, innerFilters, nil)
	}
}

func (jb *JoinOrderBuilder) addJoin(
	joinType opt.JoinType, s1, s2 opt.RelSet, on, selFilters opt.FiltersExpr,
) {
	if s1.Intersects(s2) {
		panic(errors.AssertionFailedf("sets %s and %s are not disjoint", s1, s2))
	}
	jb.onJoin(s1, s2, joinType, on, selFilters)
	if joinType.Commutes() {
		jb.onJoin(s2, s1, joinType, on, selFilters)
	}
}

// String describes the edges of the graph.
func (jb *JoinOrderBuilder) String() string {
	var sb strings.Builder
	sb.WriteString("vertexes\n")
	for i := range jb.vertices {
		fmt.Fprintf(&sb, "  %d: %s\n", i, relationName(jb.md, jb.vertices[i]))
	}
	sb.WriteString("edges\n")
	for i := range jb.edges {
		e := &jb.edges[i]
		on := "true"
		if len(e.filters) > 0 {
			on = opt.FormatFilters(jb.md, e.filters)
		}
		fmt.Fprintf(&sb, "  %s [%s] ses=%s tes=%s", e.op.joinType, on, e.ses, e.tes)
		for _, r := range e.rules {
			fmt.Fprintf(&sb, " %s->%s", r.from, r.to)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// operator is a join operator of the original join tree.
type operator struct {
	joinType      opt.JoinType
	leftVertices  opt.RelSet
	rightVertices opt.RelSet
	// leftEdges and rightEdges are the edges built from the operators below
	// the left and right input.
	leftEdges  util.FastIntSet
	rightEdges util.FastIntSet
}

// edge is a join condition together with the rules that decide which
// splits of a vertex set it can join.
type edge struct {
	op      *operator
	filters opt.FiltersExpr

	// ses is the syntactic eligibility set: the vertices referenced by the
	// filters.
	ses opt.RelSet
	// tes is the total eligibility set: the vertices that must be present in
	// the inputs of any join applying the filters.
	tes   opt.RelSet
	rules []conflictRule
}

// conflictRule requires the vertices in to whenever any vertex of from is
// present in the join inputs.
type conflictRule struct {
	from, to opt.RelSet
}

// calcTES expands the SES into the TES using the conflict detection rules
// for the operators below the edge's operator.
func (e *edge) calcTES(edges []edge) {
	e.tes = e.ses

	// Degenerate predicates (cross joins, or conditions that reference only
	// one input) are frozen in their original position.
	if !e.tes.Intersects(e.op.leftVertices) {
		e.tes = e.tes.Union(e.op.leftVertices)
	}
	if !e.tes.Intersects(e.op.rightVertices) {
		e.tes = e.tes.Union(e.op.rightVertices)
	}

	for i, ok := e.op.leftEdges.Next(0); ok; i, ok = e.op.leftEdges.Next(i + 1) {
		if e.op.leftVertices.SubsetOf(e.tes) {
			// The TES already includes every relation of the left input.
			break
		}
		child := &edges[i]
		if !assoc(child, e) {
			rule := conflictRule{from: child.op.rightVertices, to: child.op.leftVertices}
			if child.op.leftVertices.Intersects(child.ses) {
				rule.to = child.op.leftVertices.Intersection(child.ses)
			}
			e.addRule(rule)
		}
		if !leftAsscom(child, e) {
			rule := conflictRule{from: child.op.leftVertices, to: child.op.rightVertices}
			if child.op.rightVertices.Intersects(child.ses) {
				rule.to = child.op.rightVertices.Intersection(child.ses)
			}
			e.addRule(rule)
		}
	}

	for i, ok := e.op.rightEdges.Next(0); ok; i, ok = e.op.rightEdges.Next(i + 1) {
		if e.op.rightVertices.SubsetOf(e.tes) {
			break
		}
		child := &edges[i]
		if !assoc(e, child) {
			rule := conflictRule{from: child.op.leftVertices, to: child.op.rightVertices}
			if child.op.rightVertices.Intersects(child.ses) {
				rule.to = child.op.rightVertices.Intersection(child.ses)
			}
			e.addRule(rule)
		}
		if !rightAsscom(e, child) {
			rule := conflictRule{from: child.op.rightVertices, to: child.op.leftVertices}
			if child.op.leftVertices.Intersects(child.ses) {
				rule.to = child.op.leftVertices.Intersection(child.ses)
			}
			e.addRule(rule)
		}
	}
}

// addRule adds a conflict rule, folding it into the TES when it would always
// or never fire.
func (e *edge) addRule(rule conflictRule) {
	if rule.from.Intersects(e.tes) {
		e.tes = e.tes.Union(rule.to)
		return
	}
	if rule.to.SubsetOf(e.tes) {
		return
	}
	e.rules = append(e.rules, rule)
}

// applicable returns true if the edge can join s1 (left) and s2 (right).
func (e *edge) applicable(s1, s2 opt.RelSet) bool {
	if !e.checkRules(s1, s2) {
		return false
	}
	if e.op.joinType == opt.InnerJoin {
		return e.tes.SubsetOf(s1.Union(s2)) && e.tes.Intersects(s1) && e.tes.Intersects(s2)
	}
	return e.tes.Intersection(e.op.leftVertices).SubsetOf(s1) &&
		e.tes.Intersection(e.op.rightVertices).SubsetOf(s2) &&
		e.tes.Intersects(s1) && e.tes.Intersects(s2)
}

// splits returns true if the edge's filters reference both s1 and s2 and
// nothing outside of them.
func (e *edge) splits(s1, s2 opt.RelSet) bool {
	return e.ses.SubsetOf(s1.Union(s2)) && e.ses.Intersects(s1) && e.ses.Intersects(s2)
}

func (e *edge) checkRules(s1, s2 opt.RelSet) bool {
	s := s1.Union(s2)
	for _, rule := range e.rules {
		if rule.from.Intersects(s) && !rule.to.SubsetOf(s) {
			return false
		}
	}
	return true
}

// assoc returns true if (A a B) b C can be rewritten as A a (B b C), where a
// is the operator of edgeA and b the operator of edgeB.
func assoc(edgeA, edgeB *edge) bool {
	if edgeB.ses.Intersects(edgeA.op.leftVertices) || edgeA.ses.Intersects(edgeB.op.rightVertices) {
		// The rewrite would turn one of the operators into a cross join.
		return false
	}
	return checkProperty(assocTable, edgeA, edgeB)
}

// leftAsscom returns true if (A a B) b C can be rewritten as (A b C) a B.
func leftAsscom(edgeA, edgeB *edge) bool {
	if edgeB.ses.Intersects(edgeA.op.rightVertices) || edgeA.ses.Intersects(edgeB.op.rightVertices) {
		return false
	}
	return checkProperty(leftAsscomTable, edgeA, edgeB)
}

// rightAsscom returns true if A b (B a C) can be rewritten as B a (A b C).
func rightAsscom(edgeA, edgeB *edge) bool {
	if edgeB.ses.Intersects(edgeA.op.leftVertices) || edgeA.ses.Intersects(edgeB.op.leftVertices) {
		return false
	}
	return checkProperty(rightAsscomTable, edgeA, edgeB)
}

// Rows and columns of the property tables.
const (
	innerIdx = iota
	semiIdx
	antiIdx
	leftIdx
	fullIdx
)

// The property tables of the CD-C algorithm. Entries that hold only when a
// predicate rejects nulls are false: null rejection is not tracked.
var (
	assocTable = [5][5]bool{
		//           inner  semi   anti   left   full
		/* inner */ {true, true, true, true, false},
		/* semi  */ {false, false, false, false, false},
		/* anti  */ {false, false, false, false, false},
		/* left  */ {false, false, false, false, false},
		/* full  */ {false, false, false, false, false},
	}
	leftAsscomTable = [5][5]bool{
		/* inner */ {true, true, true, true, false},
		/* semi  */ {true, true, true, true, false},
		/* anti  */ {true, true, true, true, false},
		/* left  */ {true, true, true, true, false},
		/* full  */ {false, false, false, false, false},
	}
	rightAsscomTable = [5][5]bool{
		/* inner */ {true, false, false, false, false},
		/* semi  */ {false, false, false, false, false},
		/* anti  */ {false, false, false, false, false},
		/* left  */ {false, false, false, false, false},
		/* full  */ {false, false, false, false, false},
	}
)

func checkProperty(table [5][5]bool, edgeA, edgeB *edge) bool {
	return table[tableIdx(edgeA.op.joinType)][tableIdx(edgeB.op.joinType)]
}

func tableIdx(joinType opt.JoinType) int {
	switch {
	case joinType == opt.InnerJoin:
		return innerIdx
	case joinType.IsSemi():
		return semiIdx
	case joinType == opt.AntiJoin:
		return antiIdx
	case joinType == opt.LeftJoin:
		return leftIdx
	case joinType == opt.FullJoin:
		return fullIdx
	}
	panic(errors.AssertionFailedf("unexpected join type %s", joinType))
}
