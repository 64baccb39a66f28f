// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package logical contains the join graph handed to the optimizer: relations
// joined by inner, outer, semi and anti joins, with residual filters and the
// shape of the query above the joins.
package logical

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/util/treeprinter"
)

// Expr is a node of the join graph.
type Expr interface {
	logicalExpr()
}

// Relation is a leaf of the join graph.
type Relation interface {
	Expr
	relation()
}

// TableGroupJoinTree is a relation made of tables of one storage group,
// joined along the group's parent-child relationships.
type TableGroupJoinTree struct {
	Tree *groupjoin.Tree
	// Filters are conditions that only reference the tree's tables.
	Filters opt.FiltersExpr
	// RequiredCols are the columns of the tree's tables that the query needs.
	RequiredCols opt.ColSet
}

// SubquerySource is a relation produced by an uncorrelated subquery.
type SubquerySource struct {
	Query *Query
	Cols  []opt.ColumnID
}

// ValuesSource is a relation made of literal rows.
type ValuesSource struct {
	Rows [][]opt.ScalarExpr
	Cols []opt.ColumnID
}

// Join joins two expressions.
type Join struct {
	Left, Right Expr
	Type        opt.JoinType
	On          opt.FiltersExpr
}

// Select filters its input.
type Select struct {
	Input   Expr
	Filters opt.FiltersExpr
}

func (*TableGroupJoinTree) logicalExpr() {}
func (*SubquerySource) logicalExpr()     {}
func (*ValuesSource) logicalExpr()       {}
func (*Join) logicalExpr()               {}
func (*Select) logicalExpr()             {}

func (*TableGroupJoinTree) relation() {}
func (*SubquerySource) relation()     {}
func (*ValuesSource) relation()       {}

// Query is the input of the optimizer.
type Query struct {
	Metadata *opt.Metadata
	Input    Expr
	// Output are the columns returned by the query.
	Output   opt.ColSet
	Ordering opt.Ordering
	// Grouping are the grouping columns; Aggregates are computed per group.
	// A query with aggregates and no grouping columns is a scalar
	// aggregation.
	Grouping   opt.ColSet
	Aggregates []opt.Aggregation
	Distinct   bool
	// Limit is the maximum number of rows returned, or 0.
	Limit int64
}

// RequiredTables returns the tables of the tree that own required columns.
func (t *TableGroupJoinTree) RequiredTables(md *opt.Metadata) opt.TableSet {
	return md.TablesOf(t.RequiredCols).Intersection(t.Tree.Tables())
}

// OutputCols returns the columns produced by e.
func OutputCols(md *opt.Metadata, e Expr) opt.ColSet {
	switch t := e.(type) {
	case *TableGroupJoinTree:
		var cols opt.ColSet
		t.Tree.Walk(func(n groupjoin.NodeIdx) {
			cols.UnionWith(md.TableMeta(t.Tree.Node(n).Table).Columns())
		})
		return cols
	case *SubquerySource:
		return opt.MakeColSet(t.Cols...)
	case *ValuesSource:
		return opt.MakeColSet(t.Cols...)
	case *Join:
		cols := OutputCols(md, t.Left)
		if !t.Type.IsSemiOrAnti() {
			cols.UnionWith(OutputCols(md, t.Right))
		}
		return cols
	case *Select:
		return OutputCols(md, t.Input)
	}
	panic(errors.AssertionFailedf("unhandled logical expression %T", e))
}

// Relations returns the leaves of e from left to right.
func Relations(e Expr) []Relation {
	var res []Relation
	var walk func(Expr)
	walk = func(e Expr) {
		switch t := e.(type) {
		case Relation:
			res = append(res, t)
		case *Join:
			walk(t.Left)
			walk(t.Right)
		case *Select:
			walk(t.Input)
		default:
			panic(errors.AssertionFailedf("unhandled logical expression %T", e))
		}
	}
	walk(e)
	return res
}

// Format renders the join graph as a tree.
func Format(md *opt.Metadata, e Expr) string {
	tp := treeprinter.New()
	format(tp, md, e)
	return tp.String()
}

func format(tp treeprinter.Node, md *opt.Metadata, e Expr) {
	switch t := e.(type) {
	case *TableGroupJoinTree:
		n := tp.Child("table-group-join-tree")
		var walk func(tp treeprinter.Node, idx groupjoin.NodeIdx)
		walk = func(tp treeprinter.Node, idx groupjoin.NodeIdx) {
			node := t.Tree.Node(idx)
			label := md.TableMeta(node.Table).Alias
			if node.Parent != groupjoin.NoNode {
				label = fmt.Sprintf("%s (%s)", label, node.JoinType)
			}
			c := tp.Child(label)
			for _, ch := range t.Tree.Children(idx) {
				walk(c, ch)
			}
		}
		walk(n, t.Tree.Root())
		if len(t.Filters) > 0 {
			n.AddLine("filters: " + opt.FormatFilters(md, t.Filters))
		}
	case *SubquerySource:
		n := tp.Child("subquery")
		format(n, md, t.Query.Input)
	case *ValuesSource:
		tp.Child(fmt.Sprintf("values (%d rows)", len(t.Rows)))
	case *Join:
		n := tp.Child(fmt.Sprintf("%s join", t.Type))
		if len(t.On) > 0 {
			n.AddLine("on: " + opt.FormatFilters(md, t.On))
		}
		format(n, md, t.Left)
		format(n, md, t.Right)
	case *Select:
		n := tp.Child("select")
		n.AddLine("filters: " + opt.FormatFilters(md, t.Filters))
		format(n, md, t.Input)
	default:
		panic(errors.AssertionFailedf("unhandled logical expression %T", e))
	}
}
