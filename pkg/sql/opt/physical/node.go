// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package physical contains the physical plan produced by the optimizer.
// Node is a closed set of operator types: group-aware scans and lookups,
// flattening and branch products, nested loop joins and the operators that
// finish a query.
package physical

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
)

// Node is a physical operator.
type Node interface {
	physicalProps() *Props
}

// Props holds the properties shared by all physical operators.
type Props struct {
	// Est is the estimate for the subtree rooted at the operator.
	Est costing.CostEstimate
}

func (p *Props) physicalProps() *Props { return p }

// Estimate returns the estimate stored on n.
func Estimate(n Node) costing.CostEstimate { return n.physicalProps().Est }

// SetEstimate stores the estimate of n.
func SetEstimate(n Node, est costing.CostEstimate) { n.physicalProps().Est = est }

// OrderingEffectiveness describes how an index scan's order serves the
// query's ordering or grouping.
type OrderingEffectiveness uint8

const (
	// OrderingNone means the scan order is of no use.
	OrderingNone OrderingEffectiveness = iota
	// OrderingGrouped means equal grouping keys are adjacent.
	OrderingGrouped
	// OrderingSorted means the rows come out in the required order.
	OrderingSorted
	// OrderingForMinMax means the first row answers a MIN/MAX aggregate.
	OrderingForMinMax
)

func (e OrderingEffectiveness) String() string {
	switch e {
	case OrderingNone:
		return "none"
	case OrderingGrouped:
		return "grouped"
	case OrderingSorted:
		return "sorted"
	case OrderingForMinMax:
		return "for-min-max"
	}
	return "unknown"
}

// JoinImpl names the implementation of a join.
type JoinImpl string

// JoinImplNestedLoop is the only join implementation.
const JoinImplNestedLoop JoinImpl = "nested loop"

// IndexScan reads an index, optionally restricted by equalities on its
// leading key columns and a range on the next key column.
type IndexScan struct {
	Props
	Index cat.Index
	// Table is the metadata table the index is anchored at.
	Table opt.TableID
	// Equalities[i] is the value of key column i.
	Equalities []opt.ScalarExpr
	Lo, Hi     *costing.RangeBound
	// Effectiveness describes whether the scan order serves the query.
	Effectiveness OrderingEffectiveness
	Reverse       bool
	// Covered is the set of tables whose required columns are all stored in
	// the index.
	Covered opt.TableSet
	// Consumed holds the conditions applied by the equalities and range.
	Consumed opt.FiltersExpr
}

// IntersectScan intersects the row keys of scans of the same anchor table.
type IntersectScan struct {
	Props
	Inputs []*IndexScan
	// SkipScan is set when the smallest input drives lookups into the others.
	SkipScan bool
}

// GroupScan reads every row of a storage group.
type GroupScan struct {
	Props
	Group cat.Group
	// Tables are the metadata tables whose rows are kept, root first.
	Tables []opt.TableID
}

// AncestorLookup fetches ancestor rows for each input row.
type AncestorLookup struct {
	Props
	Input Node
	From  opt.TableID
	// Tables are the fetched ancestors, root first.
	Tables []opt.TableID
}

// BranchLookup fetches the rows of a subtree of the group below each row of
// table From. A nested lookup has no input; it runs once per row of From
// produced by the enclosing Product.
type BranchLookup struct {
	Props
	Input  Node
	From   opt.TableID
	Branch opt.TableID
	// Tables are the fetched tables on the path to the branch leaf, root
	// first.
	Tables []opt.TableID
	Nested bool
}

// Flatten merges nested ancestor and descendant rows into flat rows.
type Flatten struct {
	Props
	Input Node
	// Tables lists the flattened tables, root first.
	Tables []opt.TableID
	// JoinTypes[i] joins Tables[i] with Tables[i+1].
	JoinTypes []opt.JoinType
	// Conditions[i] are extra conditions of the outer join JoinTypes[i].
	Conditions []opt.FiltersExpr
}

// Product combines independent branches below a shared ancestor.
type Product struct {
	Props
	Ancestor opt.TableID
	// Inputs[0] is the main branch; it carries the ancestor's columns.
	Inputs []Node
	// JoinTypes[i] joins the ancestor with Inputs[i+1].
	JoinTypes []opt.JoinType
	// Conditions[i] are extra conditions of the outer join JoinTypes[i].
	Conditions []opt.FiltersExpr
}

// Select filters its input.
type Select struct {
	Props
	Input   Node
	Filters opt.FiltersExpr
}

// NestedLoopJoin runs Right once per row of Left.
type NestedLoopJoin struct {
	Props
	Left, Right Node
	Type        opt.JoinType
	On          opt.FiltersExpr
	Impl        JoinImpl
}

// ValuesScan produces literal rows.
type ValuesScan struct {
	Props
	Rows [][]opt.ScalarExpr
	Cols []opt.ColumnID
}

// SubqueryScan produces the rows of an optimized subquery.
type SubqueryScan struct {
	Props
	Input Node
	Cols  []opt.ColumnID
}

// Distinct removes duplicate rows.
type Distinct struct {
	Props
	Input Node
	Cols  opt.ColSet
}

// Sort orders its input.
type Sort struct {
	Props
	Input    Node
	Ordering opt.Ordering
}

// Aggregate groups its input.
type Aggregate struct {
	Props
	Input        Node
	Grouping     opt.ColSet
	Aggregations []opt.Aggregation
	// Streaming is set if the input is grouped on the grouping columns.
	Streaming bool
}

// Limit returns the first Count rows of its input.
type Limit struct {
	Props
	Input Node
	Count int64
}

// Children returns the inputs of n.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *IndexScan, *GroupScan, *ValuesScan:
		return nil
	case *IntersectScan:
		res := make([]Node, len(t.Inputs))
		for i := range t.Inputs {
			res[i] = t.Inputs[i]
		}
		return res
	case *AncestorLookup:
		return []Node{t.Input}
	case *BranchLookup:
		if t.Input == nil {
			return nil
		}
		return []Node{t.Input}
	case *Flatten:
		return []Node{t.Input}
	case *Product:
		return t.Inputs
	case *Select:
		return []Node{t.Input}
	case *NestedLoopJoin:
		return []Node{t.Left, t.Right}
	case *SubqueryScan:
		return []Node{t.Input}
	case *Distinct:
		return []Node{t.Input}
	case *Sort:
		return []Node{t.Input}
	case *Aggregate:
		return []Node{t.Input}
	case *Limit:
		return []Node{t.Input}
	}
	panic(errors.AssertionFailedf("unhandled physical node %T", n))
}

// Walk calls fn on n and its descendants in pre-order. Children of a node
// are skipped if fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// OutputTables returns the metadata tables whose rows are produced by a
// group-access subtree, in output order. Subqueries contribute nothing.
func OutputTables(n Node) []opt.TableID {
	switch t := n.(type) {
	case *IndexScan:
		var res []opt.TableID
		t.Covered.ForEach(func(i int) { res = append(res, opt.TableID(i)) })
		return res
	case *IntersectScan:
		// An intersection only produces row keys.
		return nil
	case *GroupScan:
		return t.Tables
	case *AncestorLookup:
		return append(append([]opt.TableID(nil), OutputTables(t.Input)...), t.Tables...)
	case *BranchLookup:
		var res []opt.TableID
		if t.Input != nil {
			res = append(res, OutputTables(t.Input)...)
		}
		return append(res, t.Tables...)
	case *Flatten:
		return t.Tables
	case *Product:
		var res []opt.TableID
		for _, in := range t.Inputs {
			res = append(res, OutputTables(in)...)
		}
		return res
	case *Select:
		return OutputTables(t.Input)
	case *Sort:
		return OutputTables(t.Input)
	case *Limit:
		return OutputTables(t.Input)
	case *Distinct:
		return OutputTables(t.Input)
	case *Aggregate:
		return OutputTables(t.Input)
	case *NestedLoopJoin:
		return append(append([]opt.TableID(nil), OutputTables(t.Left)...), OutputTables(t.Right)...)
	case *ValuesScan, *SubqueryScan:
		return nil
	}
	panic(errors.AssertionFailedf("unhandled physical node %T", n))
}
