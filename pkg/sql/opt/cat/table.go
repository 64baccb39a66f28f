// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import "github.com/cockroachdb/groupopt/pkg/sql/sem/tree"

// Table is an interface to a table stored in a table group. Rows of a child
// table are stored nested under the row of their parent table.
type Table interface {
	DataSource

	// ColumnCount returns the number of columns in the table.
	ColumnCount() int

	// Column returns the i-th column of the table.
	Column(i int) *Column

	// IndexCount returns the number of table indexes. The primary index is
	// always index 0.
	IndexCount() int

	// Index returns the i-th table index.
	Index(i int) Index

	// Parent returns the parent table in the group, or nil for the group root.
	Parent() Table

	// Group returns the storage group the table belongs to.
	Group() Group

	// RowCount returns the row count recorded in the catalog. It is used when
	// the statistics store has no count for the table.
	RowCount() int64
}

// Column describes a table column.
type Column struct {
	// Ordinal is the position of the column in the table.
	Ordinal int
	Name    string
	Type    tree.Family
	// Nullable is false if the column has a NOT NULL constraint.
	Nullable bool
}

// Group is a set of tables whose rows are stored nested under the rows of
// their parent tables.
type Group interface {
	DataSource

	// Root returns the root table of the group.
	Root() Table

	// TableCount returns the number of tables in the group.
	TableCount() int

	// Table returns the i-th table of the group. Tables are listed in
	// depth-first order starting at the root.
	Table(i int) Table

	// IndexCount returns the number of group indexes.
	IndexCount() int

	// Index returns the i-th group index.
	Index(i int) Index
}

// IsAncestor returns true if anc is a strict ancestor of tab in its group.
func IsAncestor(anc, tab Table) bool {
	for p := tab.Parent(); p != nil; p = p.Parent() {
		if p.ID() == anc.ID() {
			return true
		}
	}
	return false
}

// Depth returns the number of ancestors of tab.
func Depth(tab Table) int {
	d := 0
	for p := tab.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}

// LowestCommonAncestor returns the deepest table that is an ancestor of, or
// equal to, both a and b. It returns nil if they are in different groups.
func LowestCommonAncestor(a, b Table) Table {
	da, db := Depth(a), Depth(b)
	for da > db {
		a = a.Parent()
		da--
	}
	for db > da {
		b = b.Parent()
		db--
	}
	for a != nil && b != nil && a.ID() != b.ID() {
		a, b = a.Parent(), b.Parent()
	}
	if a == nil || b == nil {
		return nil
	}
	return a
}
