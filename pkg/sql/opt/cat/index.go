// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

// Index is an interface to a table index or a group index.
//
// A table index contains columns from a single table. A group index contains
// columns from the tables on one root-to-leaf path of a group; its rows exist
// only for complete paths, and it is anchored at the deepest table on the
// path.
type Index interface {
	DataSource

	// Table returns the table that the index is anchored at: the indexed
	// table for table indexes and the deepest table for group indexes.
	Table() Table

	// IsGroupIndex returns true for group indexes.
	IsGroupIndex() bool

	// IsPrimary returns true for the primary index of a table. The primary
	// index stores every column of its table.
	IsPrimary() bool

	// IsUnique returns true if no two rows share the same key columns.
	IsUnique() bool

	// KeyColumnCount returns the number of key columns.
	KeyColumnCount() int

	// ColumnCount returns the number of key and stored columns.
	ColumnCount() int

	// Column returns the i-th column of the index. The first KeyColumnCount()
	// columns are key columns.
	Column(i int) IndexColumn
}

// IndexColumn describes one column of an index.
type IndexColumn struct {
	// Table is the table the column belongs to.
	Table Table
	// Ordinal is the position of the column in Table.
	Ordinal int
	// Descending is true if the key column is stored in descending order.
	Descending bool
}

// IndexTables returns the tables contributing columns to idx, ordered from
// the root of the group towards the anchor table.
func IndexTables(idx Index) []Table {
	var res []Table
	seen := make(map[StableID]bool)
	for i, n := 0, idx.ColumnCount(); i < n; i++ {
		t := idx.Column(i).Table
		if !seen[t.ID()] {
			seen[t.ID()] = true
			res = append(res, t)
		}
	}
	if !seen[idx.Table().ID()] {
		res = append(res, idx.Table())
	}
	// Sort by depth; a group index spans a single path so depths are unique.
	for i := 1; i < len(res); i++ {
		for j := i; j > 0 && Depth(res[j]) < Depth(res[j-1]); j-- {
			res[j], res[j-1] = res[j-1], res[j]
		}
	}
	return res
}
