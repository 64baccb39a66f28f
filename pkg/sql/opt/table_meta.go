// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/groupopt/pkg/sql/opt/cat"

// TableMeta stores information about one of the tables stored in the
// metadata.
type TableMeta struct {
	// MetaID is the identifier for this table that is unique within the query
	// metadata.
	MetaID TableID

	// Table is a reference to the table in the catalog.
	Table cat.Table

	// Alias stores the identifier used in the query to identify the table.
	// This might be explicitly qualified (e.g. <catalog>.<schema>.<table>), or
	// not (e.g. <table>). Or, it may be an alias used in the query, in which
	// case it is always an unqualified name.
	Alias string

	firstCol ColumnID
}

// ColumnID returns the metadata id of the column at the given ordinal
// position in the table.
func (tm *TableMeta) ColumnID(ord int) ColumnID {
	return tm.firstCol + ColumnID(ord)
}

// ColumnOrdinal returns the ordinal position of the column in the table. It
// is the inverse of ColumnID.
func (tm *TableMeta) ColumnOrdinal(id ColumnID) int {
	return int(id - tm.firstCol)
}

// Columns returns the set of all columns of the table.
func (tm *TableMeta) Columns() ColSet {
	var cols ColSet
	n := tm.Table.ColumnCount()
	if n > 0 {
		cols.AddRange(int(tm.firstCol), int(tm.firstCol)+n-1)
	}
	return cols
}

// IndexColumns returns the metadata IDs for the set of columns in the given
// index that belong to this table.
func (tm *TableMeta) IndexColumns(idx cat.Index) ColSet {
	var cols ColSet
	for i, n := 0, idx.ColumnCount(); i < n; i++ {
		c := idx.Column(i)
		if c.Table.ID() == tm.Table.ID() {
			cols.Add(int(tm.ColumnID(c.Ordinal)))
		}
	}
	if idx.IsPrimary() && idx.Table().ID() == tm.Table.ID() {
		cols.UnionWith(tm.Columns())
	}
	return cols
}
