// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
)

// Metadata assigns unique ids to the tables and columns referenced by one
// query. A new Metadata is created for every planning call.
//
// Table ids start at 1 and are assigned in the order tables are added.
// Column ids start at 1; the columns of a table get consecutive ids in
// ordinal order. Columns produced by literal-row sources and subqueries are
// added individually and have no table.
type Metadata struct {
	tables []TableMeta
	cols   []ColumnMeta
}

// ColumnMeta stores information about one of the columns stored in the
// metadata.
type ColumnMeta struct {
	MetaID ColumnID
	// Alias is the name of the column.
	Alias string
	Type  tree.Family
	// Table is the table the column belongs to, or 0 if the column is
	// synthesized by a values or subquery source.
	Table TableID
}

// NewMetadata returns an empty metadata.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// AddTable indexes a new reference to a table within the query. Separate
// references to the same table are assigned different table ids.
func (md *Metadata) AddTable(tab cat.Table, alias string) TableID {
	if alias == "" {
		alias = tab.Name()
	}
	id := TableID(len(md.tables) + 1)
	tm := TableMeta{MetaID: id, Table: tab, Alias: alias, firstCol: ColumnID(len(md.cols) + 1)}
	md.tables = append(md.tables, tm)
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		col := tab.Column(i)
		md.cols = append(md.cols, ColumnMeta{
			MetaID: ColumnID(len(md.cols) + 1),
			Alias:  col.Name,
			Type:   col.Type,
			Table:  id,
		})
	}
	return id
}

// AddColumn assigns a new id to a column that does not belong to a table.
func (md *Metadata) AddColumn(alias string, typ tree.Family) ColumnID {
	id := ColumnID(len(md.cols) + 1)
	md.cols = append(md.cols, ColumnMeta{MetaID: id, Alias: alias, Type: typ})
	return id
}

// TableMeta looks up the metadata for the table associated with the given
// table id.
func (md *Metadata) TableMeta(tabID TableID) *TableMeta {
	if tabID < 1 || int(tabID) > len(md.tables) {
		panic(errors.AssertionFailedf("table %d does not exist", tabID))
	}
	return &md.tables[tabID-1]
}

// Table looks up the catalog table associated with the given metadata id.
func (md *Metadata) Table(tabID TableID) cat.Table {
	return md.TableMeta(tabID).Table
}

// AllTables returns the metadata for all tables.
func (md *Metadata) AllTables() []TableMeta {
	return md.tables
}

// TableByStableID returns the id of the first reference to the given catalog
// table.
func (md *Metadata) TableByStableID(id cat.StableID) (TableID, bool) {
	for i := range md.tables {
		if md.tables[i].Table.ID() == id {
			return md.tables[i].MetaID, true
		}
	}
	return 0, false
}

// TableByAlias returns the id of the table with the given alias.
func (md *Metadata) TableByAlias(alias string) (TableID, bool) {
	for i := range md.tables {
		if md.tables[i].Alias == alias {
			return md.tables[i].MetaID, true
		}
	}
	return 0, false
}

// ColumnMeta looks up the metadata for the column associated with the given
// column id.
func (md *Metadata) ColumnMeta(colID ColumnID) *ColumnMeta {
	if colID < 1 || int(colID) > len(md.cols) {
		panic(errors.AssertionFailedf("column %d does not exist", colID))
	}
	return &md.cols[colID-1]
}

// NumColumns returns the number of columns in the metadata.
func (md *Metadata) NumColumns() int {
	return len(md.cols)
}

// ColumnTable returns the table that the column belongs to, or 0.
func (md *Metadata) ColumnTable(colID ColumnID) TableID {
	return md.ColumnMeta(colID).Table
}

// ColumnByName returns the column of the given table with the given name.
func (md *Metadata) ColumnByName(tabID TableID, name string) (ColumnID, bool) {
	tm := md.TableMeta(tabID)
	for i, n := 0, tm.Table.ColumnCount(); i < n; i++ {
		if tm.Table.Column(i).Name == name {
			return tm.ColumnID(i), true
		}
	}
	return 0, false
}

// TablesOf returns the set of tables referenced by the given columns.
func (md *Metadata) TablesOf(cols ColSet) TableSet {
	var tabs TableSet
	cols.ForEach(func(c int) {
		if t := md.ColumnTable(ColumnID(c)); t != 0 {
			tabs.Add(int(t))
		}
	})
	return tabs
}

// QualifiedAlias returns the column alias, qualified by the table alias when
// the column belongs to a table.
func (md *Metadata) QualifiedAlias(colID ColumnID) string {
	cm := md.ColumnMeta(colID)
	if cm.Table == 0 {
		return cm.Alias
	}
	return fmt.Sprintf("%s.%s", md.TableMeta(cm.Table).Alias, cm.Alias)
}
