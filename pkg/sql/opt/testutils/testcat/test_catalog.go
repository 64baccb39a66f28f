// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
)

// Catalog is an in-memory catalog of storage groups used by tests and the
// command line tool.
type Catalog struct {
	groups  []*Group
	tables  map[string]*Table
	counter int
}

// New creates a new empty instance of the test catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// Table returns the table with the given name, or nil.
func (tc *Catalog) Table(name string) *Table {
	return tc.tables[name]
}

// Group returns the group with the given name, or nil.
func (tc *Catalog) Group(name string) *Group {
	for _, g := range tc.groups {
		if g.GroupName == name {
			return g
		}
	}
	return nil
}

// Groups returns the groups of the catalog in creation order.
func (tc *Catalog) Groups() []*Group {
	return tc.groups
}

// Index finds an index of a table, or a group index of the table's group.
func (tc *Catalog) Index(table, index string) (*Index, error) {
	tab := tc.tables[table]
	if tab == nil {
		return nil, errors.Newf("unknown table %q", table)
	}
	for _, idx := range tab.Indexes {
		if idx.IndexName == index {
			return idx, nil
		}
	}
	for _, idx := range tab.group.Indexes {
		if idx.IndexName == index {
			return idx, nil
		}
	}
	return nil, errors.Newf("unknown index %q on table %q", index, table)
}

// AddGroup adds a new empty group.
func (tc *Catalog) AddGroup(name string) (*Group, error) {
	if tc.Group(name) != nil {
		return nil, errors.Newf("group %q already exists", name)
	}
	g := &Group{GroupID: tc.nextStableID(), GroupName: name}
	tc.groups = append(tc.groups, g)
	return g, nil
}

// AddTable adds a table to a group. The parent must already be in the
// group; a table without a parent becomes the group root.
func (tc *Catalog) AddTable(g *Group, tab *Table, parent string) error {
	if _, ok := tc.tables[tab.TabName]; ok {
		return errors.Newf("table %q already exists", tab.TabName)
	}
	tab.TabID = tc.nextStableID()
	tab.group = g
	if parent == "" {
		if g.root != nil {
			return errors.Newf("group %q already has root %q", g.GroupName, g.root.TabName)
		}
		g.root = tab
	} else {
		p := tc.tables[parent]
		if p == nil || p.group != g {
			return errors.Newf("parent %q of %q is not in group %q", parent, tab.TabName, g.GroupName)
		}
		tab.parent = p
		p.children = append(p.children, tab)
	}
	tc.tables[tab.TabName] = tab
	g.ordered = nil
	return nil
}

// AddIndex adds a table index. Index 0 of every table must be its primary
// index.
func (tc *Catalog) AddIndex(tab *Table, idx *Index) {
	idx.IdxID = tc.nextStableID()
	idx.table = tab
	tab.Indexes = append(tab.Indexes, idx)
}

// AddGroupIndex adds a group index anchored at its deepest table.
func (tc *Catalog) AddGroupIndex(g *Group, idx *Index) error {
	var anchor *Table
	for _, c := range idx.Columns {
		t := c.Table.(*Table)
		if t.group != g {
			return errors.Newf("column of %q in group index %q is not in group %q",
				t.TabName, idx.IndexName, g.GroupName)
		}
		switch {
		case anchor == nil || cat.IsAncestor(anchor, t):
			anchor = t
		case anchor.TabID == t.TabID || cat.IsAncestor(t, anchor):
		default:
			return errors.Newf("group index %q spans tables %q and %q on different branches",
				idx.IndexName, anchor.TabName, t.TabName)
		}
	}
	if anchor == nil {
		return errors.Newf("group index %q has no columns", idx.IndexName)
	}
	idx.IdxID = tc.nextStableID()
	idx.table = anchor
	idx.Group = true
	g.Indexes = append(g.Indexes, idx)
	return nil
}

// String lists the catalog as a tree of groups, tables and indexes.
func (tc *Catalog) String() string {
	var sb strings.Builder
	for _, g := range tc.groups {
		fmt.Fprintf(&sb, "GROUP %s\n", g.GroupName)
		for i := 0; i < g.TableCount(); i++ {
			t := g.Table(i).(*Table)
			indent := strings.Repeat("  ", cat.Depth(t)+1)
			fmt.Fprintf(&sb, "%sTABLE %s (%d rows)\n", indent, t.TabName, t.Rows)
			for _, idx := range t.Indexes {
				fmt.Fprintf(&sb, "%s  %s\n", indent, idx)
			}
		}
		for _, idx := range g.Indexes {
			fmt.Fprintf(&sb, "  %s\n", idx)
		}
	}
	return sb.String()
}

func (tc *Catalog) nextStableID() cat.StableID {
	tc.counter++

	// 53 is a magic number derived from how CockroachDB internally counts
	// descriptors. Keep it here so ids look familiar in test output.
	return cat.StableID(53 + tc.counter)
}

// Group implements the cat.Group interface for testing purposes.
type Group struct {
	GroupID   cat.StableID
	GroupName string
	Indexes   []*Index

	root    *Table
	ordered []*Table
}

var _ cat.Group = &Group{}

// ID is part of the cat.DataSource interface.
func (g *Group) ID() cat.StableID { return g.GroupID }

// Name is part of the cat.DataSource interface.
func (g *Group) Name() string { return g.GroupName }

// Root is part of the cat.Group interface.
func (g *Group) Root() cat.Table {
	if g.root == nil {
		return nil
	}
	return g.root
}

// TableCount is part of the cat.Group interface.
func (g *Group) TableCount() int { return len(g.tablesInOrder()) }

// Table is part of the cat.Group interface.
func (g *Group) Table(i int) cat.Table { return g.tablesInOrder()[i] }

// IndexCount is part of the cat.Group interface.
func (g *Group) IndexCount() int { return len(g.Indexes) }

// Index is part of the cat.Group interface.
func (g *Group) Index(i int) cat.Index { return g.Indexes[i] }

func (g *Group) tablesInOrder() []*Table {
	if g.ordered != nil || g.root == nil {
		return g.ordered
	}
	var walk func(t *Table)
	walk = func(t *Table) {
		g.ordered = append(g.ordered, t)
		for _, c := range t.children {
			walk(c)
		}
	}
	walk(g.root)
	return g.ordered
}

// Table implements the cat.Table interface for testing purposes.
type Table struct {
	TabID   cat.StableID
	TabName string
	Columns []cat.Column
	Indexes []*Index
	Rows    int64

	group    *Group
	parent   *Table
	children []*Table
}

var _ cat.Table = &Table{}

func (tt *Table) String() string {
	return tt.TabName
}

// ID is part of the cat.DataSource interface.
func (tt *Table) ID() cat.StableID { return tt.TabID }

// Name is part of the cat.DataSource interface.
func (tt *Table) Name() string { return tt.TabName }

// ColumnCount is part of the cat.Table interface.
func (tt *Table) ColumnCount() int { return len(tt.Columns) }

// Column is part of the cat.Table interface.
func (tt *Table) Column(i int) *cat.Column { return &tt.Columns[i] }

// IndexCount is part of the cat.Table interface.
func (tt *Table) IndexCount() int { return len(tt.Indexes) }

// Index is part of the cat.Table interface.
func (tt *Table) Index(i int) cat.Index { return tt.Indexes[i] }

// Parent is part of the cat.Table interface.
func (tt *Table) Parent() cat.Table {
	if tt.parent == nil {
		return nil
	}
	return tt.parent
}

// Group is part of the cat.Table interface.
func (tt *Table) Group() cat.Group { return tt.group }

// RowCount is part of the cat.Table interface.
func (tt *Table) RowCount() int64 { return tt.Rows }

// FindOrdinal returns the ordinal of the column with the given name, or -1.
func (tt *Table) FindOrdinal(name string) int {
	for i := range tt.Columns {
		if tt.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Index implements the cat.Index interface for testing purposes.
type Index struct {
	IdxID     cat.StableID
	IndexName string
	Primary   bool
	Unique    bool
	Group     bool
	// Columns are the key columns followed by the stored columns.
	Columns []cat.IndexColumn
	KeyCols int

	table *Table
}

var _ cat.Index = &Index{}

// ID is part of the cat.DataSource interface.
func (ti *Index) ID() cat.StableID { return ti.IdxID }

// Name is part of the cat.DataSource interface.
func (ti *Index) Name() string { return ti.IndexName }

// Table is part of the cat.Index interface.
func (ti *Index) Table() cat.Table { return ti.table }

// IsGroupIndex is part of the cat.Index interface.
func (ti *Index) IsGroupIndex() bool { return ti.Group }

// IsPrimary is part of the cat.Index interface.
func (ti *Index) IsPrimary() bool { return ti.Primary }

// IsUnique is part of the cat.Index interface.
func (ti *Index) IsUnique() bool { return ti.Unique || ti.Primary }

// KeyColumnCount is part of the cat.Index interface.
func (ti *Index) KeyColumnCount() int { return ti.KeyCols }

// ColumnCount is part of the cat.Index interface.
func (ti *Index) ColumnCount() int { return len(ti.Columns) }

// Column is part of the cat.Index interface.
func (ti *Index) Column(i int) cat.IndexColumn { return ti.Columns[i] }

func (ti *Index) String() string {
	var sb strings.Builder
	switch {
	case ti.Primary:
		sb.WriteString("PRIMARY INDEX ")
	case ti.Group:
		sb.WriteString("GROUP INDEX ")
	case ti.Unique:
		sb.WriteString("UNIQUE INDEX ")
	default:
		sb.WriteString("INDEX ")
	}
	sb.WriteString(ti.IndexName)
	sb.WriteString(" (")
	for i := 0; i < ti.KeyCols; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ti.columnName(i))
		if ti.Columns[i].Descending {
			sb.WriteString(" DESC")
		}
	}
	sb.WriteString(")")
	if len(ti.Columns) > ti.KeyCols && !ti.Primary {
		stored := make([]string, 0, len(ti.Columns)-ti.KeyCols)
		for i := ti.KeyCols; i < len(ti.Columns); i++ {
			stored = append(stored, ti.columnName(i))
		}
		sort.Strings(stored)
		fmt.Fprintf(&sb, " STORING (%s)", strings.Join(stored, ", "))
	}
	return sb.String()
}

func (ti *Index) columnName(i int) string {
	c := ti.Columns[i]
	name := c.Table.Column(c.Ordinal).Name
	if ti.Group {
		return c.Table.Name() + "." + name
	}
	return name
}
