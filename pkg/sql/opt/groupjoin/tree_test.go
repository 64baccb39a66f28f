// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package groupjoin

import (
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/stretchr/testify/require"
)

// testTree builds:
//
//	a(1)
//	├── b(2)
//	│   └── d(4) LEFT
//	└── c(3)
func testTree() *Tree {
	t := NewTree(nil)
	a := t.AddRoot(1)
	b := t.AddChild(a, 2, opt.InnerJoin, nil)
	t.AddChild(a, 3, opt.InnerJoin, nil)
	t.AddChild(b, 4, opt.LeftJoin, nil)
	return t
}

func TestTree(t *testing.T) {
	tr := testTree()
	const a, b, c, d = NodeIdx(0), NodeIdx(1), NodeIdx(2), NodeIdx(3)

	require.Equal(t, 4, tr.Len())
	require.Equal(t, a, tr.Root())
	require.Equal(t, []NodeIdx{b, c}, tr.Children(a))
	require.Empty(t, tr.Children(c))
	require.Equal(t, []NodeIdx{a, b, d}, tr.Path(d))
	require.Equal(t, []NodeIdx{b, d}, tr.PathBetween(b, d))
	require.Equal(t, []NodeIdx{d}, tr.PathBetween(d, d))

	require.True(t, tr.IsAncestor(a, d))
	require.False(t, tr.IsAncestor(c, d))
	require.False(t, tr.IsAncestor(d, d))

	require.True(t, tr.InnerPath(c))
	require.False(t, tr.InnerPath(d))

	n, ok := tr.Lookup(4)
	require.True(t, ok)
	require.Equal(t, d, n)
	_, ok = tr.Lookup(9)
	require.False(t, ok)
	require.Equal(t, opt.MakeTableSet(1, 2, 3, 4), tr.Tables())

	var order []opt.TableID
	tr.Walk(func(n NodeIdx) { order = append(order, tr.Node(n).Table) })
	require.Equal(t, []opt.TableID{1, 2, 4, 3}, order)

	require.Equal(t, NoNode, NewTree(nil).Root())
}

func TestTreeInvalid(t *testing.T) {
	tr := testTree()
	require.Panics(t, func() { tr.AddRoot(7) })
	require.Panics(t, func() { tr.AddChild(0, 3, opt.InnerJoin, nil) })
	require.Panics(t, func() { tr.AddChild(0, 8, opt.SemiJoin, nil) })
	require.Panics(t, func() { tr.PathBetween(2, 3) })
}

func TestMarkBranches(t *testing.T) {
	tr := testTree()
	const a, b, c, d = NodeIdx(0), NodeIdx(1), NodeIdx(2), NodeIdx(3)

	t.Run("two branches", func(t *testing.T) {
		m := MarkBranches(tr, opt.MakeTableSet(3, 4))
		require.Equal(t, "required,parent,branchpoint,pending", m.Flags(a).String())
		require.Equal(t, "required,parent,pending", m.Flags(b).String())
		require.Equal(t, "required,pending", m.Flags(c).String())
		require.Equal(t, "required,pending", m.Flags(d).String())
		require.Equal(t, opt.MakeTableSet(1, 2, 3, 4), m.RequiredTables())
		require.True(t, m.Has(a, Branchpoint|Pending))

		// The first child with pending work is followed.
		require.Equal(t, d, m.singleBranchPending(a))
		m.ClearPending(b)
		m.ClearPending(d)
		require.Equal(t, c, m.singleBranchPending(a))
		require.Equal(t, opt.MakeTableSet(1, 3), m.PendingTables())
		require.True(t, m.PendingBelow(a))
		require.False(t, m.PendingBelow(b))
	})

	t.Run("one branch", func(t *testing.T) {
		m := MarkBranches(tr, opt.MakeTableSet(4))
		require.False(t, m.Has(a, Branchpoint))
		require.True(t, m.Has(a, Parent|Required))
		require.Equal(t, Flags(0), m.Flags(c))
		require.Equal(t, "", m.Flags(c).String())
		require.Equal(t, opt.MakeTableSet(1, 2, 4), m.RequiredTables())
	})

	t.Run("root only", func(t *testing.T) {
		m := MarkBranches(tr, opt.MakeTableSet(1))
		require.Equal(t, "required,pending", m.Flags(a).String())
		require.False(t, m.PendingBelow(a))
		require.Equal(t, a, m.singleBranchPending(a))
	})
}
