// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package groupjoin models the tables of one storage group that take part in
// a query, and turns a chosen scan of the group into a plan that rebuilds
// flat rows from hierarchically stored ones.
package groupjoin

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
)

// NodeIdx is the position of a node in its Tree.
type NodeIdx int32

// NoNode is the index used for missing links.
const NoNode NodeIdx = -1

// Node is a table of the group. Children form a sibling chain in the order
// they were added.
type Node struct {
	Table       opt.TableID
	Parent      NodeIdx
	FirstChild  NodeIdx
	NextSibling NodeIdx
	// JoinType is the join between the parent and this table; it is
	// InnerJoin for the root.
	JoinType opt.JoinType
	// JoinConditions are conditions of the join with the parent beyond the
	// group relationship.
	JoinConditions opt.FiltersExpr
}

// Tree is a tree of the tables of one storage group, stored as an arena.
// The first node added is the root.
type Tree struct {
	Group cat.Group

	nodes   []Node
	byTable map[opt.TableID]NodeIdx
}

// NewTree returns an empty tree for the given group.
func NewTree(group cat.Group) *Tree {
	return &Tree{Group: group, byTable: make(map[opt.TableID]NodeIdx)}
}

// AddRoot adds the root table.
func (t *Tree) AddRoot(tab opt.TableID) NodeIdx {
	if len(t.nodes) != 0 {
		panic(errors.AssertionFailedf("tree already has a root"))
	}
	return t.add(Node{Table: tab, Parent: NoNode, JoinType: opt.InnerJoin})
}

// AddChild adds tab below parent, joined with the given type and extra
// conditions. RIGHT joins are kept as given; the flatten respects them.
func (t *Tree) AddChild(
	parent NodeIdx, tab opt.TableID, joinType opt.JoinType, conds opt.FiltersExpr,
) NodeIdx {
	switch joinType {
	case opt.InnerJoin, opt.LeftJoin, opt.RightJoin, opt.FullJoin:
	default:
		panic(errors.AssertionFailedf("invalid group join type %s", joinType))
	}
	idx := t.add(Node{Table: tab, Parent: parent, JoinType: joinType, JoinConditions: conds})
	p := &t.nodes[parent]
	if p.FirstChild == NoNode {
		p.FirstChild = idx
		return idx
	}
	c := p.FirstChild
	for t.nodes[c].NextSibling != NoNode {
		c = t.nodes[c].NextSibling
	}
	t.nodes[c].NextSibling = idx
	return idx
}

func (t *Tree) add(n Node) NodeIdx {
	if _, ok := t.byTable[n.Table]; ok {
		panic(errors.AssertionFailedf("table %d is already in the tree", n.Table))
	}
	n.FirstChild, n.NextSibling = NoNode, NoNode
	idx := NodeIdx(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.byTable[n.Table] = idx
	return idx
}

// Root returns the root node, or NoNode for an empty tree.
func (t *Tree) Root() NodeIdx {
	if len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given index.
func (t *Tree) Node(i NodeIdx) *Node { return &t.nodes[i] }

// Lookup returns the node of the given table.
func (t *Tree) Lookup(tab opt.TableID) (NodeIdx, bool) {
	i, ok := t.byTable[tab]
	return i, ok
}

// Tables returns the set of tables in the tree.
func (t *Tree) Tables() opt.TableSet {
	var s opt.TableSet
	for i := range t.nodes {
		s.Add(int(t.nodes[i].Table))
	}
	return s
}

// Children returns the children of n in sibling order.
func (t *Tree) Children(n NodeIdx) []NodeIdx {
	var res []NodeIdx
	for c := t.nodes[n].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		res = append(res, c)
	}
	return res
}

// Path returns the nodes from the root down to n.
func (t *Tree) Path(n NodeIdx) []NodeIdx {
	var res []NodeIdx
	for ; n != NoNode; n = t.nodes[n].Parent {
		res = append(res, n)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// PathBetween returns the nodes from anc down to n, both included. anc must
// be n or an ancestor of n.
func (t *Tree) PathBetween(anc, n NodeIdx) []NodeIdx {
	path := t.Path(n)
	for i, p := range path {
		if p == anc {
			return path[i:]
		}
	}
	panic(errors.AssertionFailedf("node %d is not an ancestor of %d", anc, n))
}

// IsAncestor returns true if anc is a strict ancestor of n.
func (t *Tree) IsAncestor(anc, n NodeIdx) bool {
	for p := t.nodes[n].Parent; p != NoNode; p = t.nodes[p].Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// InnerPath returns true if every join on the path from the root to n is an
// inner join.
func (t *Tree) InnerPath(n NodeIdx) bool {
	for ; n != NoNode; n = t.nodes[n].Parent {
		if t.nodes[n].JoinType != opt.InnerJoin {
			return false
		}
	}
	return true
}

// Walk calls fn on every node in pre-order.
func (t *Tree) Walk(fn func(NodeIdx)) {
	if len(t.nodes) > 0 {
		t.walk(0, fn)
	}
}

func (t *Tree) walk(n NodeIdx, fn func(NodeIdx)) {
	fn(n)
	for c := t.nodes[n].FirstChild; c != NoNode; c = t.nodes[c].NextSibling {
		t.walk(c, fn)
	}
}
