// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package groupjoin

import (
	"strings"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
)

// Flags describe the role of a node in the plan being assembled.
type Flags uint8

const (
	// Required means the node's rows are part of the result, either because
	// its columns are needed or because it connects needed descendants to
	// the root.
	Required Flags = 1 << iota
	// Parent means at least one child is active.
	Parent
	// Branchpoint means at least two children are active.
	Branchpoint
	// Pending means the node's rows have not been fetched yet.
	Pending
)

func (f Flags) String() string {
	var parts []string
	for _, p := range []struct {
		f    Flags
		name string
	}{{Required, "required"}, {Parent, "parent"}, {Branchpoint, "branchpoint"}, {Pending, "pending"}} {
		if f&p.f != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, ",")
}

// Marking holds the flags of the nodes of one tree for one assembly. It is
// kept apart from the tree so the tree can be marked again, independently.
type Marking struct {
	tree  *Tree
	flags []Flags
}

// MarkBranches computes the flags of every node in one post-order pass. A
// node is active if it has any flag set.
func MarkBranches(t *Tree, required opt.TableSet) *Marking {
	m := &Marking{tree: t, flags: make([]Flags, t.Len())}
	if root := t.Root(); root != NoNode {
		m.mark(root, required)
	}
	return m
}

func (m *Marking) mark(n NodeIdx, required opt.TableSet) bool {
	active := 0
	for c := m.tree.nodes[n].FirstChild; c != NoNode; c = m.tree.nodes[c].NextSibling {
		if m.mark(c, required) {
			active++
		}
	}
	var f Flags
	if required.Contains(int(m.tree.nodes[n].Table)) {
		f |= Required
	}
	if active >= 1 {
		f |= Parent | Required
	}
	if active >= 2 {
		f |= Branchpoint
	}
	if f&Required != 0 {
		f |= Pending
	}
	m.flags[n] = f
	return f != 0
}

// Flags returns the flags of n.
func (m *Marking) Flags(n NodeIdx) Flags { return m.flags[n] }

// Has returns true if n has all of the given flags.
func (m *Marking) Has(n NodeIdx, f Flags) bool { return m.flags[n]&f == f }

// IsPending returns true if n still needs to be fetched.
func (m *Marking) IsPending(n NodeIdx) bool { return m.flags[n]&Pending != 0 }

// ClearPending records that n has been fetched.
func (m *Marking) ClearPending(n NodeIdx) { m.flags[n] &^= Pending }

// PendingBelow returns true if any strict descendant of n is pending.
func (m *Marking) PendingBelow(n NodeIdx) bool {
	for c := m.tree.nodes[n].FirstChild; c != NoNode; c = m.tree.nodes[c].NextSibling {
		if m.IsPending(c) || m.PendingBelow(c) {
			return true
		}
	}
	return false
}

// PendingTables returns the tables of nodes that are still pending.
func (m *Marking) PendingTables() opt.TableSet {
	var s opt.TableSet
	for i, f := range m.flags {
		if f&Pending != 0 {
			s.Add(int(m.tree.nodes[i].Table))
		}
	}
	return s
}

// RequiredTables returns the tables of required nodes.
func (m *Marking) RequiredTables() opt.TableSet {
	var s opt.TableSet
	for i, f := range m.flags {
		if f&Required != 0 {
			s.Add(int(m.tree.nodes[i].Table))
		}
	}
	return s
}

// singleBranchPending walks down from n, always into the first child with
// pending work, and returns the deepest node reached.
func (m *Marking) singleBranchPending(n NodeIdx) NodeIdx {
	for {
		next := NoNode
		for c := m.tree.nodes[n].FirstChild; c != NoNode; c = m.tree.nodes[c].NextSibling {
			if m.IsPending(c) || m.PendingBelow(c) {
				next = c
				break
			}
		}
		if next == NoNode {
			return n
		}
		n = next
	}
}
