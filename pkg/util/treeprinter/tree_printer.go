// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package treeprinter renders hierarchical output such as plan trees:
//
//	root
//	 ├── child 1
//	 │    └── grandchild
//	 └── child 2
package treeprinter

import (
	"fmt"
	"strings"
)

const (
	edgeMid  = " ├── "
	edgeLast = " └── "
	bar      = " │   "
	blank    = "     "
)

// Node is a handle associated with a specific depth in a tree.
type Node struct {
	tree *Tree
	idx  int
}

// Tree is the top-level container for a printed tree.
type Tree struct {
	nodes []node
}

type node struct {
	lines    []string
	children []int
}

// New creates a tree printer and returns a sentinel node reference which
// should be used to add the root. Only one root is allowed.
func New() Node {
	t := &Tree{nodes: []node{{}}}
	return Node{tree: t, idx: 0}
}

// Child adds a node as a child of the given node.
func (n Node) Child(text string) Node {
	t := n.tree
	t.nodes = append(t.nodes, node{lines: strings.Split(text, "\n")})
	idx := len(t.nodes) - 1
	t.nodes[n.idx].children = append(t.nodes[n.idx].children, idx)
	return Node{tree: t, idx: idx}
}

// Childf adds a node as a child of the given node.
func (n Node) Childf(format string, args ...interface{}) Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// AddLine adds a new line to a node without an edge.
func (n Node) AddLine(text string) {
	t := n.tree
	t.nodes[n.idx].lines = append(t.nodes[n.idx].lines, text)
}

// String returns the rendered tree.
func (n Node) String() string {
	var sb strings.Builder
	t := n.tree
	for _, c := range t.nodes[0].children {
		t.render(&sb, c, "", "", "")
	}
	return sb.String()
}

func (t *Tree) render(sb *strings.Builder, idx int, first, rest, childPrefix string) {
	nd := &t.nodes[idx]
	for i, line := range nd.lines {
		if i == 0 {
			sb.WriteString(first)
		} else {
			sb.WriteString(rest)
			if len(nd.children) > 0 {
				sb.WriteString(bar)
			} else {
				sb.WriteString(blank)
			}
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for i, c := range nd.children {
		if i == len(nd.children)-1 {
			t.render(sb, c, childPrefix+edgeLast, childPrefix+blank, childPrefix+blank)
		} else {
			t.render(sb, c, childPrefix+edgeMid, childPrefix+bar, childPrefix+bar)
		}
	}
}
