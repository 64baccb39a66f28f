// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/emicklei/dot"
)

// Dot renders the join graph in the Graphviz DOT language. Every edge of the
// graph becomes a box linked to the vertices of its syntactic eligibility
// set, or of its total eligibility set for edges without conditions.
func (jb *JoinOrderBuilder) Dot() string {
	g := dot.NewGraph(dot.Undirected)
	vertices := make([]dot.Node, len(jb.vertices))
	for i := range jb.vertices {
		vertices[i] = g.Node(fmt.Sprintf("v%d", i)).
			Attr("label", fmt.Sprintf("%d: %s", i, relationName(jb.md, jb.vertices[i])))
	}
	for i := range jb.edges {
		e := &jb.edges[i]
		label := e.op.joinType.String()
		if len(e.filters) > 0 {
			label += "\n" + opt.FormatFilters(jb.md, e.filters)
		}
		n := g.Node(fmt.Sprintf("e%d", i)).
			Attr("shape", "box").
			Attr("label", label)
		rels := e.ses
		if rels.Empty() {
			rels = e.tes
		}
		for _, v := range rels.Ordered() {
			g.Edge(n, vertices[v])
		}
	}
	return g.String()
}
