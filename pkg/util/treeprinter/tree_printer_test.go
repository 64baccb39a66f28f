// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"strings"
	"testing"
)

func TestTreePrinter(t *testing.T) {
	n := New()
	r := n.Child("root")
	r.AddLine("root line")
	c1 := r.Child("child 1")
	c1.Child("grandchild 1")
	c1.Childf("grandchild %d", 2)
	r.Child("child 2")

	exp := `
root
 │   root line
 ├── child 1
 │    ├── grandchild 1
 │    └── grandchild 2
 └── child 2
`
	exp = strings.TrimLeft(exp, "\n")
	if res := n.String(); res != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, res)
	}
}

func TestTreePrinterMultiLine(t *testing.T) {
	n := New()
	r := n.Child("root")
	a := r.Child("a\nmore a")
	a.Child("leaf")
	r.Child("b")

	exp := `
root
 ├── a
 │    │   more a
 │    └── leaf
 └── b
`
	exp = strings.TrimLeft(exp, "\n")
	if res := n.String(); res != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, res)
	}
}
