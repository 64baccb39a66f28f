// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt_test

import (
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
)

func TestOrdering(t *testing.T) {
	sc, err := testcat.LoadScenario([]byte(`
groups:
- name: g
  tables:
  - {name: a, columns: [x int, y string]}
`))
	if err != nil {
		t.Fatal(err)
	}
	md := opt.NewMetadata()
	tab := md.AddTable(sc.Catalog.Table("a"), "a")
	x, _ := md.ColumnByName(tab, "x")
	y, _ := md.ColumnByName(tab, "y")

	ordering := opt.Ordering{{Col: x}, {Col: y, Descending: true}}

	if ordering.Empty() {
		t.Error("ordering not empty")
	}

	if !ordering.ColSet().Equals(opt.MakeColSet(x, y)) {
		t.Error("ordering colset should equal the ordering columns")
	}

	if !(opt.Ordering{}).ColSet().Equals(opt.ColSet{}) {
		t.Error("empty ordering should have empty column set")
	}

	if s := ordering.Format(md); s != "+a.x,-a.y" {
		t.Errorf("unexpected ordering format %q", s)
	}

	if s := (opt.Ordering{}).Format(md); s != "" {
		t.Errorf("unexpected empty ordering format %q", s)
	}
}
