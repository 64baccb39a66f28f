// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package groupjoin_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/groupjoin"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const shop = `
groups:
- name: shop
  tables:
  - {name: customers, rows: 1000, columns: [id int, name string]}
  - {name: orders, parent: customers, rows: 5000, columns: [id int, cust_id int, total float]}
  - {name: addresses, parent: customers, rows: 2000, columns: [id int, cust_id int, city string]}
`

type fixture struct {
	md   *opt.Metadata
	rel  *logical.TableGroupJoinTree
	asm  *groupjoin.Assembler
	ids  map[string]opt.TableID
	scen *testcat.Scenario
}

func newFixture(t *testing.T, query string) *fixture {
	t.Helper()
	return loadFixture(t, shop+query)
}

// loadFixture loads a scenario whose query is a single table-group relation.
func loadFixture(t *testing.T, doc string) *fixture {
	t.Helper()
	sc, err := testcat.LoadScenario([]byte(doc))
	require.NoError(t, err)
	q, err := sc.Catalog.BuildQuery(sc.Query)
	require.NoError(t, err)
	rels := logical.Relations(q.Input)
	require.Len(t, rels, 1)
	f := &fixture{
		md:   q.Metadata,
		rel:  rels[0].(*logical.TableGroupJoinTree),
		asm:  &groupjoin.Assembler{Model: costing.NewModel(nil, sc.Stats), Metadata: q.Metadata},
		ids:  make(map[string]opt.TableID),
		scen: sc,
	}
	f.rel.Tree.Walk(func(n groupjoin.NodeIdx) {
		tab := f.rel.Tree.Node(n).Table
		f.ids[q.Metadata.TableMeta(tab).Alias] = tab
	})
	return f
}

func (f *fixture) input() groupjoin.Input {
	return groupjoin.Input{
		Tree:     f.rel.Tree,
		Required: f.rel.RequiredTables(f.md),
		Filters:  f.rel.Filters,
	}
}

// pkScan returns a full scan of the primary index of the given table that
// covers only that table.
func (f *fixture) pkScan(t *testing.T, table string) *physical.IndexScan {
	idx, err := f.scen.Catalog.Index(table, table+"_pkey")
	require.NoError(t, err)
	s := &physical.IndexScan{Index: idx, Table: f.ids[table], Covered: opt.MakeTableSet(f.ids[table])}
	est, _ := f.asm.Model.EstimateIndexScan(context.Background(), idx, nil, nil, nil)
	physical.SetEstimate(s, est)
	return s
}

func TestAssembleCoveringScan(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from: {tree: {table: customers}}
`)
	scan := f.pkScan(t, "customers")
	res, mark := f.asm.Assemble(context.Background(), f.input(), scan)
	require.Same(t, scan, res)
	require.True(t, mark.PendingTables().Empty())
}

func TestAssembleBranchLookup(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from: {tree: {table: customers, children: [{table: orders}]}}
`)
	res, mark := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "customers"))
	require.True(t, mark.PendingTables().Empty())

	flat, ok := res.(*physical.Flatten)
	require.True(t, ok, "%T", res)
	require.Equal(t, []opt.TableID{f.ids["customers"], f.ids["orders"]}, flat.Tables)
	require.Equal(t, []opt.JoinType{opt.InnerJoin}, flat.JoinTypes)

	lookup, ok := flat.Input.(*physical.BranchLookup)
	require.True(t, ok, "%T", flat.Input)
	require.Equal(t, f.ids["customers"], lookup.From)
	require.Equal(t, f.ids["orders"], lookup.Branch)
	require.False(t, lookup.Nested)

	// Five orders per customer.
	require.InDelta(t, 5000, physical.Estimate(lookup).RowCount, 1e-9)
	require.InDelta(t, 5000, physical.Estimate(flat).RowCount, 1e-9)
	require.Greater(t, physical.Estimate(flat).Cost, physical.Estimate(lookup).Cost)
}

func TestAssembleAncestorLookup(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from: {tree: {table: customers, children: [{table: orders}]}}
`)
	res, _ := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "orders"))
	flat, ok := res.(*physical.Flatten)
	require.True(t, ok, "%T", res)
	lookup, ok := flat.Input.(*physical.AncestorLookup)
	require.True(t, ok, "%T", flat.Input)
	require.Equal(t, f.ids["orders"], lookup.From)
	require.Equal(t, []opt.TableID{f.ids["customers"]}, lookup.Tables)
	require.InDelta(t, 5000, physical.Estimate(flat).RowCount, 1e-9)
}

func TestAssembleGroupScanWithSideBranch(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from:
    tree:
      table: customers
      children: [{table: orders}, {table: addresses}]
`)
	gs := f.asm.NewGroupScan(context.Background(), f.rel.Tree)
	require.InDelta(t, 8000, physical.Estimate(gs).RowCount, 1e-9)

	res, mark := f.asm.Assemble(context.Background(), f.input(), gs)
	require.True(t, mark.PendingTables().Empty())

	prod, ok := res.(*physical.Product)
	require.True(t, ok, "%T", res)
	require.Equal(t, f.ids["customers"], prod.Ancestor)
	require.Len(t, prod.Inputs, 2)

	// The main path runs through the first child.
	flat, ok := prod.Inputs[0].(*physical.Flatten)
	require.True(t, ok, "%T", prod.Inputs[0])
	scan, ok := flat.Input.(*physical.GroupScan)
	require.True(t, ok, "%T", flat.Input)
	require.Equal(t, []opt.TableID{f.ids["customers"], f.ids["orders"]}, scan.Tables)

	side, ok := prod.Inputs[1].(*physical.BranchLookup)
	require.True(t, ok, "%T", prod.Inputs[1])
	require.True(t, side.Nested)
	require.Equal(t, f.ids["addresses"], side.Branch)
	require.Nil(t, side.Input)

	require.ElementsMatch(t,
		[]opt.TableID{f.ids["customers"], f.ids["orders"], f.ids["addresses"]},
		physical.OutputTables(res))
}

func TestAssembleFilterPlacement(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from:
    tree:
      table: customers
      children: [{table: orders, join: left}]
    where: customers.name = 'x' AND orders.cust_id > 10
`)
	res, _ := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "customers"))

	// The filter on the null-supplying orders stays above the flatten.
	above, ok := res.(*physical.Select)
	require.True(t, ok, "%T", res)
	require.Equal(t, "orders.cust_id > 10", opt.FormatFilters(f.md, above.Filters))

	flat, ok := above.Input.(*physical.Flatten)
	require.True(t, ok, "%T", above.Input)
	require.Equal(t, []opt.JoinType{opt.LeftJoin}, flat.JoinTypes)

	// The filter on customers is applied before the flatten.
	below, ok := flat.Input.(*physical.Select)
	require.True(t, ok, "%T", flat.Input)
	require.Equal(t, "customers.name = \"x\"", opt.FormatFilters(f.md, below.Filters))
}

func TestAssembleIndexScanOnChildWithSiblingBranch(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t, `
query:
  from:
    tree:
      table: customers
      children: [{table: orders}, {table: addresses}]
`)
	res, mark := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "orders"))
	require.True(t, mark.PendingTables().Empty())

	prod, ok := res.(*physical.Product)
	require.True(t, ok, "%T", res)
	require.Equal(t, f.ids["customers"], prod.Ancestor)
	require.Len(t, prod.Inputs, 2)

	flat, ok := prod.Inputs[0].(*physical.Flatten)
	require.True(t, ok, "%T", prod.Inputs[0])
	require.Equal(t, []opt.TableID{f.ids["customers"], f.ids["orders"]}, flat.Tables)
	lookup, ok := flat.Input.(*physical.AncestorLookup)
	require.True(t, ok, "%T", flat.Input)
	require.Equal(t, f.ids["orders"], lookup.From)
	require.Equal(t, []opt.TableID{f.ids["customers"]}, lookup.Tables)

	side, ok := prod.Inputs[1].(*physical.BranchLookup)
	require.True(t, ok, "%T", prod.Inputs[1])
	require.True(t, side.Nested)
	require.Equal(t, f.ids["customers"], side.From)
	require.Equal(t, f.ids["addresses"], side.Branch)

	require.ElementsMatch(t,
		[]opt.TableID{f.ids["customers"], f.ids["orders"], f.ids["addresses"]},
		physical.OutputTables(res))
}

// The anchor of the scans below is a table the query does not need.
const siblings = `
groups:
- name: g
  tables:
  - {name: a, rows: 100, columns: [id int, x int]}
  - {name: b, parent: a, rows: 200, columns: [id int, a_id int, y int]}
  - {name: c, parent: a, rows: 300, columns: [id int, a_id int, z int]}
  - {name: d, parent: b, rows: 400, columns: [id int, b_id int, w int]}
`

func TestAssembleSideBranchShortcut(t *testing.T) {
	defer log.Scope(t).Close(t)

	t.Run("ancestors then branch", func(t *testing.T) {
		f := loadFixture(t, siblings+`
query:
  from: {tree: {table: a, children: [{table: b}, {table: c}]}}
  select: [c.z]
`)
		res, mark := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "b"))
		require.True(t, mark.PendingTables().Empty())

		flat, ok := res.(*physical.Flatten)
		require.True(t, ok, "%T", res)
		require.Equal(t, []opt.TableID{f.ids["a"], f.ids["c"]}, flat.Tables)
		branch, ok := flat.Input.(*physical.BranchLookup)
		require.True(t, ok, "%T", flat.Input)
		require.False(t, branch.Nested)
		require.Equal(t, f.ids["a"], branch.From)
		require.Equal(t, f.ids["c"], branch.Branch)
		anc, ok := branch.Input.(*physical.AncestorLookup)
		require.True(t, ok, "%T", branch.Input)
		require.Equal(t, f.ids["b"], anc.From)
		require.Equal(t, []opt.TableID{f.ids["a"]}, anc.Tables)
	})

	t.Run("branch only", func(t *testing.T) {
		f := loadFixture(t, siblings+`
query:
  from: {tree: {table: a, children: [{table: b}, {table: c}]}}
  select: [a.x, c.z]
`)
		// The scan of b also returns the columns of a.
		scan := f.pkScan(t, "b")
		scan.Covered = opt.MakeTableSet(f.ids["a"], f.ids["b"])
		res, mark := f.asm.Assemble(context.Background(), f.input(), scan)
		require.True(t, mark.PendingTables().Empty())

		flat, ok := res.(*physical.Flatten)
		require.True(t, ok, "%T", res)
		require.Equal(t, []opt.TableID{f.ids["a"], f.ids["c"]}, flat.Tables)
		branch, ok := flat.Input.(*physical.BranchLookup)
		require.True(t, ok, "%T", flat.Input)
		require.Equal(t, f.ids["b"], branch.From)
		require.Equal(t, f.ids["c"], branch.Branch)
		require.Same(t, scan, branch.Input)
		require.Empty(t, collectAncestorLookups(res))
	})

	t.Run("required table between anchor and branchpoint", func(t *testing.T) {
		f := loadFixture(t, siblings+`
query:
  from:
    tree:
      table: a
      children: [{table: b, children: [{table: d}]}, {table: c}]
  select: [b.y, c.z]
`)
		res, mark := f.asm.Assemble(context.Background(), f.input(), f.pkScan(t, "d"))
		require.True(t, mark.PendingTables().Empty())

		prod, ok := res.(*physical.Product)
		require.True(t, ok, "%T", res)
		require.Equal(t, f.ids["a"], prod.Ancestor)
		require.Len(t, prod.Inputs, 2)

		flat, ok := prod.Inputs[0].(*physical.Flatten)
		require.True(t, ok, "%T", prod.Inputs[0])
		require.Equal(t, []opt.TableID{f.ids["a"], f.ids["b"]}, flat.Tables)
		anc, ok := flat.Input.(*physical.AncestorLookup)
		require.True(t, ok, "%T", flat.Input)
		require.Equal(t, f.ids["d"], anc.From)
		require.Equal(t, []opt.TableID{f.ids["a"], f.ids["b"]}, anc.Tables)

		side, ok := prod.Inputs[1].(*physical.BranchLookup)
		require.True(t, ok, "%T", prod.Inputs[1])
		require.True(t, side.Nested)
		require.Equal(t, f.ids["c"], side.Branch)

		require.ElementsMatch(t,
			[]opt.TableID{f.ids["a"], f.ids["b"], f.ids["c"]},
			physical.OutputTables(res))
	})
}

func collectAncestorLookups(n physical.Node) []*physical.AncestorLookup {
	var res []*physical.AncestorLookup
	physical.Walk(n, func(c physical.Node) bool {
		if l, ok := c.(*physical.AncestorLookup); ok {
			res = append(res, l)
		}
		return true
	})
	return res
}

func TestAssembleIntersectScan(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := loadFixture(t, `
groups:
- name: g
  tables:
  - name: t
    rows: 10000
    columns: [id int, x int, y int, z int]
    indexes:
    - {name: t_x_idx, columns: [x]}
    - {name: t_y_idx, columns: [y]}
query:
  from: {tree: {table: t}}
  select: [t.z]
`)
	ctx := context.Background()
	scan := func(name string, rows float64) *physical.IndexScan {
		idx, err := f.scen.Catalog.Index("t", name)
		require.NoError(t, err)
		s := &physical.IndexScan{Index: idx, Table: f.ids["t"]}
		physical.SetEstimate(s, costing.CostEstimate{RowCount: rows, Cost: rows})
		return s
	}
	x, y := scan("t_x_idx", 10), scan("t_y_idx", 200)
	est, skip := f.asm.Model.EstimateIntersection(
		physical.Estimate(x), physical.Estimate(y), 10000, 10)
	require.True(t, skip)
	is := &physical.IntersectScan{Inputs: []*physical.IndexScan{x, y}, SkipScan: skip}
	physical.SetEstimate(is, est)

	res, mark := f.asm.Assemble(ctx, f.input(), is)
	require.True(t, mark.PendingTables().Empty())

	// The intersection only yields row keys; the rows are then fetched.
	lookup, ok := res.(*physical.AncestorLookup)
	require.True(t, ok, "%T", res)
	require.Same(t, is, lookup.Input)
	require.Equal(t, f.ids["t"], lookup.From)
	require.Equal(t, []opt.TableID{f.ids["t"]}, lookup.Tables)
	require.InDelta(t, 0.2, physical.Estimate(res).RowCount, 1e-9)
	require.InDelta(t, est.Cost+0.2*f.asm.Model.Units.RandomAccess, physical.Estimate(res).Cost, 1e-9)
	require.Equal(t, []opt.TableID{f.ids["t"]}, physical.OutputTables(res))
}
