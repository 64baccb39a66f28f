// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/stretchr/testify/require"
)

const shop = `
groups:
- name: shop
  tables:
  - name: customers
    rows: 1000
    columns: [id int not null, name string, state string]
    indexes:
    - {name: customers_name_key, columns: [name desc], unique: true}
  - name: orders
    parent: customers
    rows: 5000
    columns: [id int, cust_id int, total float]
  group_indexes:
  - {name: state_total, columns: [customers.state, orders.total]}
`

func TestCatalogString(t *testing.T) {
	sc, err := LoadScenario([]byte(shop))
	require.NoError(t, err)

	expected := `
GROUP shop
  TABLE customers (1000 rows)
    PRIMARY INDEX customers_pkey (id)
    UNIQUE INDEX customers_name_key (name DESC) STORING (id)
    TABLE orders (5000 rows)
      PRIMARY INDEX orders_pkey (id)
  GROUP INDEX state_total (customers.state, orders.total) STORING (orders.id)
`
	require.Equal(t, strings.TrimLeft(expected, "\n"), sc.Catalog.String())

	idx, err := sc.Catalog.Index("orders", "state_total")
	require.NoError(t, err)
	require.True(t, idx.IsGroupIndex())
	require.Equal(t, "orders", idx.Table().Name())
	require.Equal(t, 2, idx.KeyColumnCount())
	require.Equal(t, 3, idx.ColumnCount())

	cust := sc.Catalog.Table("customers")
	require.False(t, cust.Column(0).Nullable)
	require.True(t, cust.Column(1).Nullable)
	require.Equal(t, 2, cust.FindOrdinal("state"))
	require.Equal(t, -1, cust.FindOrdinal("missing"))
}

func TestLoadScenarioErrors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		err  string
	}{
		{
			name: "unknown field",
			doc:  "groups: [{name: g, tablez: []}]",
			err:  "parsing scenario",
		},
		{
			name: "bad column",
			doc:  "groups: [{name: g, tables: [{name: t, columns: [id]}]}]",
			err:  `invalid column definition "id"`,
		},
		{
			name: "no columns",
			doc:  "groups: [{name: g, tables: [{name: t}]}]",
			err:  `table "t" has no columns`,
		},
		{
			name: "unknown parent",
			doc:  "groups: [{name: g, tables: [{name: t, parent: p, columns: [id int]}]}]",
			err:  `parent "p" of "t" is not in group "g"`,
		},
		{
			name: "two roots",
			doc: `groups: [{name: g, tables: [
  {name: a, columns: [id int]},
  {name: b, columns: [id int]}]}]`,
			err: `group "g" already has root "a"`,
		},
		{
			name: "unknown index column",
			doc:  "groups: [{name: g, tables: [{name: t, columns: [id int], indexes: [{name: i, columns: [x]}]}]}]",
			err:  `unknown column "x"`,
		},
		{
			name: "unqualified group index column",
			doc:  "groups: [{name: g, tables: [{name: t, columns: [id int]}], group_indexes: [{name: gi, columns: [id]}]}]",
			err:  "must be qualified",
		},
		{
			name: "row count for unknown table",
			doc:  "row_counts: {nope: 3}",
			err:  `row count for unknown table "nope"`,
		},
		{
			name: "stats for unknown index",
			doc:  "groups: [{name: g, tables: [{name: t, columns: [id int]}]}]\nstats: [{table: t, index: nope}]",
			err:  `unknown index "nope" on table "t"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario([]byte(tc.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestLoadScenarioSamples(t *testing.T) {
	sc, err := LoadScenario([]byte(shop + `
stats:
- table: customers
  index: customers_name_key
  samples: [ann, bob, bob, cid]
  buckets: 2
`))
	require.NoError(t, err)
	idx, err := sc.Catalog.Index("customers", "customers_name_key")
	require.NoError(t, err)
	st := sc.Stats.IndexStatistics(context.Background(), idx)
	require.NotNil(t, st)
	require.Equal(t, int64(4), st.RowCount)
	require.Equal(t, int64(4), st.SampledCount)
	h := st.Histogram(0)
	require.NotNil(t, h)
	require.InDelta(t, 4, h.RowCount(), 1e-9)
}

func TestBuildQuery(t *testing.T) {
	sc, err := LoadScenario([]byte(shop + `
query:
  from:
    join: semi
    left:
      tree:
        table: customers
        children: [{table: orders, join: left, on: orders.total > 5}]
    right:
      as: v
      values:
        columns: [code string]
        rows: [['CA'], ['WA']]
    on: customers.state = v.code
  where: customers.name = $1
  select: [customers.name, orders.total]
  order_by: [customers.name desc]
  limit: 3
`))
	require.NoError(t, err)
	q, err := sc.Catalog.BuildQuery(sc.Query)
	require.NoError(t, err)

	require.Equal(t, int64(3), q.Limit)
	require.Len(t, q.Ordering, 1)
	require.True(t, q.Ordering[0].Descending)
	require.Equal(t, "customers.name", q.Metadata.QualifiedAlias(q.Ordering[0].Col))
	require.Equal(t, 2, q.Output.Len())

	sel, ok := q.Input.(*logical.Select)
	require.True(t, ok, "%T", q.Input)
	require.Equal(t, "customers.name = $1", opt.FormatFilters(q.Metadata, sel.Filters))

	join, ok := sel.Input.(*logical.Join)
	require.True(t, ok, "%T", sel.Input)
	require.Equal(t, opt.SemiJoin, join.Type)
	require.Equal(t, `customers.state = v.code`, opt.FormatFilters(q.Metadata, join.On))

	tree, ok := join.Left.(*logical.TableGroupJoinTree)
	require.True(t, ok, "%T", join.Left)
	require.Equal(t, 2, tree.Tree.Len())
	child := tree.Tree.Node(1)
	require.Equal(t, opt.LeftJoin, child.JoinType)
	require.Len(t, child.JoinConditions, 1)

	vals, ok := join.Right.(*logical.ValuesSource)
	require.True(t, ok, "%T", join.Right)
	require.Len(t, vals.Rows, 2)

	require.Len(t, logical.Relations(q.Input), 2)
}

func TestBuildQueryErrors(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		err   string
	}{
		{
			name:  "no from",
			query: "select: [customers.id]",
			err:   "query has no FROM relation",
		},
		{
			name:  "unknown table",
			query: "from: {tree: {table: nope}}",
			err:   `unknown table "nope"`,
		},
		{
			name:  "not a child",
			query: "from: {tree: {table: orders, children: [{table: customers}]}}",
			err:   `table "customers" is not a child of "orders"`,
		},
		{
			name:  "root join condition",
			query: "from: {tree: {table: customers, on: customers.id = 1}}",
			err:   `root table "customers" cannot have join conditions`,
		},
		{
			name:  "semi join in tree",
			query: "from: {tree: {table: customers, children: [{table: orders, join: semi}]}}",
			err:   "invalid group join type",
		},
		{
			name:  "values without alias",
			query: "from: {values: {columns: [x int], rows: [[1]]}}",
			err:   "values relation needs an alias",
		},
		{
			name:  "negative limit",
			query: "from: {tree: {table: customers}}\n  limit: -1",
			err:   "invalid limit -1",
		},
		{
			name:  "bad filter",
			query: "from: {tree: {table: customers}}\n  where: customers.name = 'x",
			err:   "unterminated string",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := LoadScenario([]byte(shop + "query:\n  " + tc.query + "\n"))
			require.NoError(t, err)
			_, err = sc.Catalog.BuildQuery(sc.Query)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}
