// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/costing"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const customers = `
groups:
- name: cust
  tables:
  - name: customers
    rows: 1000
    columns: [id int, name string, state string]
    indexes:
    - {name: customers_state_idx, columns: [state]}
  - name: orders
    parent: customers
    rows: 5000
    columns: [id int, cust_id int, total float]
- name: other
  tables:
  - {name: regions, rows: 50, columns: [state string, region string]}
`

const customersStats = `
stats:
- table: customers
  index: customers_state_idx
  row_count: 1000
  histograms:
  - - {upper: AZ, eq: 100, lt: 0, distinct: 0}
    - {upper: CA, eq: 80, lt: 120, distinct: 3}
    - {upper: WA, eq: 200, lt: 500, distinct: 40}
`

func loadScenario(t *testing.T, doc string) *testcat.Scenario {
	t.Helper()
	sc, err := testcat.LoadScenario([]byte(doc))
	require.NoError(t, err)
	return sc
}

func index(t *testing.T, sc *testcat.Scenario, table, name string) cat.Index {
	t.Helper()
	idx, err := sc.Catalog.Index(table, name)
	require.NoError(t, err)
	return idx
}

func TestEstimateIndexScan(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	sc := loadScenario(t, customers+customersStats)
	m := costing.NewModel(nil, sc.Stats)
	idx := index(t, sc, "customers", "customers_state_idx")

	t.Run("equality", func(t *testing.T) {
		est, sel := m.EstimateIndexScan(ctx, idx,
			[]opt.ScalarExpr{&opt.Const{Value: tree.DString("CA")}}, nil, nil)
		require.InDelta(t, 0.08, sel.AsFloat(), 1e-9)
		require.InDelta(t, 80, est.RowCount, 1e-9)
		// One seek, then 80 rows of two columns.
		require.InDelta(t, 92, est.Cost, 1e-9)
	})

	t.Run("value between buckets", func(t *testing.T) {
		est, _ := m.EstimateIndexScan(ctx, idx,
			[]opt.ScalarExpr{&opt.Const{Value: tree.DString("BB")}}, nil, nil)
		require.Less(t, est.RowCount, 80.0)
	})

	t.Run("null never matches", func(t *testing.T) {
		est, sel := m.EstimateIndexScan(ctx, idx, []opt.ScalarExpr{&opt.Const{Value: tree.DNull}}, nil, nil)
		require.Equal(t, 0.0, sel.AsFloat())
		// Row counts are never estimated below one.
		require.InDelta(t, 1, est.RowCount, 1e-9)
	})

	t.Run("full scan", func(t *testing.T) {
		est, sel := m.EstimateIndexScan(ctx, idx, nil, nil, nil)
		require.Equal(t, 1.0, sel.AsFloat())
		require.InDelta(t, 1000, est.RowCount, 1e-9)
		require.InDelta(t, 4+1000*1.1, est.Cost, 1e-9)
	})

	t.Run("unique lookup", func(t *testing.T) {
		pk := index(t, sc, "customers", "customers_pkey")
		est, _ := m.EstimateIndexScan(ctx, pk,
			[]opt.ScalarExpr{&opt.Placeholder{Idx: 1}}, nil, nil)
		require.InDelta(t, 1, est.RowCount, 1e-9)
		require.InDelta(t, 4+1.15, est.Cost, 1e-9)
	})

	t.Run("range", func(t *testing.T) {
		est, _ := m.EstimateIndexScan(ctx, idx, nil,
			&costing.RangeBound{Value: &opt.Const{Value: tree.DString("CA")}, Inclusive: false}, nil)
		// Everything above CA: the WA bucket.
		require.InDelta(t, 700, est.RowCount, 1e-9)
	})
}

func TestEstimateIndexScanMissingStats(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	sc := loadScenario(t, customers)
	m := costing.NewModel(nil, sc.Stats)
	var missing []string
	m.OnMissingStats = func(idx cat.Index) { missing = append(missing, idx.Name()) }

	idx := index(t, sc, "customers", "customers_state_idx")
	est, sel := m.EstimateIndexScan(ctx, idx,
		[]opt.ScalarExpr{&opt.Const{Value: tree.DString("CA")}}, nil, nil)
	require.InDelta(t, 0.85, sel.AsFloat(), 1e-9)
	require.InDelta(t, 850, est.RowCount, 1e-9)
	require.Equal(t, []string{"customers_state_idx"}, missing)
}

func TestTableRowCountAndFanout(t *testing.T) {
	ctx := context.Background()
	sc := loadScenario(t, customers+`
row_counts:
  orders: 8000
`)
	m := costing.NewModel(nil, sc.Stats)
	cust, orders, regions := sc.Catalog.Table("customers"), sc.Catalog.Table("orders"), sc.Catalog.Table("regions")

	// The statistics store wins over the catalog.
	require.Equal(t, 8000.0, m.TableRowCount(ctx, orders))
	require.Equal(t, 1000.0, m.TableRowCount(ctx, cust))

	require.InDelta(t, 8, m.Fanout(ctx, cust, orders), 1e-9)
	require.InDelta(t, 1, m.Fanout(ctx, orders, cust), 1e-9)
	// Tables of different groups are not related.
	require.InDelta(t, 50, m.Fanout(ctx, cust, regions), 1e-9)
}

func TestConditionSelectivity(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	sc := loadScenario(t, customers+customersStats+`
query:
  from:
    join: inner
    left: {tree: {table: customers}}
    right: {tree: {table: regions}}
    on: customers.state = regions.state
  where: customers.state = 'CA' AND customers.state IN ('AZ', 'WA') AND customers.name = 'x'
`)
	q, err := sc.Catalog.BuildQuery(sc.Query)
	require.NoError(t, err)
	m := costing.NewModel(nil, sc.Stats)

	sel := q.Input.(*logical.Select)
	join := sel.Input.(*logical.Join)
	require.Len(t, join.On, 1)
	require.Len(t, sel.Filters, 3)

	// Equality joins use the larger distinct count. The histogram has 46
	// distinct values of state and regions has no statistics.
	on := m.ConditionSelectivity(ctx, q.Metadata, join.On[0])
	require.InDelta(t, 1.0/46, on.AsFloat(), 1e-9)

	eq := m.ConditionSelectivity(ctx, q.Metadata, sel.Filters[0])
	require.InDelta(t, 0.08, eq.AsFloat(), 1e-9)

	in := m.ConditionSelectivity(ctx, q.Metadata, sel.Filters[1])
	require.InDelta(t, 0.3, in.AsFloat(), 1e-9)

	// No statistics on name.
	noStats := m.ConditionSelectivity(ctx, q.Metadata, sel.Filters[2])
	require.InDelta(t, 0.85, noStats.AsFloat(), 1e-9)

	all := m.JoinConditionSelectivity(ctx, q.Metadata, sel.Filters)
	require.InDelta(t, 0.08*0.3*0.85, all.AsFloat(), 1e-9)
}
