// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/physical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/xform"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const customersGroup = `
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

const customersInCA = `
query:
  from:
    tree:
      table: customers
      children:
      - table: orders
  where: state = 'CA'
  select: [customers.name, orders.total]
`

const itemsAndPromo = `
groups:
- name: inventory
  tables:
  - name: items
    rows: 10000
    columns: [id int, code int]
    indexes:
    - {name: items_code_idx, columns: [code]}
- name: marketing
  tables:
  - name: promo
    rows: 10
    columns: [id int, code int]
stats:
- table: items
  index: items_code_idx
  row_count: 10000
  histograms:
  - - {upper: "1", eq: 10, lt: 0, distinct: 0}
    - {upper: "1000", eq: 10, lt: 9980, distinct: 998}
`

// TestOptimizer runs the data-driven plan tests in testdata.
func TestOptimizer(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		tester := testutils.NewOptTester()
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			return tester.RunCommand(t, d)
		})
	})
}

func optimize(t *testing.T, sc *testcat.Scenario, sv *settings.Values) (physical.Node, *logical.Query) {
	t.Helper()
	q := testutils.BuildQuery(t, sc)
	n, err := xform.NewOptimizer(sv, sc.Stats).Optimize(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, n)
	return n, q
}

// collect returns the nodes of the plan with the given type, in pre-order.
func collect[T physical.Node](n physical.Node) []T {
	var res []T
	physical.Walk(n, func(c physical.Node) bool {
		if t, ok := c.(T); ok {
			res = append(res, t)
		}
		return true
	})
	return res
}

func TestOptimizeRestrictedIndexWithBranch(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, customersGroup+customersStats+customersInCA)
	n, q := optimize(t, sc, nil)

	scans := collect[*physical.IndexScan](n)
	require.Len(t, scans, 1)
	require.Equal(t, "customers_state_idx", scans[0].Index.Name())
	require.Len(t, scans[0].Equalities, 1)
	require.Len(t, scans[0].Consumed, 1)
	require.Empty(t, collect[*physical.GroupScan](n))

	lookups := collect[*physical.BranchLookup](n)
	require.Len(t, lookups, 1)
	require.False(t, lookups[0].Nested)
	require.Len(t, lookups[0].Tables, 2)
	require.Equal(t, "customers", q.Metadata.Table(lookups[0].From).Name())

	flatten, ok := n.(*physical.Flatten)
	require.True(t, ok, "expected flatten at the root, got %T", n)
	require.Equal(t, []opt.JoinType{opt.InnerJoin}, flatten.JoinTypes)

	// 80 rows from the index, 5 orders per customer.
	est := physical.Estimate(n)
	require.InDelta(t, 400, est.RowCount, 1e-9)
	require.InDelta(t, 892, est.Cost, 1e-9)
}

func TestOptimizeWithoutStatsPrefersGroupScan(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, customersGroup+customersInCA)
	n, _ := optimize(t, sc, nil)
	require.Len(t, collect[*physical.GroupScan](n), 1)
	require.Empty(t, collect[*physical.IndexScan](n))
	// The filter on state is applied to the stream of the group scan.
	require.NotEmpty(t, collect[*physical.Select](n))
}

func TestOptimizeCoveringScanSkipsChildren(t *testing.T) {
	defer log.Scope(t).Close(t)

	const query = `
query:
  from:
    tree:
      table: customers
      children:
      - table: orders
        join: left
  select: [customers.name]
`
	sc := testutils.LoadScenario(t, customersGroup+query)
	n, q := optimize(t, sc, nil)

	scan, ok := n.(*physical.IndexScan)
	require.True(t, ok, "expected a bare index scan, got %T", n)
	require.Equal(t, "customers_pkey", scan.Index.Name())
	for _, tab := range physical.OutputTables(n) {
		require.NotEqual(t, "orders", q.Metadata.Table(tab).Name())
	}
	require.InDelta(t, 1154, physical.Estimate(n).Cost, 1e-9)
}

func TestOptimizeSiblingBranchesUseProduct(t *testing.T) {
	defer log.Scope(t).Close(t)

	const doc = `
groups:
- name: g
  tables:
  - {name: a, rows: 100, columns: [id int, x int]}
  - {name: b, parent: a, rows: 200, columns: [id int, a_id int, y int]}
  - {name: c, parent: a, rows: 300, columns: [id int, a_id int, z int]}
query:
  from:
    tree:
      table: a
      children:
      - table: b
      - table: c
  select: [a.x, b.y, c.z]
`
	sc := testutils.LoadScenario(t, doc)
	n, q := optimize(t, sc, nil)

	products := collect[*physical.Product](n)
	require.Len(t, products, 1)
	require.Equal(t, "a", q.Metadata.Table(products[0].Ancestor).Name())
	require.Len(t, products[0].Inputs, 2)

	tables := physical.OutputTables(n)
	seen := make(map[string]int)
	for _, tab := range tables {
		seen[q.Metadata.Table(tab).Name()]++
	}
	require.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

func TestOptimizeDeterministic(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, customersGroup+customersStats+customersInCA)
	var first string
	for i := 0; i < 5; i++ {
		n, q := optimize(t, sc, nil)
		s := physical.Format(q.Metadata, n, physical.FormatFlags{Verbose: true})
		if i == 0 {
			first = s
			continue
		}
		require.Equal(t, first, s)
	}
}

const promoJoin = `
query:
  from:
    join: inner
    left: {tree: {table: items}}
    right: {tree: {table: promo}}
    on: items.code = promo.code
  select: [items.id, promo.id]
`

func TestOptimizeJoinReorderUsesIndexLookup(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, itemsAndPromo+promoJoin)
	n, q := optimize(t, sc, nil)

	join, ok := n.(*physical.NestedLoopJoin)
	require.True(t, ok, "expected a join at the root, got %T", n)
	require.Equal(t, opt.InnerJoin, join.Type)
	require.Equal(t, physical.JoinImplNestedLoop, join.Impl)

	// The small table drives; the large one is looked up through its index
	// with the outer column.
	for _, tab := range physical.OutputTables(join.Left) {
		require.Equal(t, "promo", q.Metadata.Table(tab).Name())
	}
	lookups := collect[*physical.IndexScan](join.Right)
	require.Len(t, lookups, 1)
	require.Equal(t, "items_code_idx", lookups[0].Index.Name())
	require.Len(t, lookups[0].Equalities, 1)
	_, isVar := lookups[0].Equalities[0].(*opt.Variable)
	require.True(t, isVar)
	require.Empty(t, join.On)

	est := physical.Estimate(n)
	require.InDelta(t, 100, est.RowCount, 1e-9)
	require.InDelta(t, 165.5, est.Cost, 1)
}

func TestOptimizeSyntacticOrderAboveReorderLimit(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, itemsAndPromo+promoJoin)
	sv := settings.MakeValues()
	require.NoError(t, sv.Set("opt.join_reorder.max_relations", "1"))
	n, _ := optimize(t, sc, sv)
	require.Len(t, collect[*physical.NestedLoopJoin](n), 1)
}

func TestOptimizeReversedSemiJoin(t *testing.T) {
	defer log.Scope(t).Close(t)

	semi := func(rows string) string {
		return `
query:
  from:
    join: semi
    left: {tree: {table: items}}
    right:
      as: v
      values:
        columns: [code int]
        rows: ` + rows + `
    on: items.code = v.code
  select: [items.id]
`
	}

	t.Run("distinct values", func(t *testing.T) {
		sc := testutils.LoadScenario(t, itemsAndPromo+semi(`[["1"], ["2"], ["3"]]`))
		n, _ := optimize(t, sc, nil)
		join, ok := n.(*physical.NestedLoopJoin)
		require.True(t, ok, "expected a join at the root, got %T", n)
		require.Equal(t, opt.InnerJoin, join.Type)
		_, ok = join.Left.(*physical.ValuesScan)
		require.True(t, ok, "expected values to drive the join, got %T", join.Left)
		require.InDelta(t, 45.45, physical.Estimate(n).Cost, 1e-9)
	})

	t.Run("duplicate values", func(t *testing.T) {
		sc := testutils.LoadScenario(t, itemsAndPromo+semi(`[["1"], ["1"], ["2"]]`))
		n, _ := optimize(t, sc, nil)
		join, ok := n.(*physical.NestedLoopJoin)
		require.True(t, ok, "expected a join at the root, got %T", n)
		require.Equal(t, opt.InnerJoin, join.Type)
		d, ok := join.Left.(*physical.Distinct)
		require.True(t, ok, "expected deduplicated values, got %T", join.Left)
		_, ok = d.Input.(*physical.ValuesScan)
		require.True(t, ok)
	})

	// A left row can match several values rows that agree on code, so the
	// semi join cannot be turned into an inner join.
	t.Run("non-equality condition", func(t *testing.T) {
		const doc = `
query:
  from:
    join: semi
    left: {tree: {table: items}}
    right:
      as: v
      values:
        columns: [code int, lim int]
        rows: [["1", "10"], ["1", "20"]]
    on: items.code = v.code AND items.id < v.lim
  select: [items.id]
`
		sc := testutils.LoadScenario(t, itemsAndPromo+doc)
		n, _ := optimize(t, sc, nil)
		joins := collect[*physical.NestedLoopJoin](n)
		require.Len(t, joins, 1)
		require.Equal(t, opt.SemiJoin, joins[0].Type)
		require.Empty(t, collect[*physical.Distinct](n))
	})
}

const twoIndexes = `
groups:
- name: g
  tables:
  - name: t
    rows: 10000
    columns: [id int, x int, y int, z int]
    indexes:
    - {name: t_x_idx, columns: [x]}
    - {name: t_y_idx, columns: [y]}
stats:
- table: t
  index: t_x_idx
  row_count: 10000
  histograms:
  - - {upper: "1", eq: 10, lt: 0, distinct: 0}
    - {upper: "1000", eq: 10, lt: 9980, distinct: 998}
- table: t
  index: t_y_idx
  row_count: 10000
  histograms:
  - - {upper: "2", eq: 200, lt: 0, distinct: 0}
    - {upper: "1000", eq: 10, lt: 9790, distinct: 997}
query:
  from: {tree: {table: t}}
  where: x = 1 AND y = 2
  select: [t.z]
`

func TestOptimizeIndexIntersection(t *testing.T) {
	defer log.Scope(t).Close(t)
	sc := testutils.LoadScenario(t, twoIndexes)

	// 10 rows match x and 200 match y. The smaller scan drives a skip scan
	// of the larger one, which saves the residual filter on y.
	t.Run("skip scan", func(t *testing.T) {
		n, _ := optimize(t, sc, nil)
		scans := collect[*physical.IntersectScan](n)
		require.Len(t, scans, 1)
		require.True(t, scans[0].SkipScan)
		require.Len(t, scans[0].Inputs, 2)
		require.Equal(t, "t_x_idx", scans[0].Inputs[0].Index.Name())
		require.Equal(t, "t_y_idx", scans[0].Inputs[1].Index.Name())
		require.Empty(t, collect[*physical.Select](n))
		require.InDelta(t, 0.2, physical.Estimate(n).RowCount, 1e-9)
		require.InDelta(t, 55.8, physical.Estimate(n).Cost, 1e-9)
	})

	// A merge of both scans costs more than filtering the rows of the
	// smaller one.
	t.Run("ratio below skip scan threshold", func(t *testing.T) {
		sv := settings.MakeValues()
		require.NoError(t, sv.Set("opt.skip_scan.min_ratio", "100"))
		n, _ := optimize(t, sc, sv)
		require.Empty(t, collect[*physical.IntersectScan](n))
		scans := collect[*physical.IndexScan](n)
		require.Len(t, scans, 1)
		require.Equal(t, "t_x_idx", scans[0].Index.Name())
		require.Len(t, collect[*physical.Select](n), 1)
		require.InDelta(t, 57, physical.Estimate(n).Cost, 1e-9)
	})

	t.Run("disabled", func(t *testing.T) {
		sv := settings.MakeValues()
		require.NoError(t, sv.Set("opt.index_intersection.enabled", "false"))
		n, _ := optimize(t, sc, sv)
		require.Empty(t, collect[*physical.IntersectScan](n))
	})
}

func TestOptimizeOrderedLimitAvoidsSort(t *testing.T) {
	defer log.Scope(t).Close(t)

	const query = `
query:
  from:
    tree: {table: items}
  select: [items.code, items.id]
  order_by: [items.code]
  limit: 5
`
	sc := testutils.LoadScenario(t, itemsAndPromo+query)
	n, _ := optimize(t, sc, nil)

	require.Empty(t, collect[*physical.Sort](n))
	limit, ok := n.(*physical.Limit)
	require.True(t, ok, "expected a limit at the root, got %T", n)
	require.EqualValues(t, 5, limit.Count)
	scans := collect[*physical.IndexScan](n)
	require.Len(t, scans, 1)
	require.Equal(t, "items_code_idx", scans[0].Index.Name())
	require.Equal(t, physical.OrderingSorted, scans[0].Effectiveness)
	require.InDelta(t, 5, physical.Estimate(n).RowCount, 1e-9)
}

func TestOptimizeUnorderedQuerySortsWhenNeeded(t *testing.T) {
	defer log.Scope(t).Close(t)

	const query = `
query:
  from:
    tree: {table: promo}
  select: [promo.code]
  order_by: [promo.code desc]
`
	sc := testutils.LoadScenario(t, itemsAndPromo+query)
	n, _ := optimize(t, sc, nil)
	s, ok := n.(*physical.Sort)
	require.True(t, ok, "expected a sort at the root, got %T", n)
	require.True(t, s.Ordering[0].Descending)
}

func TestOptimizeMetrics(t *testing.T) {
	defer log.Scope(t).Close(t)

	m := xform.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	// Registering twice fails.
	require.Error(t, m.Register(reg))

	sc := testutils.LoadScenario(t, itemsAndPromo+promoJoin)
	o := xform.NewOptimizer(nil, sc.Stats)
	o.SetMetrics(m)
	q := testutils.BuildQuery(t, sc)
	_, memo, err := o.OptimizeWithMemo(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.PlanningCalls))
	require.Equal(t, 0.0, testutil.ToFloat64(m.PlanningErrors))
	require.Equal(t, float64(memo.Len()), testutil.ToFloat64(m.PlanClasses))
	require.Equal(t, 3, memo.Len())
	require.Greater(t, testutil.ToFloat64(m.ScanCandidates), 0.0)

	_, err = o.Optimize(context.Background(), &logical.Query{Metadata: opt.NewMetadata()})
	require.Error(t, err)
	require.Equal(t, 2.0, testutil.ToFloat64(m.PlanningCalls))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PlanningErrors))
}

func TestOptimizeInternalErrorIsReturned(t *testing.T) {
	defer log.Scope(t).Close(t)

	o := xform.NewOptimizer(nil, nil)
	_, err := o.Optimize(context.Background(), &logical.Query{Metadata: opt.NewMetadata()})
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))
	require.Contains(t, err.Error(), "optimizer")
}

func TestMemoString(t *testing.T) {
	defer log.Scope(t).Close(t)

	sc := testutils.LoadScenario(t, itemsAndPromo+promoJoin)
	q := testutils.BuildQuery(t, sc)
	_, memo, err := xform.NewOptimizer(nil, sc.Stats).OptimizeWithMemo(context.Background(), q)
	require.NoError(t, err)

	all := opt.AllRelations(2)
	root := memo.Class(all)
	require.NotNil(t, root)
	require.True(t, root.HasPlan())
	best := root.BestPlan(0, false)
	require.True(t, best.IsJoin())
	require.Equal(t, all, best.Relations)

	s := memo.String(q.Metadata)
	require.Contains(t, s, "items")
	require.Contains(t, s, "promo")
}
