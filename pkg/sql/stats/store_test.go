// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	id   cat.StableID
	name string
}

func (t *fakeTable) ID() cat.StableID         { return t.id }
func (t *fakeTable) Name() string             { return t.name }
func (t *fakeTable) ColumnCount() int         { return 0 }
func (t *fakeTable) Column(i int) *cat.Column { return nil }
func (t *fakeTable) IndexCount() int          { return 0 }
func (t *fakeTable) Index(i int) cat.Index    { return nil }
func (t *fakeTable) Parent() cat.Table        { return nil }
func (t *fakeTable) Group() cat.Group         { return nil }
func (t *fakeTable) RowCount() int64          { return 0 }

type fakeIndex struct {
	id   cat.StableID
	name string
	tab  *fakeTable
}

func (i *fakeIndex) ID() cat.StableID               { return i.id }
func (i *fakeIndex) Name() string                   { return i.name }
func (i *fakeIndex) Table() cat.Table               { return i.tab }
func (i *fakeIndex) IsGroupIndex() bool             { return false }
func (i *fakeIndex) IsPrimary() bool                { return false }
func (i *fakeIndex) IsUnique() bool                 { return false }
func (i *fakeIndex) KeyColumnCount() int            { return 0 }
func (i *fakeIndex) ColumnCount() int               { return 0 }
func (i *fakeIndex) Column(ord int) cat.IndexColumn { return cat.IndexColumn{} }

func testStatistics(table, index string) *IndexStatistics {
	return &IndexStatistics{
		Table:           table,
		Index:           index,
		RowCount:        1000,
		SampledCount:    1000,
		DistinctSampled: 950,
		Histograms: []*Histogram{{Buckets: []Bucket{
			{Key: intKey(1), Display: "1", EqualCount: 10},
			{Key: intKey(50), Display: "50", EqualCount: 10, LessCount: 980, DistinctCount: 48},
		}}, nil},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore("stats", vfs.NewMem())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	st, err := s.LookupIndexStatistics("orders", "orders_date")
	require.NoError(t, err)
	require.Nil(t, st)
	n, err := s.LookupTableRowCount("orders")
	require.NoError(t, err)
	require.Equal(t, int64(-1), n)

	in := testStatistics("orders", "orders_date")
	require.NoError(t, s.PutIndexStatistics(in))
	require.NoError(t, s.PutIndexStatistics(testStatistics("customers", "customers_name")))
	require.NoError(t, s.PutTableRowCount("orders", 1234))

	out, err := s.LookupIndexStatistics("orders", "orders_date")
	require.NoError(t, err)
	require.Equal(t, in, out)

	tab := &fakeTable{id: 1, name: "orders"}
	idx := &fakeIndex{id: 2, name: "orders_date", tab: tab}
	require.Equal(t, in, s.IndexStatistics(ctx, idx))
	require.Equal(t, int64(1234), s.TableRowCount(ctx, tab))
	require.Equal(t, int64(-1), s.TableRowCount(ctx, &fakeTable{id: 3, name: "items"}))

	var names []string
	require.NoError(t, s.ListIndexStatistics(func(st *IndexStatistics) error {
		names = append(names, st.Table+"."+st.Index)
		return nil
	}))
	require.Equal(t, []string{"customers.customers_name", "orders.orders_date"}, names)

	require.Error(t, s.PutTableRowCount("orders", -1))
	bad := testStatistics("orders", "bad")
	bad.DistinctSampled = 2000
	require.Error(t, s.PutIndexStatistics(bad))
}

type countingSource struct {
	Source
	calls int
}

func (c *countingSource) IndexStatistics(ctx context.Context, idx cat.Index) *IndexStatistics {
	c.calls++
	return c.Source.IndexStatistics(ctx, idx)
}

func TestStatisticsCache(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	mem.PutIndexStatistics(testStatistics("orders", "a"))
	mem.PutTableRowCount("orders", 10)
	src := &countingSource{Source: mem}
	sc := NewStatisticsCache(src, 1)

	tab := &fakeTable{id: 1, name: "orders"}
	a := &fakeIndex{id: 2, name: "a", tab: tab}
	b := &fakeIndex{id: 3, name: "b", tab: tab}

	require.NotNil(t, sc.IndexStatistics(ctx, a))
	require.NotNil(t, sc.IndexStatistics(ctx, a))
	require.Equal(t, 1, src.calls)

	// Missing statistics are cached too, and evict the older entry.
	require.Nil(t, sc.IndexStatistics(ctx, b))
	require.Nil(t, sc.IndexStatistics(ctx, b))
	require.Equal(t, 2, src.calls)
	_, ok := sc.Lookup(ctx, a.ID())
	require.False(t, ok)

	sc.Invalidate(ctx, b.ID())
	require.Nil(t, sc.IndexStatistics(ctx, b))
	require.Equal(t, 3, src.calls)

	require.Equal(t, int64(10), sc.TableRowCount(ctx, tab))
}
