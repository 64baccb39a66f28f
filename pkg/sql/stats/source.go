// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"

	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
)

// Source provides the statistics used for costing.
type Source interface {
	// IndexStatistics returns the statistics of the given index, or nil if
	// none have been collected.
	IndexStatistics(ctx context.Context, idx cat.Index) *IndexStatistics

	// TableRowCount returns the stored row count of the table, or -1 if the
	// source has no count for it.
	TableRowCount(ctx context.Context, tab cat.Table) int64
}

// MemStore is a Source backed by maps keyed by table and index name.
type MemStore struct {
	indexes map[[2]string]*IndexStatistics
	rows    map[string]int64
}

var _ Source = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		indexes: make(map[[2]string]*IndexStatistics),
		rows:    make(map[string]int64),
	}
}

// PutIndexStatistics records statistics for s.Table and s.Index.
func (m *MemStore) PutIndexStatistics(s *IndexStatistics) {
	m.indexes[[2]string{s.Table, s.Index}] = s
}

// PutTableRowCount records the row count of a table.
func (m *MemStore) PutTableRowCount(table string, rows int64) {
	m.rows[table] = rows
}

// IndexStatistics is part of the Source interface.
func (m *MemStore) IndexStatistics(_ context.Context, idx cat.Index) *IndexStatistics {
	return m.indexes[[2]string{idx.Table().Name(), idx.Name()}]
}

// TableRowCount is part of the Source interface.
func (m *MemStore) TableRowCount(_ context.Context, tab cat.Table) int64 {
	if n, ok := m.rows[tab.Name()]; ok {
		return n
	}
	return -1
}
