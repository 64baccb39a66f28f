// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"
	"sync"

	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/golang/groupcache/lru"
)

// A StatisticsCache is an LRU cache of index statistics in front of another
// Source, keyed by index ID. Row counts are not cached.
type StatisticsCache struct {
	source Source

	mu struct {
		sync.Mutex
		// Maps cat.StableID to *IndexStatistics.
		lru *lru.Cache
	}
}

var _ Source = (*StatisticsCache)(nil)

// NewStatisticsCache creates a cache holding statistics for at most size
// indexes. A size of zero means no limit.
func NewStatisticsCache(source Source, size int) *StatisticsCache {
	sc := &StatisticsCache{source: source}
	sc.mu.lru = lru.New(size)
	return sc
}

// Lookup returns the cached statistics of the given index.
func (sc *StatisticsCache) Lookup(ctx context.Context, id cat.StableID) (*IndexStatistics, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if v, ok := sc.mu.lru.Get(id); ok {
		if log.V(2) {
			log.Infof(ctx, "i%d: lookup statistics for index: found", id)
		}
		return v.(*IndexStatistics), true
	}
	if log.V(2) {
		log.Infof(ctx, "i%d: lookup statistics for index: not found", id)
	}
	return nil, false
}

// Refresh reads the statistics of the index from the underlying source and
// caches them. Missing statistics are cached as nil.
func (sc *StatisticsCache) Refresh(ctx context.Context, idx cat.Index) *IndexStatistics {
	st := sc.source.IndexStatistics(ctx, idx)
	if log.V(2) {
		log.Infof(ctx, "i%d: updating statistics for index %s", idx.ID(), idx.Name())
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.mu.lru.Add(idx.ID(), st)
	return st
}

// Invalidate evicts the cached statistics of the given index.
func (sc *StatisticsCache) Invalidate(ctx context.Context, id cat.StableID) {
	if log.V(2) {
		log.Infof(ctx, "i%d: evicting statistics for index", id)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.mu.lru.Remove(id)
}

// IndexStatistics is part of the Source interface. It looks up the cache and
// refreshes on a miss.
func (sc *StatisticsCache) IndexStatistics(ctx context.Context, idx cat.Index) *IndexStatistics {
	if st, ok := sc.Lookup(ctx, idx.ID()); ok {
		return st
	}
	return sc.Refresh(ctx, idx)
}

// TableRowCount is part of the Source interface.
func (sc *StatisticsCache) TableRowCount(ctx context.Context, tab cat.Table) int64 {
	return sc.source.TableRowCount(ctx, tab)
}
