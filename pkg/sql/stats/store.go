// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/util/encoding"
	"github.com/cockroachdb/groupopt/pkg/util/log"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const (
	indexStatsPrefix byte = 'i'
	rowCountPrefix   byte = 'r'
)

// Store persists statistics in a pebble database. Index statistics are
// stored as JSON under a key made of the table and index names; row counts
// are stored as encoded integers under the table name.
type Store struct {
	db *pebble.DB
	// readErrEvery rate limits warnings about unreadable entries.
	readErrEvery log.EveryN
}

var _ Source = (*Store)(nil)

// OpenStore opens (creating if necessary) the statistics store in dir. A nil
// fs uses the real filesystem.
func OpenStore(dir string, fs vfs.FS) (*Store, error) {
	if fs == nil {
		fs = vfs.Default
	}
	db, err := pebble.Open(dir, &pebble.Options{
		FS:     fs,
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening statistics store %s", dir)
	}
	return &Store{db: db, readErrEvery: log.Every(10 * time.Second)}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func indexStatsKey(table, index string) []byte {
	k := []byte{indexStatsPrefix}
	k = encoding.EncodeStringAscending(k, table)
	return encoding.EncodeStringAscending(k, index)
}

func rowCountKey(table string) []byte {
	return encoding.EncodeStringAscending([]byte{rowCountPrefix}, table)
}

// PutIndexStatistics writes statistics for st.Table and st.Index, replacing
// any previous value.
func (s *Store) PutIndexStatistics(st *IndexStatistics) error {
	if err := st.Validate(); err != nil {
		return err
	}
	v, err := MarshalIndexStatistics(st)
	if err != nil {
		return err
	}
	return errors.Wrap(s.db.Set(indexStatsKey(st.Table, st.Index), v, pebble.Sync),
		"writing index statistics")
}

// PutTableRowCount writes the row count of a table.
func (s *Store) PutTableRowCount(table string, rows int64) error {
	if rows < 0 {
		return errors.Newf("negative row count %d for table %s", rows, table)
	}
	v := encoding.EncodeInt64Ascending(nil, rows)
	return errors.Wrap(s.db.Set(rowCountKey(table), v, pebble.Sync), "writing row count")
}

// LookupIndexStatistics returns the statistics stored for the named index, or
// nil if there are none.
func (s *Store) LookupIndexStatistics(table, index string) (*IndexStatistics, error) {
	v, closer, err := s.db.Get(indexStatsKey(table, index))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading statistics for %s.%s", table, index)
	}
	defer closer.Close()
	return UnmarshalIndexStatistics(v)
}

// LookupTableRowCount returns the stored row count of the named table, or -1.
func (s *Store) LookupTableRowCount(table string) (int64, error) {
	v, closer, err := s.db.Get(rowCountKey(table))
	if errors.Is(err, pebble.ErrNotFound) {
		return -1, nil
	}
	if err != nil {
		return -1, errors.Wrapf(err, "reading row count for %s", table)
	}
	defer closer.Close()
	_, n, err := encoding.DecodeInt64Ascending(v)
	if err != nil {
		return -1, errors.Wrapf(err, "decoding row count for %s", table)
	}
	return n, nil
}

// ListIndexStatistics calls fn for each stored index statistics entry in key
// order.
func (s *Store) ListIndexStatistics(fn func(*IndexStatistics) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{indexStatsPrefix},
		UpperBound: []byte{indexStatsPrefix + 1},
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		st, err := UnmarshalIndexStatistics(iter.Value())
		if err != nil {
			return errors.Wrapf(err, "key %x", iter.Key())
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	return iter.Error()
}

// IndexStatistics is part of the Source interface. Unreadable entries are
// treated as missing.
func (s *Store) IndexStatistics(ctx context.Context, idx cat.Index) *IndexStatistics {
	st, err := s.LookupIndexStatistics(idx.Table().Name(), idx.Name())
	if err != nil {
		if s.readErrEvery.ShouldLog() {
			log.Warningf(ctx, "%v", err)
		}
		return nil
	}
	return st
}

// TableRowCount is part of the Source interface.
func (s *Store) TableRowCount(ctx context.Context, tab cat.Table) int64 {
	n, err := s.LookupTableRowCount(tab.Name())
	if err != nil {
		if s.readErrEvery.ShouldLog() {
			log.Warningf(ctx, "%v", err)
		}
		return -1
	}
	return n
}

// pebbleLogger routes pebble's log output through the log package.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	if log.V(1) {
		log.Infof(context.Background(), "pebble: "+format, args...)
	}
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf(context.Background(), "pebble: %s", fmt.Sprintf(format, args...))
}
