// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// IndexStatistics holds the statistics collected for one index. Histograms[i]
// describes the i-th key column of the index; an entry may be nil when no
// histogram was collected for that column.
type IndexStatistics struct {
	Table string `json:"table"`
	Index string `json:"index"`
	// RowCount is the number of rows in the table when the statistics were
	// collected.
	RowCount int64 `json:"row_count"`
	// SampledCount is the number of rows that were sampled.
	SampledCount int64 `json:"sampled_count"`
	// DistinctSampled is the number of distinct full keys among the samples.
	DistinctSampled int64 `json:"distinct_sampled"`

	Histograms []*Histogram `json:"histograms"`
}

// MostlyDistinct returns true if the fraction of distinct keys among the
// sampled rows is at least threshold. Estimates for mostly distinct indexes
// scale with the row count recorded in the statistics rather than the
// current size of the table.
func (s *IndexStatistics) MostlyDistinct(threshold float64) bool {
	if s.SampledCount <= 0 {
		return false
	}
	return float64(s.DistinctSampled)/float64(s.SampledCount) >= threshold
}

// Histogram returns the histogram of the i-th key column, or nil.
func (s *IndexStatistics) Histogram(i int) *Histogram {
	if i < 0 || i >= len(s.Histograms) {
		return nil
	}
	return s.Histograms[i]
}

// Validate checks the statistics for consistency.
func (s *IndexStatistics) Validate() error {
	if s.RowCount < 0 || s.SampledCount < 0 || s.DistinctSampled < 0 {
		return errors.Newf("statistics for %s.%s have negative counts", s.Table, s.Index)
	}
	if s.DistinctSampled > s.SampledCount {
		return errors.Newf("statistics for %s.%s have more distinct keys than samples",
			s.Table, s.Index)
	}
	for i, h := range s.Histograms {
		if h == nil {
			continue
		}
		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, "histogram %d of %s.%s", i, s.Table, s.Index)
		}
	}
	return nil
}

// MarshalIndexStatistics encodes the statistics as JSON.
func MarshalIndexStatistics(s *IndexStatistics) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding index statistics")
	}
	return b, nil
}

// UnmarshalIndexStatistics decodes statistics previously encoded with
// MarshalIndexStatistics.
func UnmarshalIndexStatistics(b []byte) (*IndexStatistics, error) {
	s := &IndexStatistics{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "decoding index statistics")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
