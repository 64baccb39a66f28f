// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"bytes"
	"math/rand"
	"sort"

	"github.com/axiomhq/hyperloglog"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/groupopt/pkg/sql/sem/tree"
)

// DefaultSampleSize is the number of rows kept by a Sampler.
const DefaultSampleSize = 10000

// DefaultHistogramBuckets is the maximum number of buckets in a histogram.
const DefaultHistogramBuckets = 200

// Sampler keeps a uniform random sample of the keys added to it, along with
// a sketch of the number of distinct keys and the total count.
type Sampler struct {
	size    int
	rng     *rand.Rand
	samples []sample
	sketch  *hyperloglog.Sketch
	count   int64
}

// NewSampler returns a sampler that keeps at most size samples. The seed
// makes the sample reproducible.
func NewSampler(size int, seed int64) *Sampler {
	if size <= 0 {
		size = DefaultSampleSize
	}
	return &Sampler{
		size:   size,
		rng:    rand.New(rand.NewSource(seed)),
		sketch: hyperloglog.New(),
	}
}

// Add adds a key to the sample.
func (s *Sampler) Add(key []byte, display string) {
	s.count++
	s.sketch.Insert(key)
	if len(s.samples) < s.size {
		s.samples = append(s.samples, sample{key: key, display: display})
		return
	}
	if j := s.rng.Int63n(s.count); j < int64(s.size) {
		s.samples[j] = sample{key: key, display: display}
	}
}

// Count returns the number of keys added.
func (s *Sampler) Count() int64 { return s.count }

// DistinctCount returns the estimated number of distinct keys added.
func (s *Sampler) DistinctCount() int64 {
	d := int64(s.sketch.Estimate())
	if d > s.count {
		d = s.count
	}
	return d
}

// Build returns a histogram over the added keys with at most maxBuckets
// buckets.
func (s *Sampler) Build(maxBuckets int) (*Histogram, error) {
	samples := make([]sample, len(s.samples))
	copy(samples, s.samples)
	return equiDepthHistogram(samples, float64(s.count), float64(s.DistinctCount()), maxBuckets)
}

// IndexStatisticsBuilder collects the statistics of one index from the rows
// of its table (or, for group indexes, from the joined rows of the group).
type IndexStatisticsBuilder struct {
	table      string
	index      string
	descending []bool
	columns    []*Sampler
	full       *Sampler
	maxBuckets int
}

// NewIndexStatisticsBuilder returns a builder for the given index.
func NewIndexStatisticsBuilder(
	idx cat.Index, sampleSize int, maxBuckets int, seed int64,
) *IndexStatisticsBuilder {
	n := idx.KeyColumnCount()
	b := &IndexStatisticsBuilder{
		table:      idx.Table().Name(),
		index:      idx.Name(),
		descending: make([]bool, n),
		columns:    make([]*Sampler, n),
		full:       NewSampler(sampleSize, seed),
		maxBuckets: maxBuckets,
	}
	for i := 0; i < n; i++ {
		b.descending[i] = idx.Column(i).Descending
		b.columns[i] = NewSampler(sampleSize, seed+int64(i)+1)
	}
	return b
}

// AddRow adds the key column values of one index row.
func (b *IndexStatisticsBuilder) AddRow(key []tree.Datum) error {
	if len(key) != len(b.columns) {
		return errors.AssertionFailedf("expected %d key values, found %d", len(b.columns), len(key))
	}
	var full []byte
	for i, d := range key {
		k := d.EncodeKey(nil, b.descending[i])
		b.columns[i].Add(k, d.String())
		full = append(full, k...)
	}
	b.full.Add(full, "")
	return nil
}

// Build returns the collected statistics.
func (b *IndexStatisticsBuilder) Build() (*IndexStatistics, error) {
	s := &IndexStatistics{
		Table:        b.table,
		Index:        b.index,
		RowCount:     b.full.Count(),
		SampledCount: int64(len(b.full.samples)),
		Histograms:   make([]*Histogram, len(b.columns)),
	}
	s.DistinctSampled = distinctSamples(b.full.samples)
	for i, c := range b.columns {
		h, err := c.Build(b.maxBuckets)
		if err != nil {
			return nil, errors.Wrapf(err, "building histogram for column %d of %s.%s", i, b.table, b.index)
		}
		s.Histograms[i] = h
	}
	return s, nil
}

func distinctSamples(samples []sample) int64 {
	if len(samples) == 0 {
		return 0
	}
	keys := make([][]byte, len(samples))
	for i := range samples {
		keys[i] = samples[i].key
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	n := int64(1)
	for i := 1; i < len(keys); i++ {
		if !bytes.Equal(keys[i-1], keys[i]) {
			n++
		}
	}
	return n
}
