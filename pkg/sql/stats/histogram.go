// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/util/encoding"
	"github.com/olekukonko/tablewriter"
)

// Bucket is one bucket of a histogram. The bucket covers the keys greater
// than the previous bucket's Key and less than or equal to its own Key.
type Bucket struct {
	// Key is the byte-comparable encoding of the upper bound of the bucket.
	Key []byte `json:"key"`
	// Display is the human readable form of the upper bound.
	Display string `json:"display"`
	// EqualCount is the estimated number of rows equal to the upper bound.
	EqualCount float64 `json:"eq"`
	// LessCount is the estimated number of rows greater than the previous
	// upper bound and less than this one.
	LessCount float64 `json:"lt"`
	// DistinctCount is the estimated number of distinct values greater than
	// the previous upper bound and less than this one.
	DistinctCount float64 `json:"distinct"`
}

// Histogram describes the distribution of the values of one key column of
// an index. Buckets are sorted by Key.
type Histogram struct {
	Buckets []Bucket `json:"buckets"`
}

// RowCount returns the number of rows described by the histogram.
func (h *Histogram) RowCount() float64 {
	var n float64
	for i := range h.Buckets {
		n += h.Buckets[i].EqualCount + h.Buckets[i].LessCount
	}
	return n
}

// DistinctCount returns the estimated number of distinct values described by
// the histogram.
func (h *Histogram) DistinctCount() float64 {
	var n float64
	for i := range h.Buckets {
		n += h.Buckets[i].DistinctCount
		if h.Buckets[i].EqualCount > 0 {
			n++
		}
	}
	return n
}

// Validate checks that the buckets are sorted and that the counts are
// consistent.
func (h *Histogram) Validate() error {
	for i := range h.Buckets {
		b := &h.Buckets[i]
		if b.EqualCount < 0 || b.LessCount < 0 || b.DistinctCount < 0 {
			return errors.Newf("bucket %d has negative counts", i)
		}
		if b.DistinctCount > b.LessCount {
			return errors.Newf("bucket %d has more distinct values (%g) than rows (%g)",
				i, b.DistinctCount, b.LessCount)
		}
		if i > 0 && bytes.Compare(h.Buckets[i-1].Key, b.Key) >= 0 {
			return errors.Newf("bucket %d is out of order", i)
		}
	}
	return nil
}

// search returns the index of the first bucket whose upper bound is >= key,
// or len(h.Buckets) if there is none.
func (h *Histogram) search(key []byte) int {
	return sort.Search(len(h.Buckets), func(i int) bool {
		return bytes.Compare(h.Buckets[i].Key, key) >= 0
	})
}

// EqualRows estimates the number of rows equal to key. A key that matches an
// upper bound gets that bucket's EqualCount; a key inside a bucket gets a
// uniform share of the bucket's LessCount.
func (h *Histogram) EqualRows(key []byte) float64 {
	i := h.search(key)
	if i == len(h.Buckets) {
		return 0
	}
	b := &h.Buckets[i]
	if bytes.Equal(b.Key, key) {
		return b.EqualCount
	}
	if i == 0 || b.LessCount == 0 {
		return 0
	}
	distinct := b.DistinctCount
	if distinct < 1 {
		distinct = 1
	}
	return b.LessCount / distinct
}

// RowsBelow estimates the number of rows less than key, or less than or equal
// to key if inclusive is set. The position of a key inside a bucket is found
// by linear interpolation between the bucket bounds.
func (h *Histogram) RowsBelow(key []byte, inclusive bool) float64 {
	var n float64
	for i := range h.Buckets {
		b := &h.Buckets[i]
		c := bytes.Compare(key, b.Key)
		if c > 0 {
			n += b.LessCount + b.EqualCount
			continue
		}
		if c == 0 {
			n += b.LessCount
			if inclusive {
				n += b.EqualCount
			}
			return n
		}
		if i > 0 {
			n += b.LessCount * encoding.PrefixFraction(h.Buckets[i-1].Key, b.Key, key)
		}
		return n
	}
	return n
}

func (h *Histogram) String() string {
	var sb strings.Builder
	w := histogramWriter{}
	w.init(h.Buckets)
	w.write(&sb)
	return sb.String()
}

// histogramWriter prints histograms with the following formatting:
//
//	Less1    Equal1     Less2    Equal2    ....
//	<----------- Display1 ----------- Display2 ....
//
// For example:
//
//	 0  1  90  10   0  20
//	<--- 0 ---- 100 --- 200
//
// This describes a histogram with 3 buckets. The first bucket contains 1 value
// equal to 0. The second bucket contains 90 values between 0 and 100 and
// 10 values equal to 100. Finally, the third bucket contains 20 values equal
// to 200.
type histogramWriter struct {
	cells     [][]string
	colWidths []int
}

const (
	// These constants describe the two rows that are printed.
	counts = iota
	boundaries
)

func (w *histogramWriter) init(buckets []Bucket) {
	w.cells = [][]string{
		make([]string, len(buckets)*2),
		make([]string, len(buckets)*2),
	}
	w.colWidths = make([]int, len(buckets)*2)

	for i, b := range buckets {
		w.cells[counts][i*2] = fmt.Sprintf(" %.5g ", b.LessCount)
		w.cells[counts][i*2+1] = fmt.Sprintf("%.5g", b.EqualCount)
		w.cells[boundaries][i*2+1] = fmt.Sprintf(" %s ", b.Display)
		for _, c := range []int{i * 2, i*2 + 1} {
			for _, row := range []int{counts, boundaries} {
				if width := tablewriter.DisplayWidth(w.cells[row][c]); width > w.colWidths[c] {
					w.colWidths[c] = width
				}
			}
		}
	}
}

func (w *histogramWriter) write(out io.Writer) {
	if len(w.cells[counts]) == 0 {
		return
	}

	// Print a space to match up with the "<" character below.
	fmt.Fprint(out, " ")
	for i := range w.cells[counts] {
		fmt.Fprintf(out, "%s", tablewriter.Pad(w.cells[counts][i], " ", w.colWidths[i]))
	}
	fmt.Fprint(out, "\n")
	fmt.Fprint(out, "<")
	for i := range w.cells[boundaries] {
		fmt.Fprintf(out, "%s", tablewriter.Pad(w.cells[boundaries][i], "-", w.colWidths[i]))
	}
}

// sample is a sampled key with its display form.
type sample struct {
	key     []byte
	display string
}

// equiDepthHistogram builds a histogram with at most maxBuckets buckets from
// the given samples, scaling counts so that they add up to numRows. The first
// bucket contains only the smallest sample so the histogram has a clear lower
// bound. The known number of distinct values is distributed among the
// buckets in proportion with the number of rows in each bucket.
func equiDepthHistogram(
	samples []sample, numRows float64, distinctCount float64, maxBuckets int,
) (*Histogram, error) {
	numSamples := len(samples)
	if numSamples == 0 {
		return &Histogram{}, nil
	}
	if maxBuckets < 2 {
		return nil, errors.Errorf("histogram requires at least two buckets")
	}
	if numRows < float64(numSamples) {
		return nil, errors.Errorf("more samples than rows")
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return bytes.Compare(samples[i].key, samples[j].key) < 0
	})
	numBuckets := maxBuckets
	if maxBuckets > numSamples {
		numBuckets = numSamples
	}
	scale := numRows / float64(numSamples)
	h := &Histogram{Buckets: make([]Bucket, 0, numBuckets)}
	var sampleDistinctInRanges float64
	rangeDistinct := make([]float64, 0, numBuckets)

	for i, b := 0, 0; b < numBuckets && i < numSamples; b++ {
		numSamplesInBucket := (numSamples - i) / (numBuckets - b)
		if i == 0 || numSamplesInBucket < 1 {
			numSamplesInBucket = 1
		}
		upper := samples[i+numSamplesInBucket-1]
		numLess := 0
		distinct := 0
		for ; numLess < numSamplesInBucket-1; numLess++ {
			cur := samples[i+numLess].key
			if bytes.Equal(cur, upper.key) {
				break
			}
			if numLess == 0 || !bytes.Equal(cur, samples[i+numLess-1].key) {
				distinct++
			}
		}
		// Advance the boundary of the bucket to cover all samples equal to upper.
		for ; i+numSamplesInBucket < numSamples; numSamplesInBucket++ {
			if !bytes.Equal(samples[i+numSamplesInBucket].key, upper.key) {
				break
			}
		}
		h.Buckets = append(h.Buckets, Bucket{
			Key:        upper.key,
			Display:    upper.display,
			EqualCount: float64(numSamplesInBucket-numLess) * scale,
			LessCount:  float64(numLess) * scale,
		})
		rangeDistinct = append(rangeDistinct, float64(distinct))
		sampleDistinctInRanges += float64(distinct)
		i += numSamplesInBucket
	}

	// Scale the per-bucket distinct counts so that the histogram's total
	// matches the estimated distinct count of the column.
	target := distinctCount - float64(len(h.Buckets))
	factor := 1.0
	if sampleDistinctInRanges > 0 && target > sampleDistinctInRanges {
		factor = target / sampleDistinctInRanges
	}
	for i := range h.Buckets {
		d := rangeDistinct[i] * factor
		if d > h.Buckets[i].LessCount {
			d = h.Buckets[i].LessCount
		}
		h.Buckets[i].DistinctCount = d
	}
	return h, nil
}
