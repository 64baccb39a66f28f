// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/errors"

// AggregateFunc identifies an aggregate function.
type AggregateFunc uint8

const (
	// CountRowsAgg is COUNT(*).
	CountRowsAgg AggregateFunc = iota
	// CountAgg is COUNT(col).
	CountAgg
	// SumAgg is SUM(col).
	SumAgg
	// MinAgg is MIN(col).
	MinAgg
	// MaxAgg is MAX(col).
	MaxAgg
)

var aggregateNames = [...]string{
	CountRowsAgg: "count_rows",
	CountAgg:     "count",
	SumAgg:       "sum",
	MinAgg:       "min",
	MaxAgg:       "max",
}

func (f AggregateFunc) String() string { return aggregateNames[f] }

// AggregateFuncByName returns the aggregate function with the given name.
func AggregateFuncByName(name string) (AggregateFunc, error) {
	for i, n := range aggregateNames {
		if n == name {
			return AggregateFunc(i), nil
		}
	}
	return 0, errors.Newf("unknown aggregate function %q", name)
}

// Aggregation is one aggregate computed by a grouping operator.
type Aggregation struct {
	Func AggregateFunc
	// Input is the aggregated column; it is 0 for CountRowsAgg.
	Input ColumnID
	// Output is the column holding the result.
	Output ColumnID
}

// IsMinMax returns true if all of the aggregations are MIN or MAX of the
// same column.
func IsMinMax(aggs []Aggregation) (ColumnID, bool) {
	if len(aggs) == 0 {
		return 0, false
	}
	col := aggs[0].Input
	for _, a := range aggs {
		if (a.Func != MinAgg && a.Func != MaxAgg) || a.Input != col {
			return 0, false
		}
	}
	return col, true
}
