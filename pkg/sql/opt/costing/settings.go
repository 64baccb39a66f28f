// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing

import "github.com/cockroachdb/groupopt/pkg/settings"

// MissingStatsSelectivity is the selectivity used for a predicate on a
// column without statistics.
var MissingStatsSelectivity = settings.RegisterFloatSetting(
	"cost.missing_stats_selectivity",
	"selectivity assumed for predicates on columns without statistics",
	0.85,
	settings.Fraction,
)

// MostlyDistinctFraction is the fraction of distinct sampled keys above which
// an index is treated as a dictionary lookup.
var MostlyDistinctFraction = settings.RegisterFloatSetting(
	"cost.mostly_distinct_fraction",
	"fraction of distinct sampled keys above which estimates scale with the statistics row count",
	0.9,
	settings.Fraction,
)

var (
	randomAccessCost = settings.RegisterFloatSetting(
		"cost.random_access", "cost of one random access (seek)", 4.0, settings.NonNegativeFloat)
	sequentialRowCost = settings.RegisterFloatSetting(
		"cost.sequential_row", "cost of reading one row sequentially", 1.0, settings.NonNegativeFloat)
	fieldAccessCost = settings.RegisterFloatSetting(
		"cost.field_access", "cost of reading one field of a row", 0.05, settings.NonNegativeFloat)
	selectRowCost = settings.RegisterFloatSetting(
		"cost.select_row", "cost of evaluating one predicate on one row", 0.2, settings.NonNegativeFloat)
	sortRowCost = settings.RegisterFloatSetting(
		"cost.sort_row", "cost per row and comparison level of a sort", 0.4, settings.NonNegativeFloat)
	flattenRowCost = settings.RegisterFloatSetting(
		"cost.flatten_row", "cost of producing one flattened row", 0.2, settings.NonNegativeFloat)
	productRowCost = settings.RegisterFloatSetting(
		"cost.product_row", "cost of producing one row of a branch product", 0.3, settings.NonNegativeFloat)
	intersectRowCost = settings.RegisterFloatSetting(
		"cost.intersect_row", "cost of merging one row of an index intersection", 0.2, settings.NonNegativeFloat)
	distinctRowCost = settings.RegisterFloatSetting(
		"cost.distinct_row", "cost of deduplicating one row", 0.5, settings.NonNegativeFloat)
	valuesRowCost = settings.RegisterFloatSetting(
		"cost.values_row", "cost of producing one literal row", 0.05, settings.NonNegativeFloat)
	nestedLoopRowCost = settings.RegisterFloatSetting(
		"cost.nested_loop_row", "cost of binding one outer row into a nested loop", 0.1, settings.NonNegativeFloat)
)

// Units holds the per-operator unit costs used by the model.
type Units struct {
	RandomAccess  float64
	SequentialRow float64
	FieldAccess   float64
	SelectRow     float64
	SortRow       float64
	FlattenRow    float64
	ProductRow    float64
	IntersectRow  float64
	DistinctRow   float64
	ValuesRow     float64
	NestedLoopRow float64
}

// MakeUnits reads the unit costs from sv. A nil sv yields the defaults.
func MakeUnits(sv *settings.Values) Units {
	return Units{
		RandomAccess:  randomAccessCost.Get(sv),
		SequentialRow: sequentialRowCost.Get(sv),
		FieldAccess:   fieldAccessCost.Get(sv),
		SelectRow:     selectRowCost.Get(sv),
		SortRow:       sortRowCost.Get(sv),
		FlattenRow:    flattenRowCost.Get(sv),
		ProductRow:    productRowCost.Get(sv),
		IntersectRow:  intersectRowCost.Get(sv),
		DistinctRow:   distinctRowCost.Get(sv),
		ValuesRow:     valuesRowCost.Get(sv),
		NestedLoopRow: nestedLoopRowCost.Get(sv),
	}
}
