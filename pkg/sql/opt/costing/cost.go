// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costing

import (
	"math"
	"strconv"

	"github.com/cockroachdb/redact"
)

// CostEstimate is the estimated number of rows produced by a plan and the
// estimated cost of producing them.
type CostEstimate struct {
	RowCount float64
	Cost     float64
}

// Less returns true if c is cheaper than other. Costs are compared first; row
// counts break ties. Two values that only differ by floating point noise are
// considered equal.
func (c CostEstimate) Less(other CostEstimate) bool {
	if floatLess(c.Cost, other.Cost) {
		return true
	}
	if floatLess(other.Cost, c.Cost) {
		return false
	}
	return floatLess(c.RowCount, other.RowCount)
}

// floatLess compares two floats using a tolerance relative to their
// magnitude.
func floatLess(a, b float64) bool {
	// Two plans with the same cost can have slightly different floating point
	// results (e.g. same subcosts being added up in a different order). So we
	// treat plans with very similar cost as equal.
	const tolerance = 1e-10
	if a >= b {
		return false
	}
	return b-a > tolerance*math.Max(math.Abs(a), math.Abs(b))
}

// Nest returns the estimate of running inner once per row of c, where inner
// is the estimate of one execution.
func (c CostEstimate) Nest(inner CostEstimate, perRow float64) CostEstimate {
	return CostEstimate{
		RowCount: c.RowCount * inner.RowCount,
		Cost:     c.Cost + c.RowCount*(inner.Cost+perRow),
	}
}

// Sequence returns the estimate of running c followed by other.
func (c CostEstimate) Sequence(other CostEstimate) CostEstimate {
	return CostEstimate{RowCount: c.RowCount + other.RowCount, Cost: c.Cost + other.Cost}
}

// Scale multiplies both the row count and the cost by f.
func (c CostEstimate) Scale(f float64) CostEstimate {
	return CostEstimate{RowCount: c.RowCount * f, Cost: c.Cost * f}
}

// SafeFormat implements redact.SafeFormatter.
func (c CostEstimate) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("rows=%s cost=%s",
		redact.SafeString(formatFloat(c.RowCount)), redact.SafeString(formatFloat(c.Cost)))
}

func (c CostEstimate) String() string { return redact.StringWithoutMarkers(c) }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// Selectivity is a fraction of rows in [0, 1].
type Selectivity struct {
	selectivity float64
}

var (
	// ZeroSelectivity is used in cases where selectivity is known to be zero.
	ZeroSelectivity = Selectivity{0}

	// OneSelectivity is used in cases where selectivity is known to be one.
	OneSelectivity = Selectivity{1.0}
)

// MakeSelectivity initializes and validates a float64 to ensure it is in a
// valid range. This method is used for selectivity calculations involving
// other non-selectivity values.
func MakeSelectivity(sel float64) Selectivity {
	return Selectivity{selectivity: selectivityInRange(sel)}
}

// AsFloat returns the private selectivity field, allowing it to be accessed
// outside of this package.
func (s Selectivity) AsFloat() float64 {
	return s.selectivity
}

// Multiply is a helper function for multiplying two selectivities.
func (s *Selectivity) Multiply(other Selectivity) {
	s.selectivity = selectivityInRange(s.selectivity * other.selectivity)
}

// Add is a helper function for adding two selectivities.
func (s *Selectivity) Add(other Selectivity) {
	s.selectivity = selectivityInRange(s.selectivity + other.selectivity)
}

// Subtract is a helper function for subtracting one selectivity from another.
func (s *Selectivity) Subtract(other Selectivity) {
	s.selectivity = selectivityInRange(s.selectivity - other.selectivity)
}

// selectivityInRange performs the range check, if the selectivity falls
// outside of the range, this method will return the appropriate min/max
// value.
func selectivityInRange(sel float64) float64 {
	switch {
	case math.IsNaN(sel) || sel < 0:
		return 0
	case sel > 1:
		return 1
	default:
		return sel
	}
}
