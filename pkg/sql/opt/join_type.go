// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// JoinType is the type of a join between two relations, or between a table
// and its parent in a table group.
type JoinType uint8

const (
	// InnerJoin returns the matching pairs of rows.
	InnerJoin JoinType = iota
	// LeftJoin preserves the left (parent) side.
	LeftJoin
	// RightJoin preserves the right (child) side.
	RightJoin
	// FullJoin preserves both sides.
	FullJoin
	// SemiJoin returns the left rows that have a match.
	SemiJoin
	// AntiJoin returns the left rows that have no match.
	AntiJoin
	// SemiJoinAlreadyDistinct is a semi join whose right side is known to be
	// distinct on the join columns.
	SemiJoinAlreadyDistinct
	// SemiJoinNeedsDistinct is a semi join whose right side must be
	// deduplicated before it can drive the join.
	SemiJoinNeedsDistinct
)

var joinTypeNames = [...]string{
	InnerJoin:               "inner",
	LeftJoin:                "left",
	RightJoin:               "right",
	FullJoin:                "full",
	SemiJoin:                "semi",
	AntiJoin:                "anti",
	SemiJoinAlreadyDistinct: "semi-distinct",
	SemiJoinNeedsDistinct:   "semi-needs-distinct",
}

func (j JoinType) String() string {
	if int(j) >= len(joinTypeNames) {
		return fmt.Sprintf("JoinType(%d)", int(j))
	}
	return joinTypeNames[j]
}

// JoinTypeByName returns the join type spelled as name.
func JoinTypeByName(name string) (JoinType, error) {
	for i, n := range joinTypeNames {
		if n == name {
			return JoinType(i), nil
		}
	}
	if name == "" {
		return InnerJoin, nil
	}
	return 0, errors.Newf("unknown join type %q", name)
}

// IsSemi returns true for the semi join variants.
func (j JoinType) IsSemi() bool {
	return j == SemiJoin || j == SemiJoinAlreadyDistinct || j == SemiJoinNeedsDistinct
}

// IsSemiOrAnti returns true for joins that only return left columns.
func (j JoinType) IsSemiOrAnti() bool {
	return j.IsSemi() || j == AntiJoin
}

// Commutes returns true if the inputs of the join can be swapped without
// changing its type.
func (j JoinType) Commutes() bool {
	return j == InnerJoin || j == FullJoin
}

// Reverse returns the join type to use when the inputs are swapped. It
// panics for join types that have no reverse.
func (j JoinType) Reverse() JoinType {
	switch j {
	case InnerJoin, FullJoin:
		return j
	case LeftJoin:
		return RightJoin
	case RightJoin:
		return LeftJoin
	}
	panic(errors.AssertionFailedf("join type %s cannot be reversed", j))
}

// PreservesLeft returns true if every left row appears in the output.
func (j JoinType) PreservesLeft() bool { return j == LeftJoin || j == FullJoin }

// PreservesRight returns true if every right row appears in the output.
func (j JoinType) PreservesRight() bool { return j == RightJoin || j == FullJoin }
