// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/util"
	"github.com/cockroachdb/redact"
)

// TableID uniquely identifies the usage of a table within the scope of a
// query. TableID 0 is reserved to mean "unknown table".
type TableID int

// ColumnID uniquely identifies the usage of a column within the scope of a
// query. ColumnID 0 is reserved to mean "unknown column".
type ColumnID int

// TableSet is a set of TableIDs.
type TableSet = util.FastIntSet

// ColSet is a set of ColumnIDs.
type ColSet = util.FastIntSet

// MakeTableSet returns a set initialized with the given tables.
func MakeTableSet(tabs ...TableID) TableSet {
	var s TableSet
	for _, t := range tabs {
		s.Add(int(t))
	}
	return s
}

// MakeColSet returns a set initialized with the given columns.
func MakeColSet(cols ...ColumnID) ColSet {
	var s ColSet
	for _, c := range cols {
		s.Add(int(c))
	}
	return s
}

// RelationID is the position of a relation in the join graph being
// enumerated. It is assigned once per planning call.
type RelationID int

// MaxRelations is the maximum number of relations in one join graph.
const MaxRelations = 64

// RelSet is a set of relations, stored as a bitmap.
type RelSet uint64

// MakeRelSet returns a set containing the given relations.
func MakeRelSet(ids ...RelationID) RelSet {
	var s RelSet
	for _, id := range ids {
		s = s.Add(id)
	}
	return s
}

// Add returns the set with id added.
func (s RelSet) Add(id RelationID) RelSet {
	if id < 0 || id >= MaxRelations {
		panic(errors.AssertionFailedf("relation id %d out of range", id))
	}
	return s | (1 << uint(id))
}

// Contains returns true if id is in the set.
func (s RelSet) Contains(id RelationID) bool {
	return id >= 0 && id < MaxRelations && s&(1<<uint(id)) != 0
}

// Union returns the union of s and o.
func (s RelSet) Union(o RelSet) RelSet { return s | o }

// Intersection returns the intersection of s and o.
func (s RelSet) Intersection(o RelSet) RelSet { return s & o }

// Difference returns the elements of s that are not in o.
func (s RelSet) Difference(o RelSet) RelSet { return s &^ o }

// Intersects returns true if s and o have at least one element in common.
func (s RelSet) Intersects(o RelSet) bool { return s&o != 0 }

// SubsetOf returns true if every element of s is in o.
func (s RelSet) SubsetOf(o RelSet) bool { return s&^o == 0 }

// Empty returns true if the set has no elements.
func (s RelSet) Empty() bool { return s == 0 }

// Len returns the number of elements in the set.
func (s RelSet) Len() int { return bits.OnesCount64(uint64(s)) }

// IsSingleton returns true if the set has exactly one element.
func (s RelSet) IsSingleton() bool { return s != 0 && s&(s-1) == 0 }

// Next returns the first element of the set that is >= start.
func (s RelSet) Next(start RelationID) (RelationID, bool) {
	if start >= MaxRelations {
		return 0, false
	}
	if start < 0 {
		start = 0
	}
	rest := uint64(s) >> uint(start)
	if rest == 0 {
		return 0, false
	}
	return start + RelationID(bits.TrailingZeros64(rest)), true
}

// Ordered returns the elements of the set in increasing order.
func (s RelSet) Ordered() []RelationID {
	res := make([]RelationID, 0, s.Len())
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		res = append(res, i)
	}
	return res
}

// AllRelations returns the set of the first n relations.
func AllRelations(n int) RelSet {
	if n >= MaxRelations {
		return ^RelSet(0)
	}
	return RelSet(1)<<uint(n) - 1
}

// SafeFormat implements the redact.SafeFormatter interface.
func (s RelSet) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeRune('{')
	first := true
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		if !first {
			w.SafeRune(',')
		}
		first = false
		w.SafeInt(redact.SafeInt(i))
	}
	w.SafeRune('}')
}

func (s RelSet) String() string { return redact.StringWithoutMarkers(s) }
