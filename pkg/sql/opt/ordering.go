// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "strings"

// OrderingColumn is a column in an ordering, together with its direction.
type OrderingColumn struct {
	Col        ColumnID
	Descending bool
}

// Ordering is a list of ordering columns, from most to least significant.
type Ordering []OrderingColumn

// Empty returns true if the ordering requires nothing.
func (o Ordering) Empty() bool { return len(o) == 0 }

// ColSet returns the set of columns in the ordering.
func (o Ordering) ColSet() ColSet {
	var cols ColSet
	for _, c := range o {
		cols.Add(int(c.Col))
	}
	return cols
}

// Format returns a string like "+a,-b".
func (o Ordering) Format(md *Metadata) string {
	var sb strings.Builder
	for i, c := range o {
		if i > 0 {
			sb.WriteString(",")
		}
		if c.Descending {
			sb.WriteString("-")
		} else {
			sb.WriteString("+")
		}
		sb.WriteString(md.QualifiedAlias(c.Col))
	}
	return sb.String()
}
