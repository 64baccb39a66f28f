// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

// DefaultJoinOrderLimit denotes the default limit on the number of relations
// whose join order is enumerated exhaustively.
const DefaultJoinOrderLimit = 16

// MaxReorderJoinsLimit is the maximum number of relations which can be
// reordered.
const MaxReorderJoinsLimit = MaxRelations
