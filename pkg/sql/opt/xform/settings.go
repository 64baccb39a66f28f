// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/groupopt/pkg/settings"
	"github.com/cockroachdb/groupopt/pkg/sql/opt"
)

// IndexIntersectionEnabled controls whether intersections of two index
// scans of the same table are considered.
var IndexIntersectionEnabled = settings.RegisterBoolSetting(
	"opt.index_intersection.enabled",
	"consider intersecting two restricted index scans of the same table",
	true,
)

// SkipScanMinRatio is the size ratio between the inputs of an intersection
// above which the smaller input drives lookups into the larger one.
var SkipScanMinRatio = settings.RegisterFloatSetting(
	"opt.skip_scan.min_ratio",
	"minimum ratio between the larger and smaller input of an index intersection for a skip scan",
	10,
	settings.NonNegativeFloat,
)

// JoinReorderLimit is the number of relations above which joins are planned
// in their syntactic order.
var JoinReorderLimit = settings.RegisterIntSetting(
	"opt.join_reorder.max_relations",
	"maximum number of relations whose join order is enumerated",
	opt.DefaultJoinOrderLimit,
	settings.PositiveInt,
)
