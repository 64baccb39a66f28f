// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/cat"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the work done by an Optimizer. A nil *Metrics records
// nothing.
type Metrics struct {
	PlanningCalls   prometheus.Counter
	PlanningErrors  prometheus.Counter
	PlanClasses     prometheus.Counter
	ScanCandidates  prometheus.Counter
	MissingStats    prometheus.Counter
	PlanningLatency prometheus.Histogram
}

// NewMetrics returns unregistered optimizer metrics.
func NewMetrics() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupopt",
			Subsystem: "optimizer",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		PlanningCalls:  counter("planning_calls_total", "Number of queries planned."),
		PlanningErrors: counter("planning_errors_total", "Number of planning calls that failed."),
		PlanClasses:    counter("plan_classes_total", "Number of plan classes created."),
		ScanCandidates: counter("scan_candidates_total", "Number of access paths estimated."),
		MissingStats:   counter("missing_stats_total", "Number of estimates made without statistics."),
		PlanningLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "groupopt",
			Subsystem: "optimizer",
			Name:      "planning_seconds",
			Help:      "Latency of planning calls.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
}

// Register registers the metrics with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.PlanningCalls, m.PlanningErrors, m.PlanClasses, m.ScanCandidates, m.MissingStats, m.PlanningLatency,
	} {
		if err := r.Register(c); err != nil {
			return errors.Wrap(err, "registering optimizer metrics")
		}
	}
	return nil
}

func (m *Metrics) planned(start time.Time, err error) {
	if m == nil {
		return
	}
	m.PlanningCalls.Inc()
	if err != nil {
		m.PlanningErrors.Inc()
	}
	m.PlanningLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) planClass() {
	if m != nil {
		m.PlanClasses.Inc()
	}
}

func (m *Metrics) scanCandidate() {
	if m != nil {
		m.ScanCandidates.Inc()
	}
}

func (m *Metrics) missingStats(cat.Index) {
	if m != nil {
		m.MissingStats.Inc()
	}
}
