// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testutils

import (
	"testing"

	"github.com/cockroachdb/groupopt/pkg/sql/opt/logical"
	"github.com/cockroachdb/groupopt/pkg/sql/opt/testutils/testcat"
)

// LoadScenario parses a scenario document, failing the test on error.
func LoadScenario(t testing.TB, doc string) *testcat.Scenario {
	t.Helper()
	sc, err := testcat.LoadScenario([]byte(doc))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return sc
}

// BuildQuery builds the scenario's query, failing the test on error.
func BuildQuery(t testing.TB, sc *testcat.Scenario) *logical.Query {
	t.Helper()
	if sc.Query == nil {
		t.Fatal("scenario has no query")
	}
	q, err := sc.Catalog.BuildQuery(sc.Query)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return q
}
