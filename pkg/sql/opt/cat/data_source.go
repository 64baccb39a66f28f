// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the interfaces the optimizer uses to access catalog
// objects: tables, their indexes and the storage groups that nest them.
package cat

// StableID uniquely identifies a catalog object across planning calls.
type StableID uint64

// DataSource is an interface to a catalog object that provides rows.
type DataSource interface {
	// ID is the unique, stable identifier for this data source.
	ID() StableID

	// Name returns the unqualified name of the object.
	Name() string
}
