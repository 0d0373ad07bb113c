// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the dependency graph of a categorized pattern and
// the queries over it.
//
// Every categorized object becomes one Record listing the objects it
// depends on, either by identifier (attribute references, structural
// members) or by name inside a formula.
//
// # Ownership Model
//
// Records are created by the Builder and never mutated after AddRecord.
// Dependency slices are owned by the record; callers must not modify them.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during build (AddRecord calls)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph can be safely read from multiple goroutines.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with NewGraph(source)
//  2. Populate with AddRecord() calls (normally done by Builder.Build)
//  3. Call Freeze() to finalize
//  4. Query with Get(), Trace(), Dependents(), Analyze()
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrRecordNotFound is returned when a queried id has no record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when adding a record whose id already
	// exists in the graph.
	ErrDuplicateRecord = errors.New("duplicate record ID")

	// ErrMaxRecordsExceeded is returned when the graph has reached its
	// configured maximum record count.
	ErrMaxRecordsExceeded = errors.New("maximum record count exceeded")

	// ErrInvalidRecord is returned when adding a nil record or one without
	// an id.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrSchemaVersion is returned when deserializing a graph written with
	// an unsupported schema version.
	ErrSchemaVersion = errors.New("unsupported graph schema version")

	// ErrSnapshotNotFound is returned when a snapshot id is unknown.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
