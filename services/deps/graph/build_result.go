// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// RecordError represents a failure to add a single record to the graph.
type RecordError struct {
	// ID is the object id of the record.
	ID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e RecordError) Unwrap() error {
	return e.Err
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// ObjectsProcessed is the number of objects whose dependencies were
	// extracted.
	ObjectsProcessed int `json:"objects_processed"`

	// RecordsCreated is the number of records added to the graph.
	RecordsCreated int `json:"records_created"`

	// DependenciesCreated is the total number of dependencies.
	DependenciesCreated int `json:"dependencies_created"`

	// ReferenceDependencies is the number of dependencies found through
	// identifier attributes and members.
	ReferenceDependencies int `json:"reference_dependencies"`

	// FormulaDependencies is the number of dependencies found in formulas.
	FormulaDependencies int `json:"formula_dependencies"`

	// UnresolvedReferences is the number of dependencies that matched no
	// known object.
	UnresolvedReferences int `json:"unresolved_references"`

	// Workers is the number of workers the build ran with.
	Workers int `json:"workers"`

	// DurationMilli is the build duration in milliseconds.
	DurationMilli int64 `json:"duration_milli"`

	// DurationMicro is the build duration in microseconds, for builds that
	// finish in under a millisecond.
	DurationMicro int64 `json:"duration_micro"`
}

// BuildResult contains the result of a build.
type BuildResult struct {
	// Graph is the built graph, frozen.
	Graph *Graph

	// Warnings are the unresolved-reference warnings in document order.
	Warnings []model.Warning

	// RecordErrors are records that could not be added to the graph.
	RecordErrors []RecordError

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build was cancelled before every object
	// was processed. The graph holds the records completed so far.
	Incomplete bool
}

// HasErrors returns true if any record could not be added.
func (r *BuildResult) HasErrors() bool {
	return len(r.RecordErrors) > 0
}

// Success returns true if the build completed without record errors.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && !r.HasErrors()
}
