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
	"time"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// GraphState represents the lifecycle state of a graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is being populated.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return fmt.Sprintf("GraphState(%d)", s)
	}
}

// DefaultMaxRecords is the default record capacity of a graph.
const DefaultMaxRecords = 1_000_000

// Record lists the dependencies of one object.
type Record struct {
	// ID is the object id.
	ID string `json:"id"`

	// Name is the object key.
	Name string `json:"name"`

	// Category is the object category.
	Category model.Category `json:"category"`

	// Dependencies are the direct dependencies: identifier references
	// first, then formula references, without duplicates.
	Dependencies []model.Dependency `json:"dependencies"`
}

// DependsOn reports whether the record lists id as a direct dependency.
func (r *Record) DependsOn(id string) bool {
	for _, d := range r.Dependencies {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Unresolved returns the unresolved dependencies of the record.
func (r *Record) Unresolved() []model.Dependency {
	var out []model.Dependency
	for _, d := range r.Dependencies {
		if d.Unresolved {
			out = append(out, d)
		}
	}
	return out
}

// GraphOptions configures graph capacity limits.
type GraphOptions struct {
	// MaxRecords is the maximum number of records. Default: 1,000,000.
	MaxRecords int
}

// DefaultGraphOptions returns sensible defaults.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{MaxRecords: DefaultMaxRecords}
}

// GraphOption is a functional option for configuring a Graph.
type GraphOption func(*GraphOptions)

// WithMaxRecords sets the maximum record count.
func WithMaxRecords(n int) GraphOption {
	return func(o *GraphOptions) {
		if n > 0 {
			o.MaxRecords = n
		}
	}
}

// Graph is the DependencyGraph of one pattern document.
//
// Description:
//
//	Maps object ids to records. Iteration order is the order records were
//	added, which the builder makes document order.
//
// Thread Safety:
//
//	Not safe for concurrent use while building. Safe for concurrent reads
//	after Freeze.
type Graph struct {
	// Source is the path of the document the graph was built from.
	Source string

	// BuiltAtMilli is when Freeze was called (Unix milliseconds UTC).
	BuiltAtMilli int64

	records map[string]*Record
	order   []string
	deps    int
	state   GraphState
	options GraphOptions
}

// NewGraph creates an empty graph in the building state.
//
// Example:
//
//	g := graph.NewGraph("shirt.sm2d", graph.WithMaxRecords(5000))
func NewGraph(source string, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Graph{
		Source:  source,
		records: make(map[string]*Record),
		state:   GraphStateBuilding,
		options: options,
	}
}

// AddRecord appends a record.
//
// Outputs:
//
//	error - ErrGraphFrozen, ErrInvalidRecord, ErrDuplicateRecord or
//	        ErrMaxRecordsExceeded.
func (g *Graph) AddRecord(r *Record) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if r == nil || r.ID == "" {
		return ErrInvalidRecord
	}
	if _, exists := g.records[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, r.ID)
	}
	if len(g.records) >= g.options.MaxRecords {
		return ErrMaxRecordsExceeded
	}
	g.records[r.ID] = r
	g.order = append(g.order, r.ID)
	g.deps += len(r.Dependencies)
	return nil
}

// Freeze makes the graph read-only and stamps BuiltAtMilli.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// State returns the lifecycle state.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen reports whether Freeze has been called.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Get returns the record for id.
func (g *Graph) Get(id string) (*Record, bool) {
	r, ok := g.records[id]
	return r, ok
}

// Records returns the records in insertion order.
func (g *Graph) Records() []*Record {
	out := make([]*Record, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.records[id])
	}
	return out
}

// IDs returns the record ids in insertion order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of records.
func (g *Graph) Len() int {
	return len(g.records)
}

// DependencyCount returns the total number of dependencies over all records.
func (g *Graph) DependencyCount() int {
	return g.deps
}
