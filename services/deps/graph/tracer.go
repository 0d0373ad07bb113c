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
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// Trace returns the transitive dependencies of id.
//
// Description:
//
//	Depth-first over the records reachable from id. Every dependency is
//	emitted once, at its first occurrence, and expanded at most once, so
//	cyclic documents terminate. The start id is not emitted unless a cycle
//	leads back to it. Unresolved dependencies are emitted but never
//	expanded. Cancellation stops the walk and returns what was collected.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	id - The object id to trace from.
//
// Outputs:
//
//	[]model.Dependency - Dependencies in discovery order. Nil if id has no
//	record.
//
// Example:
//
//	deps := g.Trace(ctx, "-1")
//	for _, d := range deps {
//	    fmt.Println(d.ID, d.Name)
//	}
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func (g *Graph) Trace(ctx context.Context, id string) []model.Dependency {
	ctx, span := startQuerySpan(ctx, "Trace", id)
	defer span.End()
	start := time.Now()
	defer func() { recordQueryMetrics(ctx, "trace", time.Since(start)) }()

	if _, ok := g.records[id]; !ok {
		return nil
	}

	t := &traceWalk{
		graph:    g,
		expanded: map[string]bool{id: true},
		emitted:  make(map[string]bool),
	}
	t.walk(ctx, id)

	span.SetAttributes(attribute.Int("graph.result_count", len(t.out)))
	return t.out
}

type traceWalk struct {
	graph    *Graph
	expanded map[string]bool
	emitted  map[string]bool
	out      []model.Dependency
}

func (t *traceWalk) walk(ctx context.Context, id string) {
	if ctx.Err() != nil {
		return
	}
	rec, ok := t.graph.records[id]
	if !ok {
		return
	}
	for _, d := range rec.Dependencies {
		if !t.emitted[d.ID] {
			t.emitted[d.ID] = true
			t.out = append(t.out, d)
		}
		if d.Unresolved || t.expanded[d.ID] {
			continue
		}
		t.expanded[d.ID] = true
		t.walk(ctx, d.ID)
	}
}

// Dependents returns the records that list id as a direct dependency, in
// document order. It is a linear scan over every record.
//
// Thread Safety: Safe for concurrent use on frozen graphs.
func (g *Graph) Dependents(ctx context.Context, id string) []*Record {
	ctx, span := startQuerySpan(ctx, "Dependents", id)
	defer span.End()
	start := time.Now()
	defer func() { recordQueryMetrics(ctx, "dependents", time.Since(start)) }()

	var out []*Record
	for _, rid := range g.order {
		rec := g.records[rid]
		if rec.DependsOn(id) {
			out = append(out, rec)
		}
	}
	span.SetAttributes(attribute.Int("graph.result_count", len(out)))
	return out
}

// Analysis is the per-object dependency report.
type Analysis struct {
	// ID is the analysed object id.
	ID string `json:"id"`

	// Name is the object key.
	Name string `json:"name"`

	// Category is the object category. Empty when Found is false.
	Category model.Category `json:"category,omitempty"`

	// Kind is the source type attribute of the object.
	Kind string `json:"kind,omitempty"`

	// Attributes are the functional attributes of the object.
	Attributes model.Attributes `json:"attributes,omitempty"`

	// Dependencies are the direct dependencies.
	Dependencies []model.Dependency `json:"dependencies"`

	// Transitive is the full dependency closure.
	Transitive []model.Dependency `json:"transitive"`

	// Dependents are the objects that use this one directly.
	Dependents []model.Dependency `json:"dependents"`

	// Found is false when the id names no stored object, for example a
	// variable referenced by formulas but never defined.
	Found bool `json:"found"`
}

// Analyze combines the record, trace and dependents of one object.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	objects - The categorized objects the graph was built from. May be nil.
//	id - The object id.
//
// Outputs:
//
//	Analysis - Always populated; Found reports whether id is a stored object.
func (g *Graph) Analyze(ctx context.Context, objects *model.Objects, id string) Analysis {
	a := Analysis{
		ID:           id,
		Name:         id,
		Dependencies: []model.Dependency{},
		Transitive:   []model.Dependency{},
		Dependents:   []model.Dependency{},
	}

	if objects != nil {
		if e, ok := objects.ByID(id); ok {
			a.Found = true
			a.Name = e.Key()
			a.Category = e.Category
			a.Kind = e.Kind
			a.Attributes = e.Attributes
		}
	}
	if rec, ok := g.records[id]; ok {
		a.Found = true
		a.Name = rec.Name
		a.Category = rec.Category
		a.Dependencies = append(a.Dependencies, rec.Dependencies...)
	}

	a.Transitive = append(a.Transitive, g.Trace(ctx, id)...)
	for _, rec := range g.Dependents(ctx, id) {
		a.Dependents = append(a.Dependents, model.Dependency{ID: rec.ID, Name: rec.Name, Category: rec.Category})
	}
	return a
}

// HashVariables returns the objects whose key starts with prefix, sorted by
// key. An empty prefix means model.DefaultVariablePrefix.
func HashVariables(objects *model.Objects, prefix string) []*model.FilteredElement {
	if objects == nil {
		return nil
	}
	var out []*model.FilteredElement
	for _, e := range objects.All() {
		if e.IsHashVariable(prefix) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Summary is the aggregate view of a categorized document and its graph.
type Summary struct {
	TotalObjects      int                    `json:"total_objects"`
	ObjectTypes       int                    `json:"object_types"`
	Categories        map[model.Category]int `json:"categories"`
	RecordsWithDeps   int                    `json:"records_with_dependencies"`
	TotalDependencies int                    `json:"total_dependencies"`
	UnresolvedCount   int                    `json:"unresolved"`
	HashVariableCount int                    `json:"hash_variables"`
}

// Summarize computes summary statistics over objects and g.
func Summarize(g *Graph, objects *model.Objects, prefix string) Summary {
	s := Summary{Categories: map[model.Category]int{}}
	if objects != nil {
		s.TotalObjects = objects.Len()
		s.Categories = objects.Counts()
		s.ObjectTypes = len(s.Categories)
		s.HashVariableCount = len(HashVariables(objects, prefix))
	}
	if g != nil {
		for _, rec := range g.Records() {
			if len(rec.Dependencies) > 0 {
				s.RecordsWithDeps++
			}
			s.UnresolvedCount += len(rec.Unresolved())
		}
		s.TotalDependencies = g.DependencyCount()
	}
	return s
}
