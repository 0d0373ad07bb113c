// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the types shared by every stage of the dependency
// extraction pipeline.
//
// # Ownership Model
//
// FilteredElements are created by the categorizer and never mutated after
// they are inserted into an Objects collection. Downstream stages (graph
// builder, tracer, report) only read them.
//
// # Thread Safety
//
// Objects is not safe for concurrent mutation, but once categorization
// returns it is read-only and may be shared across goroutines.
package model

import "strings"

// Category is the closed set of object kinds found in a pattern document.
type Category string

const (
	// CategoryPoint is a geometric point (single, endLine, alongLine, ...).
	CategoryPoint Category = "point"

	// CategoryLine is a straight segment between two points.
	CategoryLine Category = "line"

	// CategoryArc covers circular and elliptical arcs.
	CategoryArc Category = "arc"

	// CategorySpline covers simple, cubic and path splines.
	CategorySpline Category = "spline"

	// CategoryVariable is a user increment, conventionally named "#Name".
	CategoryVariable Category = "variable"

	// CategoryMeasurement is a body measurement.
	CategoryMeasurement Category = "measurement"

	// CategoryDraftBlock is a named drawing block.
	CategoryDraftBlock Category = "draftBlock"

	// CategoryOperation is a transform (move, rotate, flip) over other objects.
	CategoryOperation Category = "operation"

	// CategoryOther is the catch-all for identifiable elements of unknown type.
	CategoryOther Category = "other"

	// CategoryAxis is the synthetic category of the fixed coordinate axes.
	CategoryAxis Category = "axis"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryPoint,
	CategoryLine,
	CategoryArc,
	CategorySpline,
	CategoryVariable,
	CategoryMeasurement,
	CategoryDraftBlock,
	CategoryOperation,
	CategoryOther,
	CategoryAxis,
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Well-known identifiers of the synthetic coordinate axes. They are
// registered with every resolver before a document is walked.
const (
	AxisHorizontalID = "axis:horizontal"
	AxisVerticalID   = "axis:vertical"

	AxisHorizontalName = "AxisX"
	AxisVerticalName   = "AxisY"
)

// LineSpans lists, per point kind, the pairs of point attributes that span
// the lines an intersection point is constructed on.
var LineSpans = map[string][][2]string{
	"lineIntersect":     {{"p1Line1", "p2Line1"}, {"p1Line2", "p2Line2"}},
	"lineIntersectAxis": {{"p1Line", "p2Line"}},
	"height":            {{"p1Line", "p2Line"}},
}

// DefaultVariablePrefix marks user variables in names and formulas.
const DefaultVariablePrefix = "#"

// AttrKind classifies a retained attribute.
type AttrKind int

const (
	// AttrField is a plain value that carries no dependency.
	AttrField AttrKind = iota

	// AttrReference holds the identifier of another object.
	AttrReference

	// AttrFormula holds an algebraic expression that may name other objects.
	AttrFormula
)

var attrKindNames = map[AttrKind]string{
	AttrField:     "field",
	AttrReference: "reference",
	AttrFormula:   "formula",
}

// String returns the kind name.
func (k AttrKind) String() string {
	if name, ok := attrKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Attribute is one retained name/value pair.
type Attribute struct {
	Name  string   `json:"name"`
	Value string   `json:"value"`
	Kind  AttrKind `json:"kind"`
}

// Attributes is an ordered attribute list. Order follows the category's
// allow-list so every consumer sees the same sequence.
type Attributes []Attribute

// Get returns the value of the named attribute.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Value returns the named attribute or the empty string.
func (a Attributes) Value(name string) string {
	v, _ := a.Get(name)
	return v
}

// OfKind returns the attributes of the given kind, in order.
func (a Attributes) OfKind(kind AttrKind) Attributes {
	var out Attributes
	for _, attr := range a {
		if attr.Kind == kind {
			out = append(out, attr)
		}
	}
	return out
}

// Map returns the attributes as a plain map.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Name] = attr.Value
	}
	return m
}

// FilteredElement is a categorized object reduced to its functional
// attributes.
//
// Description:
//
//	ID is unique within one run. Name is the display key and may equal ID
//	when the source element is unnamed. Kind is the source "type"
//	attribute (endLine, cutArc, simpleInteractive, ...). Members holds
//	references collected from structural children, such as spline path
//	points and operation source items.
type FilteredElement struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   Category   `json:"category"`
	Tag        string     `json:"tag"`
	Kind       string     `json:"kind,omitempty"`
	Block      string     `json:"block,omitempty"`
	Seq        int        `json:"seq"`
	Synthetic  bool       `json:"synthetic,omitempty"`
	Attributes Attributes `json:"attributes"`
	Members    []string   `json:"members,omitempty"`
}

// Key returns the name used to store the element in Objects.
func (e *FilteredElement) Key() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// IsHashVariable reports whether the element key carries the variable prefix.
func (e *FilteredElement) IsHashVariable(prefix string) bool {
	if prefix == "" {
		prefix = DefaultVariablePrefix
	}
	return strings.HasPrefix(e.Key(), prefix)
}

// Dependency is one edge target of a dependency record.
//
// Identity is the (ID, Name) pair. Unresolved dependencies carry the raw
// token as both ID and Name.
type Dependency struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   Category `json:"category,omitempty"`
	Unresolved bool     `json:"unresolved,omitempty"`
	Via        string   `json:"via,omitempty"`
}

// Same reports whether two dependencies have the same identity.
func (d Dependency) Same(other Dependency) bool {
	return d.ID == other.ID && d.Name == other.Name
}

// DedupeDependencies removes repeated (ID, Name) pairs keeping the first.
func DedupeDependencies(deps []Dependency) []Dependency {
	if len(deps) == 0 {
		return deps
	}
	type key struct{ id, name string }
	seen := make(map[key]struct{}, len(deps))
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		k := key{d.ID, d.Name}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}
