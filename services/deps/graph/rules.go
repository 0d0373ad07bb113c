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
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/seamlydeps/services/deps/formula"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// NameIndex is the read side of the identifier table used by the builder.
type NameIndex interface {
	LookupID(name string) (string, bool)
	LookupName(id string) (string, bool)
	CategoryOf(id string) (model.Category, bool)
}

// extraction is the dependency list of one object plus what was found on
// the way.
type extraction struct {
	deps       []model.Dependency
	warnings   []model.Warning
	references int
	formulas   int
	unresolved int
}

// axisKinds are the point kinds that intersect an implicit coordinate axis.
var axisKinds = map[string]bool{
	"lineIntersectAxis":  true,
	"curveIntersectAxis": true,
}

// extract computes the dependencies of e.
//
// Description:
//
//	Identifier references come first: reference attributes in allow-list
//	order, then members, then the lines and axes a construction point is
//	built on. Formula attributes follow in allow-list order. The combined
//	list is de-duplicated keeping the first occurrence.
func extract(e *model.FilteredElement, idx NameIndex, ex *formula.Extractor, ms formula.MeasurementSet) extraction {
	var x extraction

	for _, attr := range e.Attributes.OfKind(model.AttrReference) {
		x.addReference(e, attr.Value, attr.Name, idx)
	}
	for _, id := range e.Members {
		x.addReference(e, id, "member", idx)
	}
	if e.Category == model.CategoryPoint {
		x.addConstruction(e, idx)
	}
	x.deps = model.DedupeDependencies(x.deps)
	x.references = len(x.deps)

	for _, attr := range e.Attributes.OfKind(model.AttrFormula) {
		for _, d := range ex.Extract(attr.Value, idx, ms) {
			d.Via = attr.Name
			if d.Unresolved {
				x.unresolvedToken(e, d.Name, attr.Name)
			}
			x.deps = append(x.deps, d)
		}
	}
	x.deps = model.DedupeDependencies(x.deps)
	x.formulas = len(x.deps) - x.references

	for _, d := range x.deps {
		if d.Unresolved {
			x.unresolved++
		}
	}
	return x
}

// addReference resolves an id held by an attribute or member.
func (x *extraction) addReference(e *model.FilteredElement, id, via string, idx NameIndex) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	name, ok := idx.LookupName(id)
	if !ok {
		x.deps = append(x.deps, model.Dependency{ID: id, Name: id, Unresolved: true, Via: via})
		x.warnings = append(x.warnings, model.Warning{
			Kind:    model.WarnUnresolvedReference,
			Subject: e.Key(),
			Detail:  fmt.Sprintf("%s %q references unknown id %s via %s", e.Category, e.Key(), id, via),
		})
		return
	}
	cat, _ := idx.CategoryOf(id)
	x.deps = append(x.deps, model.Dependency{ID: id, Name: name, Category: cat, Via: via})
}

// addConstruction adds the lines an intersection point is built on and the
// axis an axis-intersection point crosses.
func (x *extraction) addConstruction(e *model.FilteredElement, idx NameIndex) {
	for _, span := range model.LineSpans[e.Kind] {
		if d, ok := lineBetween(e.Attributes.Value(span[0]), e.Attributes.Value(span[1]), idx); ok {
			x.deps = append(x.deps, d)
		}
	}
	if axisKinds[e.Kind] {
		id, name := AxisFor(e.Attributes.Value("angle"))
		x.deps = append(x.deps, model.Dependency{ID: id, Name: name, Category: model.CategoryAxis, Via: "axis"})
	}
}

func (x *extraction) unresolvedToken(e *model.FilteredElement, token, via string) {
	x.warnings = append(x.warnings, model.Warning{
		Kind:    model.WarnUnresolvedReference,
		Subject: e.Key(),
		Detail:  fmt.Sprintf("%s %q formula %s references unknown name %q", e.Category, e.Key(), via, token),
	})
}

// lineBetween finds the line object spanning two point ids, in either
// direction.
func lineBetween(p1, p2 string, idx NameIndex) (model.Dependency, bool) {
	if p1 == "" || p2 == "" {
		return model.Dependency{}, false
	}
	n1, ok1 := idx.LookupName(p1)
	n2, ok2 := idx.LookupName(p2)
	if !ok1 || !ok2 {
		return model.Dependency{}, false
	}
	for _, name := range []string{"Line_" + n1 + "_" + n2, "Line_" + n2 + "_" + n1} {
		if id, ok := idx.LookupID(name); ok {
			return model.Dependency{ID: id, Name: name, Category: model.CategoryLine, Via: "intersects"}, true
		}
	}
	return model.Dependency{}, false
}

// AxisFor picks the coordinate axis for an axis-intersection angle. A
// literal angle of 90 or 270 degrees (modulo 360) selects the vertical
// axis; every other angle, including formulas, selects the horizontal one.
func AxisFor(angle string) (id, name string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(angle), 64)
	if err == nil {
		a := math.Mod(math.Mod(v, 360)+360, 360)
		if math.Abs(a-90) < 1e-9 || math.Abs(a-270) < 1e-9 {
			return model.AxisVerticalID, model.AxisVerticalName
		}
	}
	return model.AxisHorizontalID, model.AxisHorizontalName
}
