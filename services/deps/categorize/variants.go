// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package categorize

import (
	"strconv"
	"strings"

	"github.com/AleutianAI/seamlydeps/services/deps/document"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// lookup resolves an id to its name.
type lookup func(id string) (string, bool)

// entryLookup resolves an id to its registered category.
type entryLookup func(id string) (model.Category, bool)

// variant holds the per-category rules of the walk.
type variant interface {
	// Category is the category the variant produces.
	Category() model.Category

	// Members collects references from structural children.
	Members(el *document.Element) []string

	// Derived returns objects implied by the element.
	Derived(el *document.Element, fe *model.FilteredElement, names lookup, cats entryLookup) []*model.FilteredElement

	// Descend reports whether the walker visits the element's children.
	Descend() bool
}

// namer is implemented by variants that derive a key for elements without a
// name attribute. Names are derived after the walk, so names may refer to
// elements later in the document. An empty result falls back to the id.
type namer interface {
	Name(el *document.Element, fe *model.FilteredElement, names lookup) string
}

// tagVariants maps element tags to their variant. Unlisted tags use other.
var tagVariants = map[string]variant{
	"point":       pointVariant{},
	"line":        lineVariant{},
	"arc":         arcVariant{prefix: "Arc_"},
	"elArc":       arcVariant{prefix: "ElArc_"},
	"spline":      splineVariant{},
	"increment":   simpleVariant{category: model.CategoryVariable},
	"variable":    simpleVariant{category: model.CategoryVariable},
	"m":           simpleVariant{category: model.CategoryMeasurement},
	"measurement": simpleVariant{category: model.CategoryMeasurement},
	"draftBlock":  simpleVariant{category: model.CategoryDraftBlock, descend: true},
	"draw":        simpleVariant{category: model.CategoryDraftBlock, descend: true},
	"operation":   operationVariant{},
}

func variantFor(tag string) variant {
	if v, ok := tagVariants[tag]; ok {
		return v
	}
	return otherVariant{}
}

// CategoryOf returns the category assigned to an element tag.
func CategoryOf(tag string) model.Category {
	return variantFor(tag).Category()
}

// noDerived is embedded by variants that imply no extra objects.
type noDerived struct{}

func (noDerived) Derived(*document.Element, *model.FilteredElement, lookup, entryLookup) []*model.FilteredElement {
	return nil
}

type noMembers struct{}

func (noMembers) Members(*document.Element) []string { return nil }

// joinName builds prefix + a + "_" + b, or "" when either part is missing.
func joinName(prefix, a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	return prefix + a + "_" + b
}

// refName resolves the id held in attribute attr of fe.
func refName(fe *model.FilteredElement, attr string, names lookup) string {
	id := fe.Attributes.Value(attr)
	if id == "" {
		return ""
	}
	if n, ok := names(id); ok {
		return n
	}
	return ""
}

// =============================================================================
// simple
// =============================================================================

type simpleVariant struct {
	noDerived
	noMembers
	category model.Category
	descend  bool
}

func (v simpleVariant) Category() model.Category { return v.category }
func (v simpleVariant) Descend() bool            { return v.descend }

// =============================================================================
// point
// =============================================================================

// implicitLineBase names, per point kind, the attribute holding the start of
// the line the tool draws to the new point.
var implicitLineBase = map[string]string{
	"endLine":            "basePoint",
	"alongLine":          "firstPoint",
	"normal":             "firstPoint",
	"bisector":           "secondPoint",
	"height":             "basePoint",
	"lineIntersectAxis":  "basePoint",
	"curveIntersectAxis": "basePoint",
}

// ImplicitLineSuffix is appended to a point id to form the id of the line
// its tool draws.
const ImplicitLineSuffix = ".line"

// ImplicitSpanSuffix is appended to a point id plus the span number to form
// the id of a line an intersection point is built on.
const ImplicitSpanSuffix = ".span"

// ImplicitKind is the Kind of tool lines the document does not declare.
const ImplicitKind = "implicit"

type pointVariant struct{ noMembers }

func (pointVariant) Category() model.Category { return model.CategoryPoint }
func (pointVariant) Descend() bool            { return false }

// Derived returns the implicit lines of a point: the line its tool draws
// from the base point, and the lines an intersection point is built on.
// They are kept only when no declared line claims their name.
func (pointVariant) Derived(_ *document.Element, fe *model.FilteredElement, names lookup, _ entryLookup) []*model.FilteredElement {
	var out []*model.FilteredElement
	if baseAttr, ok := implicitLineBase[fe.Kind]; ok && fe.Name != "" {
		baseID := fe.Attributes.Value(baseAttr)
		name := joinName("Line_", refName(fe, baseAttr, names), fe.Name)
		if baseID != "" && name != "" {
			out = append(out, implicitLine(fe, fe.ID+ImplicitLineSuffix, name, baseID, fe.ID))
		}
	}
	for i, span := range model.LineSpans[fe.Kind] {
		p1, p2 := fe.Attributes.Value(span[0]), fe.Attributes.Value(span[1])
		name := joinName("Line_", refName(fe, span[0], names), refName(fe, span[1], names))
		if p1 == "" || p2 == "" || name == "" {
			continue
		}
		id := fe.ID + ImplicitSpanSuffix + strconv.Itoa(i+1)
		out = append(out, implicitLine(fe, id, name, p1, p2))
	}
	return out
}

func implicitLine(fe *model.FilteredElement, id, name, first, second string) *model.FilteredElement {
	return &model.FilteredElement{
		ID:       id,
		Name:     name,
		Category: model.CategoryLine,
		Tag:      "line",
		Kind:     ImplicitKind,
		Block:    fe.Block,
		Attributes: model.Attributes{
			{Name: "firstPoint", Value: first, Kind: model.AttrReference},
			{Name: "secondPoint", Value: second, Kind: model.AttrReference},
		},
		Synthetic: true,
	}
}

// =============================================================================
// line
// =============================================================================

type lineVariant struct {
	noDerived
	noMembers
}

func (lineVariant) Category() model.Category { return model.CategoryLine }
func (lineVariant) Descend() bool            { return false }

func (lineVariant) Name(_ *document.Element, fe *model.FilteredElement, names lookup) string {
	return joinName("Line_", refName(fe, "firstPoint", names), refName(fe, "secondPoint", names))
}

// =============================================================================
// arc
// =============================================================================

type arcVariant struct {
	noDerived
	noMembers
	prefix string
}

func (arcVariant) Category() model.Category { return model.CategoryArc }
func (arcVariant) Descend() bool            { return false }

func (v arcVariant) Name(_ *document.Element, fe *model.FilteredElement, names lookup) string {
	return joinName(v.prefix, refName(fe, "center", names), fe.ID)
}

// =============================================================================
// spline
// =============================================================================

type splineVariant struct{ noDerived }

func (splineVariant) Category() model.Category { return model.CategorySpline }
func (splineVariant) Descend() bool            { return false }

// Members returns the point ids of a path spline's pathPoint children.
func (splineVariant) Members(el *document.Element) []string {
	var out []string
	for _, c := range el.Children {
		if c.Tag != "pathPoint" {
			continue
		}
		if id, ok := c.Attr("pSpline"); ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (splineVariant) Name(_ *document.Element, fe *model.FilteredElement, names lookup) string {
	if len(fe.Members) > 0 {
		first, ok1 := names(fe.Members[0])
		last, ok2 := names(fe.Members[len(fe.Members)-1])
		if ok1 && ok2 {
			return joinName("SplPath_", first, last)
		}
		return ""
	}
	return joinName("Spl_", refName(fe, "point1", names), refName(fe, "point4", names))
}

// =============================================================================
// operation
// =============================================================================

type operationVariant struct{}

func (operationVariant) Category() model.Category { return model.CategoryOperation }
func (operationVariant) Descend() bool            { return false }

// Members returns the ids of the operation's source items.
func (operationVariant) Members(el *document.Element) []string {
	return itemIDs(el, "source")
}

// Derived returns one object per destination item. Destination i is the
// transformed copy of source i and is named after it plus the suffix.
func (operationVariant) Derived(el *document.Element, fe *model.FilteredElement, names lookup, cats entryLookup) []*model.FilteredElement {
	dest := itemIDs(el, "destination")
	if len(dest) == 0 {
		return nil
	}
	suffix := fe.Attributes.Value("suffix")
	out := make([]*model.FilteredElement, 0, len(dest))
	for i, id := range dest {
		obj := &model.FilteredElement{
			ID:       id,
			Name:     id,
			Category: model.CategoryPoint,
			Tag:      "item",
			Kind:     "operationResult",
			Block:    fe.Block,
			Attributes: model.Attributes{
				{Name: "operation", Value: fe.ID, Kind: model.AttrReference},
			},
		}
		if i < len(fe.Members) {
			src := fe.Members[i]
			obj.Attributes = append(obj.Attributes, model.Attribute{Name: "source", Value: src, Kind: model.AttrReference})
			if n, ok := names(src); ok {
				obj.Name = n + suffix
			}
			if c, ok := cats(src); ok && c != "" {
				obj.Category = c
			}
		}
		out = append(out, obj)
	}
	return out
}

// itemIDs returns the idObject values of <item> elements under the named
// child container.
func itemIDs(el *document.Element, container string) []string {
	c, ok := el.Child(container)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range c.Children {
		if item.Tag != "item" {
			continue
		}
		if id, ok := item.Attr("idObject"); ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}

// =============================================================================
// other
// =============================================================================

type otherVariant struct{ noDerived }

func (otherVariant) Category() model.Category { return model.CategoryOther }
func (otherVariant) Descend() bool            { return true }

// Members returns the objects a detail piece is built from. Other elements
// have none.
func (otherVariant) Members(el *document.Element) []string {
	if el.Tag != "piece" && el.Tag != "detail" {
		return nil
	}
	var out []string
	el.Walk(func(e *document.Element) bool {
		if e.Tag == "node" {
			if id, ok := e.Attr("idObject"); ok && strings.TrimSpace(id) != "" {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}
