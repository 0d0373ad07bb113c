// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attrs

import "github.com/AleutianAI/seamlydeps/services/deps/model"

// Rule describes one allowed attribute.
type Rule struct {
	Name string
	Kind model.AttrKind
}

func ref(name string) Rule     { return Rule{Name: name, Kind: model.AttrReference} }
func formula(name string) Rule { return Rule{Name: name, Kind: model.AttrFormula} }
func field(name string) Rule   { return Rule{Name: name, Kind: model.AttrField} }

// identity attributes are kept for every category.
var identity = []Rule{field("id"), field("name"), field("type")}

// allowLists holds the per-category attribute rules in output order.
var allowLists = map[model.Category][]Rule{
	model.CategoryPoint: {
		formula("x"), formula("y"), field("mx"), field("my"),
		ref("basePoint"), ref("firstPoint"), ref("secondPoint"), ref("thirdPoint"),
		ref("p1Line"), ref("p2Line"),
		ref("p1Line1"), ref("p2Line1"), ref("p1Line2"), ref("p2Line2"),
		ref("pShoulder"), ref("axisP1"), ref("axisP2"),
		ref("center"), ref("tangent"),
		ref("curve"), ref("curve1"), ref("curve2"),
		ref("arc"), ref("spline"), ref("splinePath"),
		ref("firstArc"), ref("secondArc"),
		ref("firstCircleCenter"), ref("secondCircleCenter"),
		ref("cCenter"), ref("tCenter"),
		ref("idObject"),
		formula("length"), formula("angle"), formula("radius"),
		formula("firstCircleRadius"), formula("secondCircleRadius"),
		formula("cRadius"), formula("tRadius"),
		field("crossPoint"), field("vCrossPoint"), field("hCrossPoint"),
	},
	model.CategoryLine: {
		ref("firstPoint"), ref("secondPoint"),
	},
	model.CategoryArc: {
		ref("center"),
		formula("radius"), formula("radius1"), formula("radius2"),
		formula("angle1"), formula("angle2"),
		formula("length"), formula("rotationAngle"),
	},
	model.CategorySpline: {
		ref("point1"), ref("point2"), ref("point3"), ref("point4"),
		formula("angle1"), formula("angle2"),
		formula("length1"), formula("length2"),
	},
	model.CategoryVariable: {
		formula("formula"), field("description"),
	},
	model.CategoryMeasurement: {
		formula("value"), formula("formula"),
		field("full_name"), field("description"),
	},
	model.CategoryDraftBlock: {},
	model.CategoryOperation: {
		ref("center"), ref("originPoint"), ref("p1Line"), ref("p2Line"),
		formula("angle"), formula("length"), formula("rotationAngle"),
		field("axisType"), field("suffix"),
	},
}

// attributeKinds classifies attributes of unknown element types.
var attributeKinds = func() map[string]model.AttrKind {
	m := make(map[string]model.AttrKind)
	for _, rules := range allowLists {
		for _, s := range rules {
			if _, ok := m[s.Name]; !ok {
				m[s.Name] = s.Kind
			}
		}
	}
	// Structural child attributes.
	m["pSpline"] = model.AttrReference
	m["object"] = model.AttrReference
	return m
}()

// DisplayAttributes is the deny-list of presentation-only attributes. They
// are removed from every category, known or not.
var DisplayAttributes = []string{
	"lineType",
	"lineWeight",
	"lineColor",
	"color",
	"penStyle",
	"penWidth",
	"lineStyle",
	"typeLine",
	"showPointName",
	"showPointName1",
	"showPointName2",
	"showLabel",
	"showLabel1",
	"showLabel2",
	"hide",
	"visible",
	"inUse",
}

// requiredByKind lists the attributes a point, arc or spline of a given
// source type cannot work without.
var requiredByKind = map[model.Category]map[string][]string{
	model.CategoryPoint: {
		"single":                     {"x", "y"},
		"endLine":                    {"basePoint", "length", "angle"},
		"alongLine":                  {"firstPoint", "secondPoint", "length"},
		"normal":                     {"firstPoint", "secondPoint", "length"},
		"bisector":                   {"firstPoint", "secondPoint", "thirdPoint", "length"},
		"shoulder":                   {"p1Line", "p2Line", "pShoulder", "length"},
		"pointOfContact":             {"center", "firstPoint", "secondPoint", "radius"},
		"height":                     {"basePoint", "p1Line", "p2Line"},
		"triangle":                   {"axisP1", "axisP2", "firstPoint", "secondPoint"},
		"lineIntersect":              {"p1Line1", "p2Line1", "p1Line2", "p2Line2"},
		"pointOfIntersection":        {"firstPoint", "secondPoint"},
		"lineIntersectAxis":          {"basePoint", "p1Line", "p2Line", "angle"},
		"curveIntersectAxis":         {"basePoint", "curve", "angle"},
		"cutArc":                     {"arc", "length"},
		"cutSpline":                  {"spline", "length"},
		"cutSplinePath":              {"splinePath", "length"},
		"pointOfIntersectionArcs":    {"firstArc", "secondArc"},
		"pointOfIntersectionCurves":  {"curve1", "curve2"},
		"pointOfIntersectionCircles": {"firstCircleCenter", "secondCircleCenter", "firstCircleRadius", "secondCircleRadius"},
		"pointFromCircleAndTangent":  {"cCenter", "tangent", "cRadius"},
		"pointFromArcAndTangent":     {"arc", "tangent"},
	},
	model.CategoryLine: {
		"": {"firstPoint", "secondPoint"},
	},
	model.CategoryArc: {
		"simple":        {"center", "radius", "angle1", "angle2"},
		"arcWithLength": {"center", "radius", "angle1", "length"},
	},
	model.CategorySpline: {
		"simpleInteractive": {"point1", "point4"},
		"cubicBezier":       {"point1", "point2", "point3", "point4"},
	},
	model.CategoryVariable: {
		"": {"formula"},
	},
}
