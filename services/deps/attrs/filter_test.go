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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

func raw(pairs ...string) []RawAttr {
	out := make([]RawAttr, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, RawAttr{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func names(a model.Attributes) []string {
	out := make([]string, 0, len(a))
	for _, attr := range a {
		out = append(out, attr.Name)
	}
	return out
}

func TestFilter_PointEndLine(t *testing.T) {
	f := New()
	res := f.Filter(model.CategoryPoint, "endLine", raw(
		"type", "endLine",
		"id", "2",
		"name", "A1",
		"lineColor", "black",
		"lineType", "solidLine",
		"angle", "270",
		"basePoint", "1",
		"length", "bust_circ/2",
		"mx", "0.13",
		"my", "0.26",
		"showPointName", "true",
	))

	assert.Equal(t, []string{"id", "name", "type", "mx", "my", "basePoint", "length", "angle"}, names(res.Attributes))
	assert.Empty(t, res.Missing)

	bp := res.Attributes.OfKind(model.AttrReference)
	require.Len(t, bp, 1)
	assert.Equal(t, "basePoint", bp[0].Name)
}

func TestFilter_NeverKeepsDisplayAttributes(t *testing.T) {
	f := New()
	var all []RawAttr
	for _, n := range DisplayAttributes {
		all = append(all, RawAttr{Name: n, Value: "x"})
	}
	all = append(all, RawAttr{Name: "id", Value: "1"})

	for _, c := range model.Categories {
		res := f.Filter(c, "", all)
		for _, a := range res.Attributes {
			assert.False(t, f.IsDisplay(a.Name), "category %s kept display attribute %s", c, a.Name)
		}
	}
}

func TestFilter_MissingAttributesReported(t *testing.T) {
	f := New()
	res := f.Filter(model.CategoryPoint, "alongLine", raw("id", "3", "firstPoint", "1"))
	assert.Equal(t, []string{"secondPoint", "length"}, res.Missing)
}

func TestFilter_UnknownCategoryPassesThrough(t *testing.T) {
	f := New()
	res := f.Filter(model.CategoryOther, "", raw(
		"id", "40",
		"idObject", "4",
		"lineColor", "red",
		"custom", "yes",
	))

	assert.Equal(t, []string{"id", "idObject", "custom"}, names(res.Attributes))
	kinds := res.Attributes.Map()
	assert.Equal(t, "4", kinds["idObject"])
	assert.Equal(t, model.AttrReference, res.Attributes[1].Kind)
	assert.Equal(t, model.AttrField, res.Attributes[2].Kind)
}

func TestFilter_ExtraDisplayAttributes(t *testing.T) {
	f := New(WithExtraDisplayAttributes("description"))
	res := f.Filter(model.CategoryVariable, "", raw("name", "#a", "formula", "1", "description", "note"))
	assert.Equal(t, []string{"name", "formula"}, names(res.Attributes))
}

func TestFilter_DropsUnlistedAttributesOfKnownCategory(t *testing.T) {
	f := New()
	res := f.Filter(model.CategoryLine, "", raw("id", "5", "firstPoint", "1", "secondPoint", "2", "extra", "x"))
	assert.Equal(t, []string{"id", "firstPoint", "secondPoint"}, names(res.Attributes))
}

func TestRequired_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, []string{"formula"}, Required(model.CategoryVariable, "anything"))
	assert.Nil(t, Required(model.CategoryOther, ""))
}

func TestAllowList(t *testing.T) {
	rules := AllowList(model.CategoryLine)
	require.Len(t, rules, 5)
	assert.Equal(t, "id", rules[0].Name)
	assert.Nil(t, AllowList(model.CategoryOther))
}
