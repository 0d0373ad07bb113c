// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package attrs reduces raw element attributes to the functionally
// relevant subset for each object category.
//
// Filtering is table driven and never fails. A known category keeps only the
// attributes on its allow-list; an unknown category keeps everything not on
// the display deny-list.
package attrs

import "github.com/AleutianAI/seamlydeps/services/deps/model"

// Result is the outcome of filtering one element.
type Result struct {
	// Attributes are the retained attributes in allow-list order.
	Attributes model.Attributes

	// Missing names the attributes required for the element kind that were
	// absent from the source.
	Missing []string
}

// Filter applies allow-lists and the display deny-list.
//
// Thread Safety: Safe for concurrent use after construction.
type Filter struct {
	deny map[string]struct{}
}

// Option configures a Filter.
type Option func(*Filter)

// WithExtraDisplayAttributes adds names to the display deny-list.
func WithExtraDisplayAttributes(names ...string) Option {
	return func(f *Filter) {
		for _, n := range names {
			f.deny[n] = struct{}{}
		}
	}
}

// New creates a Filter with the default tables.
func New(opts ...Option) *Filter {
	f := &Filter{deny: make(map[string]struct{}, len(DisplayAttributes))}
	for _, n := range DisplayAttributes {
		f.deny[n] = struct{}{}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsDisplay reports whether name is on the deny-list.
func (f *Filter) IsDisplay(name string) bool {
	_, ok := f.deny[name]
	return ok
}

// Filter reduces raw to the attributes relevant for category and kind.
//
// Description:
//
//	Identity attributes (id, name, type) are kept first, then the
//	category's allow-list in table order. For categories without an
//	allow-list every non-display attribute is kept in source order and
//	classified by the global attribute table. Attributes required for kind
//	but absent from raw are reported in Missing.
//
// Inputs:
//
//	category - The element category.
//	kind - The source "type" attribute, may be empty.
//	raw - The source attributes in document order.
//
// Outputs:
//
//	Result - Never has display attributes in Attributes.
func (f *Filter) Filter(category model.Category, kind string, raw []RawAttr) Result {
	values := make(map[string]string, len(raw))
	for _, a := range raw {
		if _, dup := values[a.Name]; !dup {
			values[a.Name] = a.Value
		}
	}

	var res Result
	seen := make(map[string]struct{}, len(raw))
	keep := func(s Rule) {
		if f.IsDisplay(s.Name) {
			return
		}
		if _, done := seen[s.Name]; done {
			return
		}
		v, ok := values[s.Name]
		if !ok {
			return
		}
		seen[s.Name] = struct{}{}
		res.Attributes = append(res.Attributes, model.Attribute{Name: s.Name, Value: v, Kind: s.Kind})
	}

	for _, s := range identity {
		keep(s)
	}

	if rules, known := allowLists[category]; known {
		for _, s := range rules {
			keep(s)
		}
	} else {
		for _, a := range raw {
			keep(Rule{Name: a.Name, Kind: ClassifyAttribute(a.Name)})
		}
	}

	for _, name := range Required(category, kind) {
		if _, ok := values[name]; !ok {
			res.Missing = append(res.Missing, name)
		}
	}
	return res
}

// RawAttr is a source attribute handed to Filter.
type RawAttr struct {
	Name  string
	Value string
}

// ClassifyAttribute returns the kind the global table assigns to name.
// Unknown names are plain fields.
func ClassifyAttribute(name string) model.AttrKind {
	if k, ok := attributeKinds[name]; ok {
		return k
	}
	return model.AttrField
}

// Required returns the attributes required for the category and kind.
func Required(category model.Category, kind string) []string {
	byKind, ok := requiredByKind[category]
	if !ok {
		return nil
	}
	if req, ok := byKind[kind]; ok {
		return req
	}
	return byKind[""]
}

// AllowList returns a copy of the allow-list for category, identity
// attributes included. Unknown categories return nil.
func AllowList(category model.Category) []Rule {
	rules, ok := allowLists[category]
	if !ok {
		return nil
	}
	out := make([]Rule, 0, len(identity)+len(rules))
	out = append(out, identity...)
	return append(out, rules...)
}
