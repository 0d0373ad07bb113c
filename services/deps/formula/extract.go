// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package formula

import (
	"strings"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// NameResolver is the read side of the identifier table.
type NameResolver interface {
	LookupID(name string) (string, bool)
	LookupName(id string) (string, bool)
}

// CategoryResolver optionally reports the category of a registered id.
type CategoryResolver interface {
	CategoryOf(id string) (model.Category, bool)
}

// MeasurementSet reports whether a name is a known body measurement.
type MeasurementSet interface {
	Has(name string) bool
}

// Extractor resolves formula tokens to dependencies.
//
// Thread Safety: Safe for concurrent use if the resolver is.
type Extractor struct {
	reserved       *Reserved
	variablePrefix string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithVariablePrefix sets the prefix that marks user variables.
func WithVariablePrefix(prefix string) ExtractorOption {
	return func(e *Extractor) {
		if prefix != "" {
			e.variablePrefix = prefix
		}
	}
}

// WithReservedNames adds names that are never treated as references.
func WithReservedNames(names ...string) ExtractorOption {
	return func(e *Extractor) {
		for _, n := range names {
			e.reserved.names[n] = struct{}{}
		}
	}
}

// NewExtractor creates an Extractor with the built-in reserved names.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		reserved:       NewReserved(),
		variablePrefix: model.DefaultVariablePrefix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the dependencies referenced by a formula.
//
// Description:
//
//	Numbers, reserved names and function calls are dropped. Each
//	remaining token is
//	classified in order: a token with the variable prefix is a variable;
//	a token in measurements is a measurement; otherwise the token is
//	looked up as an object name, then as a derived name (AngleLine_A_B
//	resolves through Line_A_B). Tokens that match nothing become
//	unresolved dependencies whose id and name are the token itself.
//	Results keep first-seen order without duplicates.
//
// Inputs:
//
//	src - The formula text.
//	resolver - Identifier table. Must not be nil.
//	measurements - Known measurement names. May be nil.
//
// Outputs:
//
//	[]model.Dependency - Empty for an empty or literal-only formula.
//
// Example:
//
//	deps := ex.Extract("2*Line_A_B+#EaseRatioBust", resolver, nil)
//	// deps[0].Name == "Line_A_B", deps[1].Name == "#EaseRatioBust"
func (e *Extractor) Extract(src string, resolver NameResolver, measurements MeasurementSet) []model.Dependency {
	tokens := Tokenize(src)
	if len(tokens) == 0 {
		return nil
	}

	deps := make([]model.Dependency, 0, len(tokens))
	for _, tok := range tokens {
		if e.reserved.Excludes(tok) {
			continue
		}
		deps = append(deps, e.classify(tok.Text, resolver, measurements))
	}
	return model.DedupeDependencies(deps)
}

// classify resolves a single identifier token.
func (e *Extractor) classify(token string, resolver NameResolver, measurements MeasurementSet) model.Dependency {
	if strings.HasPrefix(token, e.variablePrefix) {
		if id, ok := resolver.LookupID(token); ok {
			return model.Dependency{ID: id, Name: token, Category: model.CategoryVariable, Via: "formula"}
		}
		return unresolved(token)
	}

	if measurements != nil && measurements.Has(token) {
		id, ok := resolver.LookupID(token)
		if !ok {
			id = token
		}
		return model.Dependency{ID: id, Name: token, Category: model.CategoryMeasurement, Via: "formula"}
	}

	if id, ok := resolver.LookupID(token); ok {
		return model.Dependency{ID: id, Name: token, Category: categoryOf(resolver, id), Via: "formula"}
	}

	if base, ok := BaseName(token); ok {
		if id, ok := resolver.LookupID(base); ok {
			return model.Dependency{ID: id, Name: base, Category: categoryOf(resolver, id), Via: "formula"}
		}
	}

	return unresolved(token)
}

func categoryOf(resolver NameResolver, id string) model.Category {
	if cr, ok := resolver.(CategoryResolver); ok {
		if c, ok := cr.CategoryOf(id); ok {
			return c
		}
	}
	return ""
}

func unresolved(token string) model.Dependency {
	return model.Dependency{ID: token, Name: token, Unresolved: true, Via: "formula"}
}

// References returns the identifier tokens of a formula that Extract would
// classify, in first-seen order without duplicates.
func (e *Extractor) References(src string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(src) {
		if e.reserved.Excludes(tok) {
			continue
		}
		if _, ok := seen[tok.Text]; ok {
			continue
		}
		seen[tok.Text] = struct{}{}
		out = append(out, tok.Text)
	}
	return out
}
