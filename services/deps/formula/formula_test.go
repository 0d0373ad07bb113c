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
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps/index"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

type nameSet map[string]struct{}

func (s nameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func newTestResolver(t *testing.T, entries ...index.Entry) *index.Resolver {
	t.Helper()
	r := index.NewResolver(index.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	for _, e := range entries {
		_, err := r.Register(e)
		require.NoError(t, err)
	}
	return r
}

func depNames(deps []model.Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Name)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		tokens []string
	}{
		{"empty", "", nil},
		{"number", "12", []string{"12"}},
		{"arithmetic", "2*Line_1+#EaseRatioBust", []string{"2", "Line_1", "#EaseRatioBust"}},
		{"function", "sin(Angle_1)+5.0", []string{"sin", "Angle_1", "5.0"}},
		{"scientific", "1.5e-3*a", []string{"1.5e-3", "a"}},
		{"leading dot", ".5+b", []string{".5", "b"}},
		{"comparison", "a<=b?c:d", []string{"a", "b", "c", "d"}},
		{"whitespace", "  bust_circ / 2 ", []string{"bust_circ", "2"}},
		{"commas", "max(a, b, 3)", []string{"max", "a", "b", "3"}},
		{"power", "x^2", []string{"x", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tok := range Tokenize(tt.input) {
				got = append(got, tok.Text)
			}
			assert.Equal(t, tt.tokens, got)
		})
	}
}

func TestTokenize_MarksCalls(t *testing.T) {
	tokens := Tokenize("sqrt (a) + b")
	require.Len(t, tokens, 3)
	assert.True(t, tokens[0].Call)
	assert.False(t, tokens[1].Call)
	assert.Equal(t, TokenNumber, Tokenize("3.14")[0].Kind)
}

func TestIsNumber(t *testing.T) {
	for _, s := range []string{"1", "1.0", ".5", "-3", "2e10", "1.5E+3"} {
		assert.True(t, IsNumber(s), s)
	}
	for _, s := range []string{"", "-", "a1", "1e", "1.2.3", "Line_1"} {
		assert.False(t, IsNumber(s), s)
	}
}

func TestExtract_VariablesAndObjects(t *testing.T) {
	r := newTestResolver(t,
		index.Entry{ID: "12", Name: "Line_1", Category: model.CategoryLine},
		index.Entry{ID: "-1", Name: "#EaseRatioBust", Category: model.CategoryVariable},
	)
	ex := NewExtractor()

	deps := ex.Extract("2*Line_1+#EaseRatioBust", r, nil)
	require.Len(t, deps, 2)
	assert.Equal(t, model.Dependency{ID: "12", Name: "Line_1", Category: model.CategoryLine, Via: "formula"}, deps[0])
	assert.Equal(t, model.Dependency{ID: "-1", Name: "#EaseRatioBust", Category: model.CategoryVariable, Via: "formula"}, deps[1])
}

func TestExtract_DiscardsFunctionsAndLiterals(t *testing.T) {
	r := newTestResolver(t, index.Entry{ID: "7", Name: "Angle_1"})
	ex := NewExtractor()

	deps := ex.Extract("sin(Angle_1)+5.0", r, nil)
	require.Len(t, deps, 1)
	assert.Equal(t, "7", deps[0].ID)
	assert.Equal(t, "Angle_1", deps[0].Name)
}

func TestExtract_CallsAreFunctions(t *testing.T) {
	r := newTestResolver(t, index.Entry{ID: "4", Name: "A"})
	ex := NewExtractor()

	deps := ex.Extract("fancy (A) + A + round", r, nil)
	require.Len(t, deps, 1)
	assert.Equal(t, "4", deps[0].ID)
	assert.Equal(t, []string{"A"}, ex.References("userFn(A)*2"))
}

func TestReserved_Excludes(t *testing.T) {
	r := NewReserved("myfunc")
	assert.True(t, r.Contains("sqrt"))
	assert.True(t, r.Contains("myfunc"))
	assert.False(t, r.Contains("Line_A_B"))

	assert.True(t, r.Excludes(Token{Text: "sqrt", Kind: TokenIdent}))
	assert.True(t, r.Excludes(Token{Text: "pi", Kind: TokenIdent}))
	assert.True(t, r.Excludes(Token{Text: "custom", Kind: TokenIdent, Call: true}))
	assert.True(t, r.Excludes(Token{Text: "2", Kind: TokenNumber}))
	assert.False(t, r.Excludes(Token{Text: "Line_A_B", Kind: TokenIdent}))
}

func TestExtract_Unresolved(t *testing.T) {
	r := newTestResolver(t)
	deps := NewExtractor().Extract("Foo123*2", r, nil)
	require.Len(t, deps, 1)
	assert.True(t, deps[0].Unresolved)
	assert.Equal(t, "Foo123", deps[0].ID)
	assert.Equal(t, "Foo123", deps[0].Name)
}

func TestExtract_UnknownVariableIsUnresolved(t *testing.T) {
	r := newTestResolver(t)
	deps := NewExtractor().Extract("#missing+1", r, nil)
	require.Len(t, deps, 1)
	assert.True(t, deps[0].Unresolved)
}

func TestExtract_Measurements(t *testing.T) {
	r := newTestResolver(t, index.Entry{ID: "measurement:0", Name: "waist_circ", Category: model.CategoryMeasurement})
	ms := nameSet{"bust_circ": {}, "waist_circ": {}}

	deps := NewExtractor().Extract("bust_circ/4 + waist_circ/4 + 1", r, ms)
	require.Len(t, deps, 2)
	assert.Equal(t, "bust_circ", deps[0].ID, "unregistered measurements use their name as id")
	assert.Equal(t, model.CategoryMeasurement, deps[0].Category)
	assert.Equal(t, "measurement:0", deps[1].ID)
	assert.False(t, deps[0].Unresolved)
}

func TestExtract_DerivedNames(t *testing.T) {
	r := newTestResolver(t,
		index.Entry{ID: "5", Name: "Line_A_B", Category: model.CategoryLine},
		index.Entry{ID: "9", Name: "Spl_A_C", Category: model.CategorySpline},
	)
	deps := NewExtractor().Extract("AngleLine_A_B + Angle1Spl_A_C + C1LengthSpl_A_C", r, nil)
	assert.Equal(t, []string{"Line_A_B", "Spl_A_C"}, depNames(deps))
}

func TestExtract_DedupesInFirstSeenOrder(t *testing.T) {
	r := newTestResolver(t,
		index.Entry{ID: "1", Name: "a"},
		index.Entry{ID: "2", Name: "b"},
	)
	deps := NewExtractor().Extract("b + a*b - max(a, b)", r, nil)
	assert.Equal(t, []string{"b", "a"}, depNames(deps))
}

func TestExtract_EmptyAndLiteral(t *testing.T) {
	r := newTestResolver(t)
	ex := NewExtractor()
	assert.Empty(t, ex.Extract("", r, nil))
	assert.Empty(t, ex.Extract("42", r, nil))
	assert.Empty(t, ex.Extract("  ", r, nil))
	assert.Empty(t, ex.Extract("CurrentLength*pi", r, nil))
}

func TestExtract_Options(t *testing.T) {
	r := newTestResolver(t, index.Entry{ID: "-1", Name: "$w"})
	ex := NewExtractor(WithVariablePrefix("$"), WithReservedNames("myfunc"))

	deps := ex.Extract("myfunc($w)", r, nil)
	require.Len(t, deps, 1)
	assert.Equal(t, model.CategoryVariable, deps[0].Category)
}

func TestReferences(t *testing.T) {
	refs := NewExtractor().References("sqrt(a*a + b*b) + #c")
	assert.Equal(t, []string{"a", "b", "#c"}, refs)
}

func TestBaseName(t *testing.T) {
	base, ok := BaseName("RadiusArc_A_3")
	require.True(t, ok)
	assert.Equal(t, "Arc_A_3", base)

	_, ok = BaseName("Line_A_B")
	assert.False(t, ok)
	_, ok = BaseName("AngleLine_")
	assert.False(t, ok)
}
