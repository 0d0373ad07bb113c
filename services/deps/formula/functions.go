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

import "strings"

// BuiltinFunctions are the function names the formula engine provides.
var BuiltinFunctions = []string{
	// trigonometric, radians and degrees
	"sin", "cos", "tan", "asin", "acos", "atan",
	"sinD", "cosD", "tanD", "asinD", "acosD", "atanD",
	// hyperbolic
	"sinh", "cosh", "tanh", "asinh", "acosh", "atanh",
	// logarithms and powers
	"log", "log2", "log10", "ln", "exp", "sqrt",
	// rounding and sign
	"sign", "rint", "abs", "floor", "ceil", "round",
	// aggregates
	"min", "max", "sum", "avg", "fmod",
	// unit and angle conversion
	"radTodeg", "degTorad", "r2cm", "cm2r", "csrCm", "csrInch",
}

// BuiltinConstants are reserved names that are not object references.
var BuiltinConstants = []string{
	"pi", "_pi", "_e", "e",
	"CurrentLength", "CurrentSeamAllowance",
}

// derivedPrefixes maps the prefixes of derived formula variables to the
// prefix of the object name they read from. Longest prefixes first.
var derivedPrefixes = []struct {
	derived string
	base    string
}{
	{"Angle1SplPath_", "SplPath_"},
	{"Angle2SplPath_", "SplPath_"},
	{"C1LengthSplPath_", "SplPath_"},
	{"C2LengthSplPath_", "SplPath_"},
	{"C1LengthSpl_", "Spl_"},
	{"C2LengthSpl_", "Spl_"},
	{"Angle1ElArc_", "ElArc_"},
	{"Angle2ElArc_", "ElArc_"},
	{"Radius1ElArc_", "ElArc_"},
	{"Radius2ElArc_", "ElArc_"},
	{"RotationElArc_", "ElArc_"},
	{"Angle1Spl_", "Spl_"},
	{"Angle2Spl_", "Spl_"},
	{"Angle1Arc_", "Arc_"},
	{"Angle2Arc_", "Arc_"},
	{"RadiusArc_", "Arc_"},
	{"AngleLine_", "Line_"},
}

// BaseName maps a derived variable name to the object name it reads
// from, for example AngleLine_A_B to Line_A_B.
func BaseName(token string) (string, bool) {
	for _, p := range derivedPrefixes {
		if strings.HasPrefix(token, p.derived) && len(token) > len(p.derived) {
			return p.base + token[len(p.derived):], true
		}
	}
	return "", false
}

// Reserved is the set of names excluded from dependency extraction.
type Reserved struct {
	names map[string]struct{}
}

// NewReserved builds the reserved-name set from the built-in tables plus
// extra names.
func NewReserved(extra ...string) *Reserved {
	r := &Reserved{names: make(map[string]struct{}, len(BuiltinFunctions)+len(BuiltinConstants)+len(extra))}
	for _, set := range [][]string{BuiltinFunctions, BuiltinConstants, extra} {
		for _, n := range set {
			r.names[n] = struct{}{}
		}
	}
	return r
}

// Contains reports whether name is reserved.
func (r *Reserved) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Excludes reports whether tok is dropped from extraction: a number, a
// reserved name, or any call. Pattern objects are never called, so a
// called name is a function even when it is not a built-in.
func (r *Reserved) Excludes(tok Token) bool {
	return tok.Kind == TokenNumber || tok.Call || r.Contains(tok.Text)
}
