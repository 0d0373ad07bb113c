// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package formula tokenizes pattern formulas and resolves the names they
// reference.
//
// Formulas are infix expressions over numbers, built-in functions, user
// variables ("#Name"), body measurements and the derived names of geometric
// objects (Line_A_B, AngleLine_A_B, Spl_A_B, ...). Only referenced names
// matter here; formulas are never evaluated.
package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a token.
type TokenKind int

const (
	// TokenIdent is a name: variable, measurement, object or function.
	TokenIdent TokenKind = iota

	// TokenNumber is a numeric literal.
	TokenNumber
)

// Token is one operand of a formula. Operators are never emitted.
type Token struct {
	Text string
	Kind TokenKind

	// Call is true when the token is immediately followed by "(".
	Call bool

	// Offset is the byte offset of the token in the formula.
	Offset int
}

// isOperator reports whether r splits tokens. Multi-character operators
// (<=, >=, ==, !=, &&, ||) are sequences of these.
func isOperator(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '^', '(', ')', ',', ';',
		'<', '>', '=', '!', '&', '|', '?', ':', '%':
		return true
	}
	return false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize splits a formula into operand tokens.
//
// Description:
//
//	Whitespace and operator characters separate tokens and are dropped.
//	Numeric literals are scanned whole, including a fractional part and an
//	exponent with an optional sign, so "1.5e-3" is one number rather than
//	"1.5e" followed by "3". A token starting with a digit or "." is a
//	number; anything else runs to the next separator.
//
// Inputs:
//
//	src - The formula text. May be empty.
//
// Outputs:
//
//	[]Token - Operand tokens in source order. Nil for an empty formula.
func Tokenize(src string) []Token {
	var tokens []Token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r) || isOperator(r):
			i += size

		case isDigit(r) || (r == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			end := scanNumber(src, i)
			tokens = append(tokens, Token{Text: src[i:end], Kind: TokenNumber, Offset: i})
			i = end

		default:
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if unicode.IsSpace(r) || isOperator(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, Token{
				Text:   src[start:i],
				Kind:   TokenIdent,
				Offset: start,
				Call:   followedByParen(src, i),
			})
		}
	}
	return tokens
}

// scanNumber returns the end offset of the numeric literal starting at i.
func scanNumber(src string, i int) int {
	for i < len(src) && isDigit(rune(src[i])) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(rune(src[i])) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(rune(src[j])) {
			for j < len(src) && isDigit(rune(src[j])) {
				j++
			}
			i = j
		}
	}
	return i
}

// followedByParen reports whether the next non-space character at or after
// i is "(".
func followedByParen(src string, i int) bool {
	rest := strings.TrimLeftFunc(src[i:], unicode.IsSpace)
	return strings.HasPrefix(rest, "(")
}

// IsNumber reports whether s is a complete numeric literal.
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '+' || s[0] == '-' {
		start = 1
	}
	if start >= len(s) {
		return false
	}
	if !isDigit(rune(s[start])) && !(s[start] == '.' && start+1 < len(s) && isDigit(rune(s[start+1]))) {
		return false
	}
	return scanNumber(s, start) == len(s)
}
