// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors for recoverable conditions. None of them stops a run.
var (
	// ErrAttributeMissing is reported when an attribute expected for an
	// object's kind is absent.
	ErrAttributeMissing = errors.New("attribute missing")

	// ErrUnresolvedReference is reported when an identifier or formula token
	// does not match any known object.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrDuplicateIdentifier is reported when an id is registered with two
	// different names, or a name with two different ids.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrKeyCollision is reported when two objects of the same category share
	// a key. The first one is kept.
	ErrKeyCollision = errors.New("key collision")

	// ErrReferenceTableUnavailable is reported when the measurement
	// reference table cannot be read.
	ErrReferenceTableUnavailable = errors.New("reference table unavailable")
)

// WarningKind names the class of a Warning.
type WarningKind string

const (
	WarnAttributeMissing          WarningKind = "attribute_missing"
	WarnUnresolvedReference       WarningKind = "unresolved_reference"
	WarnDuplicateIdentifier       WarningKind = "duplicate_identifier"
	WarnKeyCollision              WarningKind = "key_collision"
	WarnReferenceTableUnavailable WarningKind = "reference_table_unavailable"
)

var warningSentinels = map[WarningKind]error{
	WarnAttributeMissing:          ErrAttributeMissing,
	WarnUnresolvedReference:       ErrUnresolvedReference,
	WarnDuplicateIdentifier:       ErrDuplicateIdentifier,
	WarnKeyCollision:              ErrKeyCollision,
	WarnReferenceTableUnavailable: ErrReferenceTableUnavailable,
}

// Warning is a recoverable problem found during a run.
type Warning struct {
	// Kind classifies the warning.
	Kind WarningKind `json:"kind"`

	// Subject is the object id, name or file the warning is about.
	Subject string `json:"subject"`

	// Detail is a human-readable description.
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Detail)
}

// Unwrap returns the sentinel for the warning kind for errors.Is support.
func (w Warning) Unwrap() error {
	return warningSentinels[w.Kind]
}

// Log writes the warning to logger at Warn level.
func (w Warning) Log(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Warn(w.Detail,
		slog.String("kind", string(w.Kind)),
		slog.String("subject", w.Subject),
	)
}

// CountWarnings tallies warnings by kind.
func CountWarnings(ws []Warning) map[WarningKind]int {
	out := make(map[WarningKind]int)
	for _, w := range ws {
		out[w.Kind]++
	}
	return out
}
