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

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// Synthetic id prefixes. Native ids are bare non-negative integers, so a
// prefixed id can never equal one.
const (
	BlockIDPrefix       = "draftBlock:"
	MeasurementIDPrefix = "measurement:"
)

// Counters are the synthetic id counters of one categorization run.
//
// Counters is a value type: Next returns the updated counters instead of
// mutating the receiver.
type Counters struct {
	// Blocks is the number of block ids handed out. Block ids are
	// "draftBlock:0", "draftBlock:1", ...
	Blocks int `json:"blocks"`

	// Measurements is the number of measurement ids handed out.
	// Measurement ids are "measurement:0", "measurement:1", ...
	Measurements int `json:"measurements"`

	// Variables is the number of variable ids handed out. Variable ids are
	// negative: "-1", "-2", ...
	Variables int `json:"variables"`
}

// Synthesizes reports whether the category receives synthetic ids.
func Synthesizes(c model.Category) bool {
	switch c {
	case model.CategoryDraftBlock, model.CategoryMeasurement, model.CategoryVariable:
		return true
	}
	return false
}

// Next returns the next synthetic id for c and the advanced counters.
//
// Outputs:
//
//	string - The id, or "" if c has no counter.
//	Counters - The counters after allocation. Unchanged if c has no counter.
func (c Counters) Next(cat model.Category) (string, Counters) {
	switch cat {
	case model.CategoryDraftBlock:
		id := BlockIDPrefix + strconv.Itoa(c.Blocks)
		c.Blocks++
		return id, c
	case model.CategoryMeasurement:
		id := MeasurementIDPrefix + strconv.Itoa(c.Measurements)
		c.Measurements++
		return id, c
	case model.CategoryVariable:
		c.Variables++
		return strconv.Itoa(-c.Variables), c
	}
	return "", c
}
