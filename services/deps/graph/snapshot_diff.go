// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"sort"
)

// Record change types reported by DiffGraphs.
const (
	ChangeRenamed       = "renamed"
	ChangeRecategorized = "recategorized"
	ChangeDependencies  = "dependencies_changed"
)

// GraphDiff contains the differences between two dependency graphs.
type GraphDiff struct {
	// BaseLabel identifies the base graph (snapshot id or path).
	BaseLabel string `json:"base"`

	// TargetLabel identifies the target graph.
	TargetLabel string `json:"target"`

	// RecordsAdded are ids present in target but not in base.
	RecordsAdded []string `json:"records_added"`

	// RecordsRemoved are ids present in base but not in target.
	RecordsRemoved []string `json:"records_removed"`

	// RecordsModified are records that changed between the graphs.
	RecordsModified []RecordDiff `json:"records_modified"`

	// DependenciesAdded is the count of (record, dependency) pairs only in
	// target.
	DependenciesAdded int `json:"dependencies_added"`

	// DependenciesRemoved is the count of (record, dependency) pairs only in
	// base.
	DependenciesRemoved int `json:"dependencies_removed"`

	// Summary contains aggregate statistics about the diff.
	Summary DiffSummary `json:"summary"`
}

// RecordDiff describes how a single record changed.
type RecordDiff struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ChangeType string `json:"change_type"`

	// Added and Removed are the dependency ids gained and lost.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// DiffSummary contains aggregate statistics about a diff.
type DiffSummary struct {
	// TotalChanges counts added, removed and modified records plus
	// dependency changes.
	TotalChanges int `json:"total_changes"`

	// ChangeRatio is the fraction of records that changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`
}

// Empty reports whether the graphs are equivalent.
func (d *GraphDiff) Empty() bool {
	return d.Summary.TotalChanges == 0
}

// DiffGraphs compares two graphs record by record.
//
// Description:
//
//	Records are matched by id. A matched record is modified when its name,
//	category or dependency id set differs. Output slices are sorted for
//	deterministic output.
//
// Inputs:
//
//	base - The base graph. Must not be nil.
//	target - The target graph. Must not be nil.
//	baseLabel, targetLabel - Labels copied into the result.
//
// Outputs:
//
//	*GraphDiff - The computed differences.
//	error - Non-nil if either graph is nil.
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func DiffGraphs(base, target *Graph, baseLabel, targetLabel string) (*GraphDiff, error) {
	if base == nil {
		return nil, fmt.Errorf("base graph must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target graph must not be nil")
	}

	diff := &GraphDiff{
		BaseLabel:       baseLabel,
		TargetLabel:     targetLabel,
		RecordsAdded:    []string{},
		RecordsRemoved:  []string{},
		RecordsModified: []RecordDiff{},
	}

	for id, t := range target.records {
		b, exists := base.records[id]
		if !exists {
			diff.RecordsAdded = append(diff.RecordsAdded, id)
			diff.DependenciesAdded += len(dependencyIDs(t))
			continue
		}

		added, removed := setDifference(dependencyIDs(b), dependencyIDs(t))
		diff.DependenciesAdded += len(added)
		diff.DependenciesRemoved += len(removed)

		var change string
		switch {
		case b.Category != t.Category:
			change = ChangeRecategorized
		case b.Name != t.Name:
			change = ChangeRenamed
		case len(added) > 0 || len(removed) > 0:
			change = ChangeDependencies
		default:
			continue
		}
		diff.RecordsModified = append(diff.RecordsModified, RecordDiff{
			ID:         id,
			Name:       t.Name,
			ChangeType: change,
			Added:      added,
			Removed:    removed,
		})
	}

	for id, b := range base.records {
		if _, exists := target.records[id]; !exists {
			diff.RecordsRemoved = append(diff.RecordsRemoved, id)
			diff.DependenciesRemoved += len(dependencyIDs(b))
		}
	}

	sort.Strings(diff.RecordsAdded)
	sort.Strings(diff.RecordsRemoved)
	sort.Slice(diff.RecordsModified, func(i, j int) bool {
		return diff.RecordsModified[i].ID < diff.RecordsModified[j].ID
	})

	total := max(base.Len(), target.Len())
	changed := len(diff.RecordsAdded) + len(diff.RecordsRemoved) + len(diff.RecordsModified)
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}
	diff.Summary = DiffSummary{
		TotalChanges: changed + diff.DependenciesAdded + diff.DependenciesRemoved,
		ChangeRatio:  ratio,
	}
	return diff, nil
}

func dependencyIDs(r *Record) map[string]bool {
	set := make(map[string]bool, len(r.Dependencies))
	for _, d := range r.Dependencies {
		set[d.ID] = true
	}
	return set
}

// setDifference returns the sorted keys only in b (added) and only in a
// (removed).
func setDifference(a, b map[string]bool) (added, removed []string) {
	for k := range b {
		if !a[k] {
			added = append(added, k)
		}
	}
	for k := range a {
		if !b[k] {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
