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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

func graphOf(t *testing.T, recs ...*Record) *Graph {
	t.Helper()
	g := NewGraph("test")
	for _, r := range recs {
		require.NoError(t, g.AddRecord(r))
	}
	g.Freeze()
	return g
}

func deps(ids ...string) []model.Dependency {
	out := make([]model.Dependency, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Dependency{ID: id, Name: id})
	}
	return out
}

func TestDiffGraphs_Identical(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)

	diff, err := DiffGraphs(res.Graph, res.Graph, "a", "b")
	require.NoError(t, err)
	assert.True(t, diff.Empty())
	assert.Empty(t, diff.RecordsAdded)
	assert.Empty(t, diff.RecordsRemoved)
	assert.Empty(t, diff.RecordsModified)
	assert.Zero(t, diff.Summary.ChangeRatio)
}

func TestDiffGraphs_Changes(t *testing.T) {
	base := graphOf(t,
		&Record{ID: "1", Name: "A", Category: model.CategoryPoint},
		&Record{ID: "2", Name: "B", Category: model.CategoryPoint, Dependencies: deps("1")},
		&Record{ID: "3", Name: "C", Category: model.CategoryPoint, Dependencies: deps("1")},
		&Record{ID: "4", Name: "D", Category: model.CategoryPoint},
	)
	target := graphOf(t,
		&Record{ID: "1", Name: "A", Category: model.CategoryPoint},
		&Record{ID: "2", Name: "B", Category: model.CategoryPoint, Dependencies: deps("5")},
		&Record{ID: "3", Name: "C2", Category: model.CategoryPoint, Dependencies: deps("1")},
		&Record{ID: "5", Name: "E", Category: model.CategoryPoint, Dependencies: deps("1")},
	)

	diff, err := DiffGraphs(base, target, "base", "target")
	require.NoError(t, err)

	assert.Equal(t, "base", diff.BaseLabel)
	assert.Equal(t, []string{"5"}, diff.RecordsAdded)
	assert.Equal(t, []string{"4"}, diff.RecordsRemoved)
	require.Len(t, diff.RecordsModified, 2)

	assert.Equal(t, "2", diff.RecordsModified[0].ID)
	assert.Equal(t, ChangeDependencies, diff.RecordsModified[0].ChangeType)
	assert.Equal(t, []string{"5"}, diff.RecordsModified[0].Added)
	assert.Equal(t, []string{"1"}, diff.RecordsModified[0].Removed)

	assert.Equal(t, "3", diff.RecordsModified[1].ID)
	assert.Equal(t, ChangeRenamed, diff.RecordsModified[1].ChangeType)

	// Record 2 gains 5, record 5 is new with one dependency.
	assert.Equal(t, 2, diff.DependenciesAdded)
	assert.Equal(t, 1, diff.DependenciesRemoved)
	assert.Equal(t, 4+3, diff.Summary.TotalChanges)
	assert.InDelta(t, 1.0, diff.Summary.ChangeRatio, 1e-9)
}

func TestDiffGraphs_Recategorized(t *testing.T) {
	base := graphOf(t, &Record{ID: "1", Name: "X", Category: model.CategoryPoint})
	target := graphOf(t, &Record{ID: "1", Name: "X", Category: model.CategoryOther})

	diff, err := DiffGraphs(base, target, "", "")
	require.NoError(t, err)
	require.Len(t, diff.RecordsModified, 1)
	assert.Equal(t, ChangeRecategorized, diff.RecordsModified[0].ChangeType)
}

func TestDiffGraphs_NilGraph(t *testing.T) {
	g := graphOf(t)
	_, err := DiffGraphs(nil, g, "", "")
	assert.Error(t, err)
	_, err = DiffGraphs(g, nil, "", "")
	assert.Error(t, err)
}
