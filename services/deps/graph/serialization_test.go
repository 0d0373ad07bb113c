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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

func TestSerialization_RoundTrip(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)
	g := res.Graph

	data, err := json.Marshal(g.ToSerializable())
	require.NoError(t, err)

	var sg SerializableGraph
	require.NoError(t, json.Unmarshal(data, &sg))
	assert.Equal(t, GraphSchemaVersion, sg.SchemaVersion)
	assert.Equal(t, g.Hash(), sg.GraphHash)

	restored, err := FromSerializable(&sg)
	require.NoError(t, err)
	assert.True(t, restored.IsFrozen())
	assert.Equal(t, g.BuiltAtMilli, restored.BuiltAtMilli)
	assert.Equal(t, g.Source, restored.Source)
	assert.Equal(t, g.IDs(), restored.IDs())
	assert.Equal(t, g.Hash(), restored.Hash())
	assert.Equal(t, g.DependencyCount(), restored.DependencyCount())
}

func TestSerialization_SchemaVersion(t *testing.T) {
	_, err := FromSerializable(&SerializableGraph{SchemaVersion: "0.1"})
	assert.True(t, errors.Is(err, ErrSchemaVersion))

	_, err = FromSerializable(nil)
	assert.Error(t, err)
}

func TestSerialization_NilGraph(t *testing.T) {
	var g *Graph
	sg := g.ToSerializable()
	assert.Equal(t, GraphSchemaVersion, sg.SchemaVersion)
	assert.Empty(t, sg.Records)
}

func TestHash_IgnoresSourceAndTime(t *testing.T) {
	a := NewGraph("a.sm2d")
	b := NewGraph("elsewhere/a.sm2d")
	for _, g := range []*Graph{a, b} {
		require.NoError(t, g.AddRecord(&Record{
			ID: "1", Name: "A", Category: model.CategoryPoint,
			Dependencies: []model.Dependency{{ID: "-1", Name: "#X", Via: "length"}},
		}))
	}
	a.Freeze()
	b.Freeze()
	b.BuiltAtMilli++

	assert.Equal(t, a.Hash(), b.Hash())
}

func TestHash_DetectsChanges(t *testing.T) {
	base := func() *Graph {
		g := NewGraph("x")
		require.NoError(t, g.AddRecord(&Record{ID: "1", Name: "A", Category: model.CategoryPoint}))
		return g
	}

	a := base()
	b := base()
	require.NoError(t, b.AddRecord(&Record{ID: "2", Name: "B", Category: model.CategoryPoint}))
	assert.NotEqual(t, a.Hash(), b.Hash())

	// Field boundaries are length-prefixed.
	c := NewGraph("x")
	require.NoError(t, c.AddRecord(&Record{ID: "1", Name: "AB"}))
	d := NewGraph("x")
	require.NoError(t, d.AddRecord(&Record{ID: "1A", Name: "B"}))
	assert.NotEqual(t, c.Hash(), d.Hash())
}

func TestGraph_AddRecord(t *testing.T) {
	g := NewGraph("x", WithMaxRecords(2))

	assert.ErrorIs(t, g.AddRecord(nil), ErrInvalidRecord)
	assert.ErrorIs(t, g.AddRecord(&Record{}), ErrInvalidRecord)
	require.NoError(t, g.AddRecord(&Record{ID: "1"}))
	assert.ErrorIs(t, g.AddRecord(&Record{ID: "1"}), ErrDuplicateRecord)
	require.NoError(t, g.AddRecord(&Record{ID: "2"}))
	assert.ErrorIs(t, g.AddRecord(&Record{ID: "3"}), ErrMaxRecordsExceeded)

	assert.Equal(t, GraphStateBuilding, g.State())
	g.Freeze()
	assert.Equal(t, GraphStateReadOnly, g.State())
	assert.Equal(t, "readonly", g.State().String())
	assert.NotZero(t, g.BuiltAtMilli)
	assert.ErrorIs(t, g.AddRecord(&Record{ID: "4"}), ErrGraphFrozen)
}
