// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

func bodiceRun(t *testing.T) *deps.Run {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	run, err := deps.NewService(deps.WithLogger(quiet)).
		AnalyzeFile(context.Background(), filepath.Join("..", "testdata", "bodice.sm2d"))
	require.NoError(t, err)
	return run
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, bodiceRun(t), FormatText))
	out := buf.String()

	assert.Contains(t, out, "Objects by category\n===================\n")
	assert.Contains(t, out, "  variable: #EaseRatioBust, #HalfBust, #Dart\n")
	assert.Contains(t, out, "  #HalfBust: [bust_circ, #EaseRatioBust]\n")
	assert.Contains(t, out, "Found 3 variables starting with #:\n")
	assert.Contains(t, out, "Analysis of #Dart\n")
	assert.Contains(t, out, "    • #HalfBust (-2)\n")
	assert.Contains(t, out, "  Total objects: 30\n")
	assert.Contains(t, out, "  Variables with # prefix: 3\n")
	assert.Contains(t, out, "WARN: unresolved_reference B1:")
	assert.Contains(t, out, "  B1: [X1a1, X3a1, Foo123]\n")
}

func TestWrite_JSON(t *testing.T) {
	run := bodiceRun(t)
	var buf bytes.Buffer
	require.NoError(t, Write(context.Background(), &buf, run, FormatJSON))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, run.ID, doc.RunID)
	assert.Equal(t, run.Graph.Hash(), doc.GraphHash)
	assert.Len(t, doc.Records, 30)
	assert.Len(t, doc.Variables, 3)
	assert.Equal(t, []string{"#EaseRatioBust", "#HalfBust", "#Dart"}, doc.Objects[model.CategoryVariable])
	require.Len(t, doc.Warnings, 1)
	assert.Equal(t, model.WarnUnresolvedReference, doc.Warnings[0].Kind)
}

func TestWrite_Errors(t *testing.T) {
	assert.Error(t, Write(context.Background(), io.Discard, nil, FormatText))
	assert.ErrorIs(t, Write(context.Background(), io.Discard, bodiceRun(t), Format("xml")), ErrUnknownFormat)
}

func TestWriteAnalysis_NotFound(t *testing.T) {
	a := graph.Analysis{ID: "#Ghost", Name: "#Ghost"}
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysis(&buf, a, FormatText))

	out := buf.String()
	assert.Contains(t, out, "No dependencies found")
	assert.Contains(t, out, "Nothing uses this")
	assert.Contains(t, out, "This might be an implicit or referenced variable")
}

func TestWriteTrace_JSON(t *testing.T) {
	a := bodiceRun(t).Analyze(context.Background(), "#Dart")
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, a, FormatJSON))

	var got struct {
		ID         string             `json:"id"`
		Transitive []model.Dependency `json:"transitive"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "-3", got.ID)
	assert.Len(t, got.Transitive, 4)
}

func TestWriteDependents_Text(t *testing.T) {
	a := bodiceRun(t).Analyze(context.Background(), "#HalfBust")
	var buf bytes.Buffer
	require.NoError(t, WriteDependents(&buf, a, FormatText))
	assert.Contains(t, buf.String(), "Objects that use #HalfBust\n")
	assert.Contains(t, buf.String(), "• #Dart (-3)")
}

func TestWriteDiff(t *testing.T) {
	run := bodiceRun(t)
	same, err := graph.DiffGraphs(run.Graph, run.Graph, "a", "b")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDiff(&buf, same, FormatText))
	assert.Contains(t, buf.String(), "OK: graphs are identical")

	empty := graph.NewGraph("empty")
	empty.Freeze()
	d, err := graph.DiffGraphs(empty, run.Graph, "empty", "bodice")
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, WriteDiff(&buf, d, FormatText))
	assert.Contains(t, buf.String(), "Added\n-----\n")
	assert.Contains(t, buf.String(), "  Change ratio: 1.00\n")
}

func TestWriteSnapshots(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshots(&buf, nil, FormatText))
	assert.Equal(t, "No snapshots found\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteSnapshots(&buf, nil, FormatJSON))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	metas := []*graph.SnapshotMetadata{{SnapshotID: "abc123", Source: "shirt.sm2d", RecordCount: 3, CreatedAtMilli: 0}}
	require.NoError(t, WriteSnapshots(&buf, metas, FormatText))
	assert.Equal(t, "abc123  1970-01-01T00:00:00Z  -  records=3 deps=0  shirt.sm2d\n", buf.String())
}

func TestWriteSnapshot(t *testing.T) {
	run := bodiceRun(t)
	meta := &graph.SnapshotMetadata{SnapshotID: "s1", Source: run.Source, GraphHash: run.Graph.Hash(), Label: "nightly"}

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, run.Graph, meta, FormatText))
	assert.Contains(t, buf.String(), "Snapshot s1\n")
	assert.Contains(t, buf.String(), "  Label: nightly\n")
	assert.Contains(t, buf.String(), "  B1: [X1a1, X3a1, Foo123]\n")

	buf.Reset()
	require.NoError(t, WriteSnapshot(&buf, run.Graph, meta, FormatJSON))
	assert.Contains(t, buf.String(), `"snapshot_id": "s1"`)

	assert.Error(t, WriteSnapshot(io.Discard, nil, meta, FormatText))
}
