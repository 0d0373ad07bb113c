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
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/seamlydeps/services/deps/categorize"
	"github.com/AleutianAI/seamlydeps/services/deps/document"
	"github.com/AleutianAI/seamlydeps/services/deps/formula"
	"github.com/AleutianAI/seamlydeps/services/deps/measurements"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	cat   *categorize.Result
	table *measurements.Table
}

func loadFixture(t *testing.T, name string, withMeasurements bool) fixture {
	t.Helper()
	root, err := document.ParseFile(filepath.Join("..", "testdata", name))
	require.NoError(t, err)
	cat, err := categorize.Categorize(context.Background(), root, categorize.WithLogger(quiet))
	require.NoError(t, err)

	f := fixture{cat: cat}
	if withMeasurements {
		table, warn := measurements.Load(filepath.Join("..", "testdata", "bodice.smis"), quiet)
		require.Nil(t, warn)
		f.table = table
	}
	return f
}

func buildFixture(t *testing.T, name string, withMeasurements bool, opts ...BuilderOption) (*BuildResult, fixture) {
	t.Helper()
	f := loadFixture(t, name, withMeasurements)
	opts = append([]BuilderOption{WithBuilderLogger(quiet), WithSource(name)}, opts...)

	var ms formula.MeasurementSet
	if f.table != nil {
		ms = f.table
	}
	res, err := NewBuilder(opts...).Build(context.Background(), f.cat.Objects, f.cat.Resolver, ms)
	require.NoError(t, err)
	return res, f
}

func depIDs(deps []model.Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.ID)
	}
	return out
}

func record(t *testing.T, g *Graph, id string) *Record {
	t.Helper()
	rec, ok := g.Get(id)
	require.True(t, ok, "record %s", id)
	return rec
}

func TestBuild_Bodice(t *testing.T) {
	res, f := buildFixture(t, "bodice.sm2d", true)

	assert.True(t, res.Success())
	assert.True(t, res.Graph.IsFrozen())
	assert.Equal(t, f.cat.Objects.Len(), res.Graph.Len())
	assert.Equal(t, 30, res.Stats.RecordsCreated)
	assert.Equal(t, res.Graph.DependencyCount(), res.Stats.DependenciesCreated)
	assert.Equal(t, res.Stats.DependenciesCreated, res.Stats.ReferenceDependencies+res.Stats.FormulaDependencies)
	assert.Equal(t, 1, res.Stats.UnresolvedReferences)

	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.Is(res.Warnings[0], model.ErrUnresolvedReference))
	assert.Equal(t, "B1", res.Warnings[0].Subject)
}

func TestBuild_DocumentOrder(t *testing.T) {
	res, f := buildFixture(t, "bodice.sm2d", true)

	var want []string
	for _, e := range f.cat.Objects.All() {
		want = append(want, e.ID)
	}
	assert.Equal(t, want, res.Graph.IDs())
}

func TestBuild_VariableFormulas(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)
	g := res.Graph

	assert.Empty(t, record(t, g, "-1").Dependencies)

	half := record(t, g, "-2")
	assert.Equal(t, []string{"bust_circ", "-1"}, depIDs(half.Dependencies))
	assert.Equal(t, model.CategoryMeasurement, half.Dependencies[0].Category)
	assert.Equal(t, model.CategoryVariable, half.Dependencies[1].Category)

	assert.Equal(t, []string{"-2", "waist_circ"}, depIDs(record(t, g, "-3").Dependencies))
}

func TestBuild_ReferencesBeforeFormulas(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)

	a4 := record(t, res.Graph, "6")
	assert.Equal(t, []string{"4", "1", "-3", "3.line"}, depIDs(a4.Dependencies))
	assert.Equal(t, "Line_A_A2", a4.Dependencies[3].Name)
	assert.Equal(t, "firstPoint", a4.Dependencies[0].Via)
	assert.Equal(t, "length", a4.Dependencies[2].Via)
}

func TestBuild_IntersectionPoints(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)
	g := res.Graph

	t.Run("line intersection lists both lines", func(t *testing.T) {
		x1 := record(t, g, "8")
		assert.True(t, x1.DependsOn("5"))
		assert.True(t, x1.DependsOn("7"))
		assert.Equal(t, []string{"2", "3", "4", "6", "5", "7"}, depIDs(x1.Dependencies))
	})

	t.Run("axis intersection lists line and axis", func(t *testing.T) {
		x2 := record(t, g, "9")
		assert.True(t, x2.DependsOn("5"))
		assert.True(t, x2.DependsOn(model.AxisVerticalID))
		assert.False(t, x2.DependsOn(model.AxisHorizontalID))
	})

	t.Run("curve intersection lists both curves", func(t *testing.T) {
		x3 := record(t, g, "14")
		assert.Equal(t, []string{"12", "13"}, depIDs(x3.Dependencies))
	})
}

func buildSource(t *testing.T, src string) *Graph {
	t.Helper()
	root, err := document.Parse(strings.NewReader(src))
	require.NoError(t, err)
	cat, err := categorize.Categorize(context.Background(), root, categorize.WithLogger(quiet))
	require.NoError(t, err)
	res, err := NewBuilder(WithBuilderLogger(quiet)).Build(context.Background(), cat.Objects, cat.Resolver, nil)
	require.NoError(t, err)
	return res.Graph
}

func TestBuild_IntersectionWithoutDeclaredLines(t *testing.T) {
	g := buildSource(t, `<pattern><draftBlock name="B"><calculation>
		<point type="single" id="1" name="A" x="0" y="0"/>
		<point type="single" id="2" name="B" x="0" y="1"/>
		<point type="single" id="3" name="C" x="1" y="1"/>
		<point type="single" id="4" name="D" x="1" y="0"/>
		<point type="lineIntersect" id="5" name="X" p1Line1="1" p2Line1="4" p1Line2="2" p2Line2="3"/>
	</calculation></draftBlock></pattern>`)

	x := record(t, g, "5")
	assert.Equal(t, []string{"1", "4", "2", "3", "5.span1", "5.span2"}, depIDs(x.Dependencies))
	assert.Equal(t, "Line_A_D", x.Dependencies[4].Name)
	assert.Equal(t, "Line_B_C", x.Dependencies[5].Name)
	assert.Empty(t, x.Unresolved())

	span := record(t, g, "5.span1")
	assert.Equal(t, []string{"1", "4"}, depIDs(span.Dependencies))
}

func TestBuild_LineBeforeItsPoints(t *testing.T) {
	g := buildSource(t, `<pattern><draftBlock name="B"><calculation>
		<line id="9" firstPoint="1" secondPoint="2"/>
		<point type="single" id="1" name="A" x="0" y="0"/>
		<point type="single" id="2" name="B" x="1" y="0"/>
		<point type="endLine" id="3" name="C" basePoint="1" angle="0" length="Line_A_B/2"/>
	</calculation></draftBlock></pattern>`)

	line := record(t, g, "9")
	assert.Equal(t, "Line_A_B", line.Name)

	c := record(t, g, "3")
	assert.True(t, c.DependsOn("9"))
	assert.Empty(t, c.Unresolved())
}

func TestBuild_DerivedNames(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)
	g := res.Graph

	// RadiusArc_A_10 resolves to the arc already referenced by id.
	assert.Equal(t, []string{"10"}, depIDs(record(t, g, "11").Dependencies))
	assert.Equal(t, []string{"8", "14", "12"}, depIDs(record(t, g, "15").Dependencies))
	assert.Equal(t, []string{"1", "2", "2.line"}, depIDs(record(t, g, "4").Dependencies))
}

func TestBuild_SplineMembers(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)

	path := record(t, res.Graph, "13")
	assert.Equal(t, []string{"2", "8", "9"}, depIDs(path.Dependencies))
	for _, d := range path.Dependencies {
		assert.Equal(t, "member", d.Via)
	}
}

func TestBuild_UnresolvedToken(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true)

	b1 := record(t, res.Graph, "18")
	unresolved := b1.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "Foo123", unresolved[0].ID)
	assert.Equal(t, "Foo123", unresolved[0].Name)
	assert.Equal(t, []string{"16", "17", "Foo123"}, depIDs(b1.Dependencies))
}

func TestBuild_WithoutMeasurementTable(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", false)

	// Foo123 plus the four measurements the document uses.
	assert.Equal(t, 5, res.Stats.UnresolvedReferences)
	assert.Len(t, res.Warnings, 5)
}

func TestBuild_WorkerCountIndependent(t *testing.T) {
	one, _ := buildFixture(t, "bodice.sm2d", true, WithWorkers(1))
	many, _ := buildFixture(t, "bodice.sm2d", true, WithWorkers(8))

	assert.Equal(t, one.Graph.IDs(), many.Graph.IDs())
	assert.Equal(t, one.Graph.Hash(), many.Graph.Hash())
	assert.Equal(t, 8, many.Stats.Workers)
}

func TestBuild_Idempotent(t *testing.T) {
	first, _ := buildFixture(t, "bodice.sm2d", true)
	second, _ := buildFixture(t, "bodice.sm2d", true)

	assert.Equal(t, first.Graph.Hash(), second.Graph.Hash())
	assert.Equal(t, first.Stats.DependenciesCreated, second.Stats.DependenciesCreated)
}

func TestBuild_Cancelled(t *testing.T) {
	f := loadFixture(t, "bodice.sm2d", false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewBuilder(WithBuilderLogger(quiet)).Build(ctx, f.cat.Objects, f.cat.Resolver, nil)
	require.NoError(t, err)
	assert.True(t, res.Incomplete)
	assert.False(t, res.Success())
	assert.True(t, res.Graph.IsFrozen())
	assert.Less(t, res.Graph.Len(), f.cat.Objects.Len())
}

func TestBuild_InvalidArguments(t *testing.T) {
	f := loadFixture(t, "cycle.sm2d", false)
	b := NewBuilder()

	//nolint:staticcheck
	_, err := b.Build(nil, f.cat.Objects, f.cat.Resolver, nil)
	assert.Error(t, err)

	_, err = b.Build(context.Background(), nil, f.cat.Resolver, nil)
	assert.Error(t, err)

	_, err = b.Build(context.Background(), f.cat.Objects, nil, nil)
	assert.Error(t, err)
}

func TestBuild_MaxRecords(t *testing.T) {
	res, _ := buildFixture(t, "bodice.sm2d", true, WithBuilderMaxRecords(10))

	assert.Equal(t, 10, res.Graph.Len())
	assert.True(t, res.HasErrors())
	assert.True(t, errors.Is(res.RecordErrors[0], ErrMaxRecordsExceeded))
}

func TestBuild_Progress(t *testing.T) {
	var mu sync.Mutex
	phases := map[ProgressPhase]int{}
	progress := func(p BuildProgress) {
		mu.Lock()
		defer mu.Unlock()
		phases[p.Phase]++
	}

	res, f := buildFixture(t, "bodice.sm2d", true, WithProgress(progress))
	require.True(t, res.Success())

	assert.Equal(t, f.cat.Objects.Len(), phases[ProgressPhaseExtracting])
	assert.Equal(t, 1, phases[ProgressPhaseAssembling])
	assert.Equal(t, 1, phases[ProgressPhaseFinalizing])
}

func TestAxisFor(t *testing.T) {
	tests := []struct {
		angle string
		want  string
	}{
		{"90", model.AxisVerticalID},
		{"270", model.AxisVerticalID},
		{"-90", model.AxisVerticalID},
		{"450", model.AxisVerticalID},
		{"0", model.AxisHorizontalID},
		{"180", model.AxisHorizontalID},
		{"45.5", model.AxisHorizontalID},
		{"AngleLine_A_B", model.AxisHorizontalID},
		{"", model.AxisHorizontalID},
	}
	for _, tt := range tests {
		t.Run(tt.angle, func(t *testing.T) {
			id, _ := AxisFor(tt.angle)
			assert.Equal(t, tt.want, id)
		})
	}
}
