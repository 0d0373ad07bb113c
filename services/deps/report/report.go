// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders analysis runs as text or JSON.
//
// Text output is styled through pkg/ux when written to a terminal and plain
// otherwise. JSON output is a stable document described by Document.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AleutianAI/seamlydeps/pkg/ux"
	"github.com/AleutianAI/seamlydeps/services/deps"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for a format other than text or json.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Document is the JSON form of a full run.
type Document struct {
	RunID     string                      `json:"run_id"`
	Source    string                      `json:"source"`
	GraphHash string                      `json:"graph_hash"`
	Summary   graph.Summary               `json:"summary"`
	Stats     graph.BuildStats            `json:"stats"`
	Objects   map[model.Category][]string `json:"objects"`
	Records   []*graph.Record             `json:"records"`
	Variables []graph.Analysis            `json:"variables"`
	Warnings  []model.Warning             `json:"warnings"`
}

// NewDocument collects the JSON form of run.
func NewDocument(ctx context.Context, run *deps.Run) Document {
	doc := Document{
		RunID:     run.ID,
		Source:    run.Source,
		GraphHash: run.Graph.Hash(),
		Summary:   run.Summary,
		Stats:     run.Stats,
		Objects:   make(map[model.Category][]string),
		Records:   run.Graph.Records(),
		Variables: run.Variables(ctx),
		Warnings:  run.Warnings,
	}
	for _, c := range run.Objects.Categories() {
		b, _ := run.Objects.Bucket(c)
		doc.Objects[c] = b.Keys()
	}
	if doc.Warnings == nil {
		doc.Warnings = []model.Warning{}
	}
	return doc
}

// Write renders the full report of run.
//
// Description:
//
//	The text report lists objects by category, the dependency record of
//	every object, every prefixed variable with its dependencies, users and
//	attributes, then summary statistics and warnings.
//
// Inputs:
//
//	ctx - Context for graph queries.
//	w - Destination.
//	run - A completed run. Must not be nil.
//	format - FormatText or FormatJSON.
func Write(ctx context.Context, w io.Writer, run *deps.Run, format Format) error {
	if run == nil {
		return fmt.Errorf("run must not be nil")
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, NewDocument(ctx, run))
	case FormatText, "":
		return writeText(ctx, ux.NewPrinter(w), run)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeText(ctx context.Context, p *ux.Printer, run *deps.Run) error {
	p.Title("Objects by category")
	for _, c := range run.Objects.Categories() {
		b, _ := run.Objects.Bucket(c)
		p.KeyValue(string(c), strings.Join(b.Keys(), ", "))
	}

	p.Blank()
	p.Title("Dependencies")
	for _, rec := range run.Graph.Records() {
		p.KeyValue(rec.Name, dependencyList(rec.Dependencies))
	}

	vars := run.Variables(ctx)
	p.Blank()
	p.Title(fmt.Sprintf("Variables starting with %s", run.VariablePrefix))
	if len(vars) == 0 {
		p.Line("No variables starting with %s found", run.VariablePrefix)
	} else {
		p.Line("Found %d variables starting with %s:", len(vars), run.VariablePrefix)
		for _, v := range vars {
			p.Bullet(v.Name)
		}
		for _, v := range vars {
			p.Blank()
			writeAnalysis(p, v)
		}
	}

	p.Blank()
	writeSummary(p, run)

	if len(run.Warnings) > 0 {
		p.Blank()
		p.Title("Warnings")
		for _, warn := range run.Warnings {
			p.Warning(fmt.Sprintf("%s %s: %s", warn.Kind, warn.Subject, warn.Detail))
		}
	}
	return p.Err()
}

func writeSummary(p *ux.Printer, run *deps.Run) {
	s := run.Summary
	p.Title("Summary statistics")
	p.KeyValue("Total objects", s.TotalObjects)
	cats := make([]string, 0, len(s.Categories))
	for _, c := range run.Objects.Categories() {
		cats = append(cats, fmt.Sprintf("%s=%d", c, s.Categories[c]))
	}
	p.KeyValue("Object types", strings.Join(cats, " "))
	p.KeyValue("Records with dependencies", s.RecordsWithDeps)
	p.KeyValue("Total dependencies", s.TotalDependencies)
	p.KeyValue("Unresolved references", s.UnresolvedCount)
	p.KeyValue(fmt.Sprintf("Variables with %s prefix", run.VariablePrefix), s.HashVariableCount)
	p.KeyValue("Graph hash", run.Graph.Hash())
}

// WriteAnalysis renders one object analysis.
func WriteAnalysis(w io.Writer, a graph.Analysis, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, a)
	}
	p := ux.NewPrinter(w)
	writeAnalysis(p, a)
	return p.Err()
}

func writeAnalysis(p *ux.Printer, a graph.Analysis) {
	p.Section("Analysis of " + a.Name)

	p.Line("  Dependencies of %s:", a.Name)
	bullets(p, a.Dependencies, "No dependencies found")

	p.Line("  Used by:")
	bullets(p, a.Dependents, "Nothing uses this")

	if len(a.Transitive) > len(a.Dependencies) {
		p.Line("  All dependencies:")
		bullets(p, a.Transitive, "")
	}

	if !a.Found {
		p.KeyValue("Object type", "not found among categorized objects")
		p.Line("  This might be an implicit or referenced variable")
		return
	}
	p.KeyValue("Object type", a.Category)
	if a.Kind != "" {
		p.KeyValue("Kind", a.Kind)
	}
	if len(a.Attributes) > 0 {
		p.Line("  Attributes:")
		for _, attr := range a.Attributes {
			p.Line("    %s: %s", attr.Name, attr.Value)
		}
	}
}

// WriteTrace renders the transitive dependencies of one object.
func WriteTrace(w io.Writer, a graph.Analysis, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, struct {
			ID         string             `json:"id"`
			Name       string             `json:"name"`
			Transitive []model.Dependency `json:"transitive"`
		}{a.ID, a.Name, a.Transitive})
	}
	p := ux.NewPrinter(w)
	p.Section("Transitive dependencies of " + a.Name)
	bullets(p, a.Transitive, "No dependencies found")
	return p.Err()
}

// WriteDependents renders the direct users of one object.
func WriteDependents(w io.Writer, a graph.Analysis, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, struct {
			ID         string             `json:"id"`
			Name       string             `json:"name"`
			Dependents []model.Dependency `json:"dependents"`
		}{a.ID, a.Name, a.Dependents})
	}
	p := ux.NewPrinter(w)
	p.Section("Objects that use " + a.Name)
	bullets(p, a.Dependents, "Nothing uses this")
	return p.Err()
}

// WriteDiff renders a graph diff.
func WriteDiff(w io.Writer, d *graph.GraphDiff, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, d)
	}
	p := ux.NewPrinter(w)
	p.Title(fmt.Sprintf("Diff %s %s %s", d.BaseLabel, ux.IconArrow, d.TargetLabel))
	if d.Empty() {
		p.Success("graphs are identical")
		return p.Err()
	}
	diffIDs(p, "Added", d.RecordsAdded)
	diffIDs(p, "Removed", d.RecordsRemoved)
	if len(d.RecordsModified) > 0 {
		p.Section("Modified")
		for _, m := range d.RecordsModified {
			parts := []string{m.ChangeType}
			if len(m.Added) > 0 {
				parts = append(parts, "+"+strings.Join(m.Added, ",+"))
			}
			if len(m.Removed) > 0 {
				parts = append(parts, "-"+strings.Join(m.Removed, ",-"))
			}
			p.Bullet(fmt.Sprintf("%s (%s) %s", m.Name, m.ID, strings.Join(parts, " ")))
		}
	}
	p.Blank()
	p.KeyValue("Dependencies added", d.DependenciesAdded)
	p.KeyValue("Dependencies removed", d.DependenciesRemoved)
	p.KeyValue("Total changes", d.Summary.TotalChanges)
	p.KeyValue("Change ratio", fmt.Sprintf("%.2f", d.Summary.ChangeRatio))
	return p.Err()
}

func diffIDs(p *ux.Printer, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	p.Section(title)
	for _, id := range ids {
		p.Bullet(id)
	}
}

// WriteSnapshots renders snapshot metadata, newest first.
func WriteSnapshots(w io.Writer, metas []*graph.SnapshotMetadata, format Format) error {
	if format == FormatJSON {
		if metas == nil {
			metas = []*graph.SnapshotMetadata{}
		}
		return writeJSON(w, metas)
	}
	p := ux.NewPrinter(w)
	if len(metas) == 0 {
		p.Line("No snapshots found")
		return p.Err()
	}
	for _, m := range metas {
		label := m.Label
		if label == "" {
			label = "-"
		}
		p.Line("%s  %s  %s  records=%d deps=%d  %s",
			p.Style(ux.Styles.Highlight, m.SnapshotID),
			formatMilli(m.CreatedAtMilli),
			label,
			m.RecordCount,
			m.DependencyCount,
			m.Source,
		)
	}
	return p.Err()
}

// WriteSnapshot renders one stored snapshot: its metadata and records.
func WriteSnapshot(w io.Writer, g *graph.Graph, meta *graph.SnapshotMetadata, format Format) error {
	if g == nil || meta == nil {
		return fmt.Errorf("snapshot must not be nil")
	}
	if format == FormatJSON {
		return writeJSON(w, struct {
			Metadata *graph.SnapshotMetadata  `json:"metadata"`
			Graph    *graph.SerializableGraph `json:"graph"`
		}{meta, g.ToSerializable()})
	}
	p := ux.NewPrinter(w)
	p.Title("Snapshot " + meta.SnapshotID)
	p.KeyValue("Source", meta.Source)
	p.KeyValue("Created", formatMilli(meta.CreatedAtMilli))
	if meta.Label != "" {
		p.KeyValue("Label", meta.Label)
	}
	p.KeyValue("Graph hash", meta.GraphHash)
	p.Blank()
	p.Section("Dependencies")
	for _, rec := range g.Records() {
		p.KeyValue(rec.Name, dependencyList(rec.Dependencies))
	}
	return p.Err()
}

func bullets(p *ux.Printer, deps []model.Dependency, empty string) {
	if len(deps) == 0 {
		if empty != "" {
			p.Line("    %s", empty)
		}
		return
	}
	for _, d := range deps {
		p.Bullet(describe(d))
	}
}

func describe(d model.Dependency) string {
	s := d.Name
	if d.ID != d.Name {
		s = fmt.Sprintf("%s (%s)", d.Name, d.ID)
	}
	if d.Unresolved {
		s += " [unresolved]"
	}
	return s
}

func dependencyList(deps []model.Dependency) string {
	if len(deps) == 0 {
		return "[]"
	}
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func formatMilli(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
