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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// GraphSchemaVersion is the version of the serialization schema.
// Increment when the serialization format changes in a breaking way.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON-serializable representation of a Graph.
//
// Description:
//
//	Records keep document order, which is already deterministic for a
//	given input, so two builds of the same document serialize to the
//	same bytes apart from BuiltAtMilli.
//
// Thread Safety: SerializableGraph is a value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format version.
	SchemaVersion string `json:"schema_version"`

	// Source is the path of the document the graph was built from.
	Source string `json:"source"`

	// BuiltAtMilli is the Unix timestamp in milliseconds when the graph was frozen.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic hash of the graph content.
	GraphHash string `json:"graph_hash"`

	// Records contains every record in document order.
	Records []Record `json:"records"`
}

// ToSerializable converts a Graph to its JSON-serializable representation.
//
// Outputs:
//
//	*SerializableGraph - The serializable representation. Never nil.
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: GraphSchemaVersion,
			Records:       []Record{},
		}
	}

	records := make([]Record, 0, len(g.order))
	for _, id := range g.order {
		rec := g.records[id]
		deps := make([]model.Dependency, len(rec.Dependencies))
		copy(deps, rec.Dependencies)
		records = append(records, Record{
			ID:           rec.ID,
			Name:         rec.Name,
			Category:     rec.Category,
			Dependencies: deps,
		})
	}

	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Source:        g.Source,
		BuiltAtMilli:  g.BuiltAtMilli,
		GraphHash:     g.Hash(),
		Records:       records,
	}
}

// FromSerializable reconstructs a Graph from its serializable representation.
//
// Description:
//
//	Replays AddRecord for each entry, then freezes the graph and restores
//	the original BuiltAtMilli.
//
// Inputs:
//
//	sg - The serializable graph to reconstruct. Must not be nil.
//	opts - Optional GraphOption values (e.g., WithMaxRecords).
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	error - ErrSchemaVersion for an unknown schema, or the AddRecord error.
func FromSerializable(sg *SerializableGraph, opts ...GraphOption) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("serializable graph must not be nil")
	}
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("%w: %q (expected %q)", ErrSchemaVersion, sg.SchemaVersion, GraphSchemaVersion)
	}

	g := NewGraph(sg.Source, opts...)
	for i := range sg.Records {
		rec := sg.Records[i]
		if err := g.AddRecord(&rec); err != nil {
			return nil, fmt.Errorf("adding record %d (%s): %w", i, rec.ID, err)
		}
	}

	g.Freeze()
	g.BuiltAtMilli = sg.BuiltAtMilli
	return g, nil
}

// Hash returns a hex SHA256 over the records and their dependencies.
//
// Description:
//
//	Covers ids, names, categories and the unresolved flag in record order.
//	Source, BuiltAtMilli and Via are excluded, so rebuilding the same
//	document, or the same document at another path, yields the same hash.
func (g *Graph) Hash() string {
	h := sha256.New()
	if g == nil {
		return hex.EncodeToString(h.Sum(nil))
	}
	for _, id := range g.order {
		rec := g.records[id]
		writeField(h, rec.ID)
		writeField(h, rec.Name)
		writeField(h, string(rec.Category))
		writeField(h, strconv.Itoa(len(rec.Dependencies)))
		for _, d := range rec.Dependencies {
			writeField(h, d.ID)
			writeField(h, d.Name)
			writeField(h, string(d.Category))
			writeField(h, strconv.FormatBool(d.Unresolved))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes a length-prefixed field so adjacent values cannot
// run together.
func writeField(w io.Writer, s string) {
	_, _ = w.Write([]byte(strconv.Itoa(len(s))))
	_, _ = w.Write([]byte{':'})
	_, _ = w.Write([]byte(s))
}
