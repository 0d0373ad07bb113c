// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package measurements loads the reference table of known body measurement
// names.
//
// Two sources are accepted: a flat CSV table whose first column holds the
// names, or a measurement file (.smis, .vit) whose <m name="..."> elements
// declare them. A table that cannot be read is not fatal; callers get an
// empty table and a warning.
package measurements

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/seamlydeps/services/deps/document"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// ErrNoPath is returned by Load when no table path was configured.
var ErrNoPath = errors.New("no measurement table configured")

// Table is an ordered set of measurement names.
//
// Thread Safety: Read-only after construction; safe for concurrent use.
type Table struct {
	names []string
	set   map[string]struct{}
}

// NewTable builds a table from names, dropping blanks and duplicates.
func NewTable(names ...string) *Table {
	t := &Table{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		t.add(n)
	}
	return t
}

func (t *Table) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := t.set[name]; ok {
		return
	}
	t.set[name] = struct{}{}
	t.names = append(t.names, name)
}

// Has reports whether name is a known measurement. A nil table knows none.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.set[name]
	return ok
}

// Names returns the names in load order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of names.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Load reads the table at path, choosing the format by extension.
//
// Description:
//
//	".smis", ".vit" and ".xml" files are read as measurement XML. Anything
//	else is read as CSV. Failure never aborts the run: an empty table is
//	returned together with a reference-table-unavailable warning, which is
//	also logged.
//
// Outputs:
//
//	*Table - Never nil.
//	*model.Warning - Non-nil when the table could not be read.
func Load(path string, logger *slog.Logger) (*Table, *model.Warning) {
	if logger == nil {
		logger = slog.Default()
	}

	t, err := load(path)
	if err != nil {
		w := &model.Warning{
			Kind:    model.WarnReferenceTableUnavailable,
			Subject: path,
			Detail:  fmt.Sprintf("measurement table unavailable, continuing without it: %v", err),
		}
		w.Log(logger)
		return NewTable(), w
	}

	logger.Debug("measurement table loaded",
		slog.String("path", path),
		slog.Int("names", t.Len()),
	)
	return t, nil
}

func load(path string) (*Table, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".smis", ".vit", ".xml":
		root, err := document.ParseFile(path)
		if err != nil {
			return nil, err
		}
		return FromDocument(root), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV reads a flat table whose first column holds measurement names. A
// first row whose first cell is "name" is treated as a header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	t := NewTable()
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading measurement csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), "name") {
				continue
			}
		}
		t.add(rec[0])
	}
	return t, nil
}

// FromDocument collects the names of every <m> element in a measurement
// document.
func FromDocument(root *document.Element) *Table {
	t := NewTable()
	root.Walk(func(e *document.Element) bool {
		if e.Tag == "m" {
			if name, ok := e.Attr("name"); ok {
				t.add(name)
			}
		}
		return true
	})
	return t
}

// Merge returns a table holding the names of every input, in order.
func Merge(tables ...*Table) *Table {
	out := NewTable()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, n := range t.names {
			out.add(n)
		}
	}
	return out
}
