// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides the bidirectional identifier table for a run.
//
// # Thread Safety
//
// Resolver is safe for concurrent use. The categorizer is the only writer;
// after Freeze the graph builder's workers read it concurrently.
//
// # Conflict Policy
//
// The first registration of an id (or a name) wins. A later registration
// with a different counterpart is kept out of the table and recorded as a
// duplicate-identifier warning.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// ErrResolverFrozen is returned by Register after Freeze.
var ErrResolverFrozen = errors.New("resolver is frozen")

// ErrEmptyID is returned when registering an entry without an id.
var ErrEmptyID = errors.New("empty identifier")

// Entry is one resolver record.
type Entry struct {
	ID       string
	Name     string
	Category model.Category
}

// Resolver maps object ids to names and back.
type Resolver struct {
	mu        sync.RWMutex
	byID      map[string]Entry
	byName    map[string]string
	order     []string
	conflicts []model.Warning
	frozen    bool
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for conflict warnings.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver pre-populated with the coordinate axes.
//
// Outputs:
//
//	*Resolver - Ready for registration. Never nil.
//
// Example:
//
//	r := index.NewResolver(index.WithLogger(logger))
//	r.Register(index.Entry{ID: "1", Name: "A", Category: model.CategoryPoint})
//	name, ok := r.LookupName("1")
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		byID:   make(map[string]Entry),
		byName: make(map[string]string),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, axis := range Axes() {
		r.byID[axis.ID] = axis
		r.byName[axis.Name] = axis.ID
		r.order = append(r.order, axis.ID)
	}
	return r
}

// Axes returns the fixed coordinate axis entries.
func Axes() []Entry {
	return []Entry{
		{ID: model.AxisHorizontalID, Name: model.AxisHorizontalName, Category: model.CategoryAxis},
		{ID: model.AxisVerticalID, Name: model.AxisVerticalName, Category: model.CategoryAxis},
	}
}

// Register adds an id/name pair.
//
// Description:
//
//	An id already registered with a different name is not overwritten; the
//	conflict is recorded and logged. The same applies to a name already
//	bound to a different id. Re-registering an identical pair is a no-op.
//
// Outputs:
//
//	bool - True if the entry was added to at least one direction.
//	error - ErrResolverFrozen or ErrEmptyID. Conflicts are not errors.
func (r *Resolver) Register(e Entry) (bool, error) {
	if e.ID == "" {
		return false, ErrEmptyID
	}
	if e.Name == "" {
		e.Name = e.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return false, ErrResolverFrozen
	}

	added := false
	if existing, ok := r.byID[e.ID]; ok {
		if existing.Name != e.Name {
			r.conflict(e.ID, fmt.Sprintf("id %s already registered as %q, ignoring %q", e.ID, existing.Name, e.Name))
		}
	} else {
		r.byID[e.ID] = e
		r.order = append(r.order, e.ID)
		added = true
	}

	if boundID, ok := r.byName[e.Name]; ok {
		if boundID != e.ID {
			r.conflict(e.Name, fmt.Sprintf("name %q already bound to id %s, ignoring id %s", e.Name, boundID, e.ID))
		}
	} else {
		r.byName[e.Name] = e.ID
		added = true
	}
	return added, nil
}

// conflict records a duplicate-identifier warning. Caller holds r.mu.
func (r *Resolver) conflict(subject, detail string) {
	w := model.Warning{Kind: model.WarnDuplicateIdentifier, Subject: subject, Detail: detail}
	r.conflicts = append(r.conflicts, w)
	w.Log(r.logger)
}

// LookupName returns the name registered for id.
func (r *Resolver) LookupName(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.Name, ok
}

// LookupID returns the id bound to name.
func (r *Resolver) LookupID(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Lookup returns the full entry for id.
func (r *Resolver) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// LookupByName returns the full entry bound to name.
func (r *Resolver) LookupByName(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	e, ok := r.byID[id]
	return e, ok
}

// CategoryOf returns the category registered for id.
func (r *Resolver) CategoryOf(id string) (model.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.Category, ok
}

// Entries returns every entry in registration order, axes first.
func (r *Resolver) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered ids, axes included.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Conflicts returns a copy of the recorded duplicate-identifier warnings.
func (r *Resolver) Conflicts() []model.Warning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Warning, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// Freeze makes the resolver read-only. Safe to call more than once.
func (r *Resolver) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// IsFrozen reports whether Freeze has been called.
func (r *Resolver) IsFrozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
