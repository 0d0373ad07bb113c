// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package categorize walks a parsed pattern document and sorts every
// identifiable element into typed buckets.
//
// # Walk
//
// The walk is pre-order and follows document order. Each element is
// dispatched to the variant for its tag and filtered to its functional
// attributes. Structural containers (calculation, modeling, increments, ...)
// carry neither id nor name; they are descended into but not stored.
//
// Lines, arcs and splines without a name attribute are named after the
// points they join. Those names are derived once the walk has seen every
// element, so a line declared before its points is still named Line_A_B.
// Only then are elements registered with the resolver and inserted into
// Objects, in document order.
//
// # Identifiers
//
// Variables, measurements and draft blocks commonly lack an id. They receive
// one from the run's Counters, which are threaded through the walk as a
// value and returned in Result. Nothing is kept in package state between
// runs, so categorizing the same document twice yields identical results.
//
// # Collisions
//
// Two elements of one category with the same key keep the first; the second
// is reported as a key-collision warning. Duplicate ids are handled by the
// resolver under the same first-wins policy.
package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/seamlydeps/services/deps/attrs"
	"github.com/AleutianAI/seamlydeps/services/deps/document"
	"github.com/AleutianAI/seamlydeps/services/deps/index"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// cancelCheckInterval is how many elements are visited between context
// checks.
const cancelCheckInterval = 256

// Result is the output of Categorize.
type Result struct {
	// Objects holds every stored element by category.
	Objects *model.Objects

	// Resolver holds every registered id/name pair. It is frozen.
	Resolver *index.Resolver

	// Counters are the synthetic id counters after the walk.
	Counters Counters

	// Warnings holds attribute-missing, key-collision and
	// duplicate-identifier warnings in the order they were found.
	Warnings []model.Warning

	// Visited is the number of document elements walked.
	Visited int

	// Duration is the wall time of the walk.
	Duration time.Duration
}

// config holds Categorize options.
type config struct {
	logger   *slog.Logger
	filter   *attrs.Filter
	counters Counters
}

// Option configures Categorize.
type Option func(*config)

// WithLogger sets the logger for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFilter sets the attribute filter.
func WithFilter(f *attrs.Filter) Option {
	return func(c *config) {
		if f != nil {
			c.filter = f
		}
	}
}

// WithCounters starts the walk from the given counters instead of zero.
func WithCounters(start Counters) Option {
	return func(c *config) {
		c.counters = start
	}
}

// state is threaded through the walk.
type state struct {
	counters Counters
	seq      int
	block    string
	visited  int
}

// walker holds the accumulators of one run.
type walker struct {
	ctx      context.Context
	logger   *slog.Logger
	filter   *attrs.Filter
	objects  *model.Objects
	resolver *index.Resolver
	warnings []model.Warning
	entries  []*entry
	pending  []*model.FilteredElement
	err      error
}

// entry is an element seen by the walk, stored by finish.
type entry struct {
	el      *document.Element
	v       variant
	fe      *model.FilteredElement
	missing []string
}

// Categorize walks root and returns the categorized objects.
//
// Description:
//
//	Performs a single pre-order pass. Per element it picks the variant for
//	the tag, assigns a synthetic id where needed and filters attributes.
//	After the pass derived names are resolved, then every element is
//	registered and stored. Variants may consume structural children
//	(spline path points, operation items) and add implied objects (tool
//	lines, operation results).
//
// Inputs:
//
//	ctx - Context for cancellation, checked periodically.
//	root - Parsed document root. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Result - The objects, the frozen resolver, final counters and warnings.
//	error - Non-nil only if root is nil or ctx was cancelled.
//
// Example:
//
//	root, err := document.ParseFile("shirt.sm2d")
//	res, err := categorize.Categorize(ctx, root, categorize.WithLogger(logger))
//	points, _ := res.Objects.Bucket(model.CategoryPoint)
func Categorize(ctx context.Context, root *document.Element, opts ...Option) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("categorize: context must not be nil")
	}
	if root == nil {
		return nil, ErrNilDocument
	}

	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.filter == nil {
		cfg.filter = attrs.New()
	}

	ctx, span := startCategorizeSpan(ctx)
	defer span.End()
	start := time.Now()

	w := &walker{
		ctx:      ctx,
		logger:   cfg.logger,
		filter:   cfg.filter,
		objects:  model.NewObjects(),
		resolver: index.NewResolver(index.WithLogger(cfg.logger)),
	}

	final := w.visit(root, state{counters: cfg.counters})
	final = w.finish(final)
	w.resolver.Freeze()

	if w.err != nil {
		setCategorizeSpanResult(span, w.objects.Len(), false)
		return nil, fmt.Errorf("categorize: %w", w.err)
	}

	warnings := append(w.warnings, w.resolver.Conflicts()...)
	res := &Result{
		Objects:  w.objects,
		Resolver: w.resolver,
		Counters: final.counters,
		Warnings: warnings,
		Visited:  final.visited,
		Duration: time.Since(start),
	}

	recordCategorizeMetrics(ctx, res)
	setCategorizeSpanResult(span, w.objects.Len(), true)

	w.logger.Debug("document categorized",
		slog.Int("elements", res.Visited),
		slog.Int("objects", res.Objects.Len()),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// visit processes el and, if its variant allows, its children. It returns
// the state after the subtree; the block scope of el does not leak out.
func (w *walker) visit(el *document.Element, st state) state {
	if w.err != nil {
		return st
	}
	st.visited++
	if (st.visited-1)%cancelCheckInterval == 0 {
		if err := w.ctx.Err(); err != nil {
			w.err = err
			return st
		}
	}

	v := variantFor(el.Tag)
	fe, st := w.categorize(el, v, st)

	if fe != nil && v.Category() == model.CategoryDraftBlock {
		st.block = fe.Key()
	}

	if v.Descend() {
		parentBlock := st.block
		for _, c := range el.Children {
			st = w.visit(c, st)
			st.block = parentBlock
		}
	}
	return st
}

// categorize builds the element and queues it for finish, returning nil for
// anonymous structural elements.
func (w *walker) categorize(el *document.Element, v variant, st state) (*model.FilteredElement, state) {
	category := v.Category()
	id, _ := el.Attr("id")
	name, _ := el.Attr("name")

	synthetic := false
	if id == "" && Synthesizes(category) {
		id, st.counters = st.counters.Next(category)
		synthetic = true
	}
	if id == "" {
		if name == "" {
			return nil, st
		}
		id = name
	}

	kind, _ := el.Attr("type")
	res := w.filter.Filter(category, kind, rawAttrs(el))

	fe := &model.FilteredElement{
		ID:         id,
		Name:       name,
		Category:   category,
		Tag:        el.Tag,
		Kind:       kind,
		Block:      st.block,
		Attributes: res.Attributes,
		Synthetic:  synthetic,
	}
	fe.Members = v.Members(el)
	if _, derives := v.(namer); fe.Name == "" && !derives {
		fe.Name = fe.ID
	}

	w.entries = append(w.entries, &entry{el: el, v: v, fe: fe, missing: res.Missing})
	return fe, st
}

// finish names, expands and stores the walked elements.
//
// Description:
//
//	Derived names are resolved against every element of the document,
//	repeating until no more names can be derived since a name may depend
//	on another derived name. Elements still unnamed fall back to their id.
//	Each element is then stored followed by the objects it implies. Tool
//	lines come last and are dropped when a stored line already joins the
//	same points.
func (w *walker) finish(st state) state {
	if w.err != nil {
		return st
	}
	known := newNameTable()
	for _, e := range w.entries {
		if e.fe.Name != "" {
			known.add(e.fe)
		}
	}
	for progress := true; progress; {
		progress = false
		for _, e := range w.entries {
			n, ok := e.v.(namer)
			if !ok || e.fe.Name != "" {
				continue
			}
			if name := n.Name(e.el, e.fe, known.name); name != "" {
				e.fe.Name = name
				known.add(e.fe)
				progress = true
			}
		}
	}

	for _, e := range w.entries {
		if e.fe.Name == "" {
			e.fe.Name = e.fe.ID
			known.add(e.fe)
		}
		for _, missing := range e.missing {
			w.warn(model.Warning{
				Kind:    model.WarnAttributeMissing,
				Subject: e.fe.Key(),
				Detail:  fmt.Sprintf("%s %q (%s) has no %q attribute", e.fe.Category, e.fe.Key(), kindOrTag(e.fe), missing),
			})
		}
		st = w.store(e.fe, st)

		for _, d := range e.v.Derived(e.el, e.fe, known.name, known.category) {
			if d.Kind == ImplicitKind {
				w.pending = append(w.pending, d)
				continue
			}
			known.add(d)
			st = w.store(d, st)
		}
	}
	w.entries = nil
	return w.flushImplicit(st)
}

// flushImplicit stores the tool lines whose id and name, in either point
// order, no stored element claims.
func (w *walker) flushImplicit(st state) state {
	for _, d := range w.pending {
		if _, taken := w.resolver.LookupName(d.ID); taken {
			continue
		}
		if w.lineTaken(d) {
			continue
		}
		st = w.store(d, st)
	}
	w.pending = nil
	return st
}

func (w *walker) lineTaken(d *model.FilteredElement) bool {
	if _, taken := w.resolver.LookupID(d.Name); taken {
		return true
	}
	first, ok1 := w.resolver.LookupName(d.Attributes.Value("firstPoint"))
	second, ok2 := w.resolver.LookupName(d.Attributes.Value("secondPoint"))
	if !ok1 || !ok2 {
		return false
	}
	_, taken := w.resolver.LookupID(joinName("Line_", second, first))
	return taken
}

// store registers and inserts fe, assigning its document order. An element
// whose key is already stored in its category is reported and dropped
// without being registered.
func (w *walker) store(fe *model.FilteredElement, st state) state {
	if existing, dup := w.objects.Get(fe.Category, fe.Key()); dup {
		w.warn(model.Warning{
			Kind:    model.WarnKeyCollision,
			Subject: fe.Key(),
			Detail: fmt.Sprintf("%s key %q already used by id %s, keeping it and ignoring id %s",
				fe.Category, fe.Key(), existing.ID, fe.ID),
		})
		return st
	}

	fe.Seq = st.seq
	st.seq++

	if _, err := w.resolver.Register(index.Entry{ID: fe.ID, Name: fe.Name, Category: fe.Category}); err != nil {
		w.logger.Debug("register failed", slog.String("id", fe.ID), slog.String("error", err.Error()))
	}
	w.objects.Insert(fe)
	return st
}

// nameTable maps ids to names and categories before anything is
// registered. The first element with an id wins.
type nameTable struct {
	names map[string]string
	cats  map[string]model.Category
}

func newNameTable() *nameTable {
	return &nameTable{names: make(map[string]string), cats: make(map[string]model.Category)}
}

func (t *nameTable) add(fe *model.FilteredElement) {
	if _, ok := t.names[fe.ID]; ok {
		return
	}
	t.names[fe.ID] = fe.Name
	t.cats[fe.ID] = fe.Category
}

func (t *nameTable) name(id string) (string, bool) {
	n, ok := t.names[id]
	return n, ok
}

func (t *nameTable) category(id string) (model.Category, bool) {
	c, ok := t.cats[id]
	return c, ok
}

func (w *walker) warn(warning model.Warning) {
	w.warnings = append(w.warnings, warning)
	warning.Log(w.logger)
}

func rawAttrs(el *document.Element) []attrs.RawAttr {
	out := make([]attrs.RawAttr, len(el.Attrs))
	for i, a := range el.Attrs {
		out[i] = attrs.RawAttr{Name: a.Name, Value: a.Value}
	}
	return out
}

func kindOrTag(fe *model.FilteredElement) string {
	if fe.Kind != "" {
		return fe.Kind
	}
	return fe.Tag
}
