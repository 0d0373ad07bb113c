// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deps runs the full dependency analysis of a pattern document.
//
// A run parses the document, categorizes its elements, loads the
// measurement reference and builds the dependency graph:
//
//	document.ParseFile -> categorize.Categorize -> graph.Builder.Build
//
// The returned Run owns every intermediate product so that the CLI, the
// report renderers and the HTTP server share one query surface.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/seamlydeps/services/deps/attrs"
	"github.com/AleutianAI/seamlydeps/services/deps/categorize"
	"github.com/AleutianAI/seamlydeps/services/deps/config"
	"github.com/AleutianAI/seamlydeps/services/deps/document"
	"github.com/AleutianAI/seamlydeps/services/deps/formula"
	"github.com/AleutianAI/seamlydeps/services/deps/graph"
	"github.com/AleutianAI/seamlydeps/services/deps/index"
	"github.com/AleutianAI/seamlydeps/services/deps/measurements"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// ErrNilDocument is returned by Analyze without a document root.
var ErrNilDocument = errors.New("document must not be nil")

// Options configures a Service.
type Options struct {
	// Measurements is an explicit measurement table path. It is merged
	// with the table the document itself references.
	Measurements string

	// VariablePrefix marks variables. Default model.DefaultVariablePrefix.
	VariablePrefix string

	// Workers is the graph builder pool size. 0 means one per CPU.
	Workers int

	// Functions are extra formula names never treated as references.
	Functions []string

	// DisplayAttributes extends the presentation attribute deny-list.
	DisplayAttributes []string

	// Logger receives warnings and debug output.
	Logger *slog.Logger

	// Progress receives graph build progress.
	Progress graph.ProgressFunc
}

// Option configures a Service.
type Option func(*Options)

// WithMeasurements sets the explicit measurement table.
func WithMeasurements(path string) Option {
	return func(o *Options) { o.Measurements = path }
}

// WithVariablePrefix sets the variable prefix.
func WithVariablePrefix(prefix string) Option {
	return func(o *Options) {
		if prefix != "" {
			o.VariablePrefix = prefix
		}
	}
}

// WithWorkers sets the builder pool size.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.Workers = n
		}
	}
}

// WithFunctions adds reserved formula names.
func WithFunctions(names ...string) Option {
	return func(o *Options) { o.Functions = append(o.Functions, names...) }
}

// WithDisplayAttributes adds presentation attributes to strip.
func WithDisplayAttributes(names ...string) Option {
	return func(o *Options) { o.DisplayAttributes = append(o.DisplayAttributes, names...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithProgress sets the build progress callback.
func WithProgress(fn graph.ProgressFunc) Option {
	return func(o *Options) { o.Progress = fn }
}

// OptionsFromConfig converts a loaded configuration into Service options.
func OptionsFromConfig(cfg config.Config) []Option {
	return []Option{
		WithMeasurements(cfg.Measurements),
		WithVariablePrefix(cfg.VariablePrefix),
		WithWorkers(cfg.Workers),
		WithFunctions(cfg.Functions...),
		WithDisplayAttributes(cfg.DisplayAttributes...),
	}
}

// Service runs dependency analyses.
//
// Thread Safety: Safe for concurrent use; each call to Analyze builds
// independent state.
type Service struct {
	options   Options
	extractor *formula.Extractor
	filter    *attrs.Filter
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	o := Options{
		VariablePrefix: model.DefaultVariablePrefix,
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		options: o,
		extractor: formula.NewExtractor(
			formula.WithVariablePrefix(o.VariablePrefix),
			formula.WithReservedNames(o.Functions...),
		),
		filter: attrs.New(attrs.WithExtraDisplayAttributes(o.DisplayAttributes...)),
	}
}

// Run is the result of one analysis.
type Run struct {
	// ID uniquely identifies the run in logs and snapshots.
	ID string

	// Source is the analysed document path, or a caller-chosen label.
	Source string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall time of the whole run.
	Duration time.Duration

	// VariablePrefix is the prefix the run was analysed with.
	VariablePrefix string

	Objects      *model.Objects
	Resolver     *index.Resolver
	Measurements *measurements.Table
	Graph        *graph.Graph

	// Warnings holds every recoverable problem, in pipeline order:
	// measurement table, categorization, then graph build.
	Warnings []model.Warning

	// Stats are the graph build statistics.
	Stats graph.BuildStats

	// Summary aggregates Objects and Graph.
	Summary graph.Summary
}

// AnalyzeFile parses and analyses the document at path.
//
// Outputs:
//
//	*Run - The completed run.
//	error - *document.ParseInputError for unreadable or malformed input,
//	        graph.ErrBuildCancelled when ctx ends mid-run.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*Run, error) {
	root, err := document.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, root, path, filepath.Dir(path))
}

// Analyze runs the pipeline over an already parsed document.
//
// Description:
//
//	A relative <measurements> reference in the document is resolved
//	against baseDir and merged with the explicit Measurements option.
//	Neither table being readable is a warning, not an error.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	root - The parsed document. Must not be nil.
//	source - Label stored in the graph and snapshots.
//	baseDir - Directory for relative references. May be empty.
func (s *Service) Analyze(ctx context.Context, root *document.Element, source, baseDir string) (*Run, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if root == nil {
		return nil, ErrNilDocument
	}

	run := &Run{
		ID:             uuid.NewString(),
		Source:         source,
		StartedAt:      time.Now(),
		VariablePrefix: s.options.VariablePrefix,
	}
	logger := s.options.Logger.With(slog.String("run_id", run.ID))

	run.Measurements = s.loadMeasurements(root, baseDir, logger, run)

	cat, err := categorize.Categorize(ctx, root,
		categorize.WithLogger(logger),
		categorize.WithFilter(s.filter),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", graph.ErrBuildCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("categorize %s: %w", source, err)
	}
	run.Objects = cat.Objects
	run.Resolver = cat.Resolver
	run.Warnings = append(run.Warnings, cat.Warnings...)

	builder := graph.NewBuilder(
		graph.WithWorkers(s.options.Workers),
		graph.WithSource(source),
		graph.WithExtractor(s.extractor),
		graph.WithBuilderLogger(logger),
		graph.WithProgress(s.options.Progress),
	)
	res, err := builder.Build(ctx, cat.Objects, cat.Resolver, run.Measurements)
	if err != nil {
		return nil, fmt.Errorf("build graph for %s: %w", source, err)
	}
	if res.Incomplete {
		return nil, fmt.Errorf("%w: %d of %d objects processed", graph.ErrBuildCancelled,
			res.Stats.ObjectsProcessed, cat.Objects.Len())
	}
	for _, re := range res.RecordErrors {
		logger.Warn("record dropped", slog.String("id", re.ID), slog.String("error", re.Err.Error()))
	}

	run.Graph = res.Graph
	run.Stats = res.Stats
	run.Warnings = append(run.Warnings, res.Warnings...)
	run.Summary = graph.Summarize(run.Graph, run.Objects, run.VariablePrefix)
	run.Duration = time.Since(run.StartedAt)

	logger.Info("analysis complete",
		slog.String("source", source),
		slog.Int("objects", run.Summary.TotalObjects),
		slog.Int("dependencies", run.Summary.TotalDependencies),
		slog.Int("warnings", len(run.Warnings)),
		slog.Duration("duration", run.Duration),
	)
	return run, nil
}

func (s *Service) loadMeasurements(root *document.Element, baseDir string, logger *slog.Logger, run *Run) *measurements.Table {
	var tables []*measurements.Table

	if ref := documentMeasurements(root); ref != "" {
		if !filepath.IsAbs(ref) && baseDir != "" {
			ref = filepath.Join(baseDir, ref)
		}
		t, w := measurements.Load(ref, logger)
		if w != nil {
			run.Warnings = append(run.Warnings, *w)
		}
		tables = append(tables, t)
	}
	if s.options.Measurements != "" {
		t, w := measurements.Load(s.options.Measurements, logger)
		if w != nil {
			run.Warnings = append(run.Warnings, *w)
		}
		tables = append(tables, t)
	}
	return measurements.Merge(tables...)
}

// documentMeasurements returns the text of the top-level <measurements>
// element.
func documentMeasurements(root *document.Element) string {
	if m, ok := root.Child("measurements"); ok {
		return m.Text
	}
	return ""
}

// ResolveRef maps an id or a name to an id. Ids take precedence; a name is
// looked up in the resolver.
func (r *Run) ResolveRef(ref string) (string, bool) {
	if _, ok := r.Objects.ByID(ref); ok {
		return ref, true
	}
	if _, ok := r.Graph.Get(ref); ok {
		return ref, true
	}
	if id, ok := r.Resolver.LookupID(ref); ok {
		return id, true
	}
	return "", false
}

// Analyze returns the analysis of one object. Unknown references are
// analysed under the raw ref and report Found=false.
func (r *Run) Analyze(ctx context.Context, ref string) graph.Analysis {
	id, ok := r.ResolveRef(ref)
	if !ok {
		id = ref
	}
	return r.Graph.Analyze(ctx, r.Objects, id)
}

// Variables analyses every prefixed object, sorted by name.
func (r *Run) Variables(ctx context.Context) []graph.Analysis {
	vars := graph.HashVariables(r.Objects, r.VariablePrefix)
	out := make([]graph.Analysis, 0, len(vars))
	for _, v := range vars {
		out = append(out, r.Graph.Analyze(ctx, r.Objects, v.ID))
	}
	return out
}

// WarningCounts tallies Warnings by kind.
func (r *Run) WarningCounts() map[model.WarningKind]int {
	return model.CountWarnings(r.Warnings)
}
