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
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/seamlydeps/services/deps/formula"
	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// ProgressPhase indicates the current phase of a build.
type ProgressPhase int

const (
	// ProgressPhaseExtracting indicates dependency extraction is running.
	ProgressPhaseExtracting ProgressPhase = iota

	// ProgressPhaseAssembling indicates records are being added to the graph.
	ProgressPhaseAssembling

	// ProgressPhaseFinalizing indicates the graph is being frozen.
	ProgressPhaseFinalizing
)

// String returns the phase name.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseExtracting:
		return "extracting"
	case ProgressPhaseAssembling:
		return "assembling"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("ProgressPhase(%d)", p)
	}
}

// BuildProgress reports build progress.
type BuildProgress struct {
	Phase   ProgressPhase
	Done    int
	Total   int
	Records int
}

// ProgressFunc is called with build progress. It may be called from worker
// goroutines and must be safe for concurrent use.
type ProgressFunc func(BuildProgress)

// BuilderOptions configures the Builder.
type BuilderOptions struct {
	// Workers is the number of concurrent extraction workers.
	// Default: runtime.NumCPU().
	Workers int

	// Source labels the graph with the document path.
	Source string

	// Extractor resolves formula references. Default: formula.NewExtractor().
	Extractor *formula.Extractor

	// Logger receives warnings and debug output. Default: slog.Default().
	Logger *slog.Logger

	// Progress is called as objects complete. Optional.
	Progress ProgressFunc

	// MaxRecords caps the graph size. Default: DefaultMaxRecords.
	MaxRecords int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Workers:    runtime.NumCPU(),
		MaxRecords: DefaultMaxRecords,
	}
}

// BuilderOption is a functional option for configuring a Builder.
type BuilderOption func(*BuilderOptions)

// WithWorkers sets the number of workers. Values below 1 are ignored.
func WithWorkers(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithSource sets the document path recorded on the graph.
func WithSource(source string) BuilderOption {
	return func(o *BuilderOptions) {
		o.Source = source
	}
}

// WithExtractor sets the formula extractor.
func WithExtractor(ex *formula.Extractor) BuilderOption {
	return func(o *BuilderOptions) {
		o.Extractor = ex
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = logger
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.Progress = fn
	}
}

// WithBuilderMaxRecords caps the number of records in the built graph.
func WithBuilderMaxRecords(n int) BuilderOption {
	return func(o *BuilderOptions) {
		if n > 0 {
			o.MaxRecords = n
		}
	}
}

// Builder turns categorized objects into a dependency graph.
//
// Thread Safety: A Builder may run several builds concurrently; each build
// owns its own state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Extractor == nil {
		options.Extractor = formula.NewExtractor()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{options: options}
}

// slot is the extraction output of the object at one position.
type slot struct {
	element *model.FilteredElement
	result  extraction
	done    bool
}

// Build extracts the dependencies of every object.
//
// Description:
//
//	Objects are independent of each other, so extraction runs on a bounded
//	worker pool. Each worker writes only its own slot; records are then
//	added in document order, so the graph is identical for any worker
//	count. On cancellation the completed records are returned with
//	Incomplete set.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	objects - Categorized objects. Must not be nil.
//	idx - Identifier table, frozen or otherwise not written during the build.
//	measurements - Known measurement names. May be nil.
//
// Outputs:
//
//	*BuildResult - The frozen graph, warnings and statistics.
//	error - Non-nil only for invalid arguments.
//
// Example:
//
//	b := graph.NewBuilder(graph.WithWorkers(4))
//	res, err := b.Build(ctx, cat.Objects, cat.Resolver, table)
func (b *Builder) Build(ctx context.Context, objects *model.Objects, idx NameIndex, measurements formula.MeasurementSet) (*BuildResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if objects == nil {
		return nil, fmt.Errorf("objects must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("name index must not be nil")
	}

	elements := objects.All()

	ctx, span := startBuildSpan(ctx, len(elements))
	defer span.End()
	start := time.Now()

	slots := make([]slot, len(elements))
	var completed atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.options.Workers)
	for i, e := range elements {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			slots[i] = slot{
				element: e,
				result:  extract(e, idx, b.options.Extractor, measurements),
				done:    true,
			}
			n := completed.Add(1)
			b.reportProgress(BuildProgress{Phase: ProgressPhaseExtracting, Done: int(n), Total: len(elements)})
			return nil
		})
	}
	waitErr := eg.Wait()

	result := &BuildResult{
		Graph: NewGraph(b.options.Source, WithMaxRecords(b.options.MaxRecords)),
		Stats: BuildStats{Workers: b.options.Workers},
	}
	if waitErr != nil || ctx.Err() != nil {
		result.Incomplete = true
		if waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, context.DeadlineExceeded) {
			b.options.Logger.Warn("dependency extraction stopped", slog.String("error", waitErr.Error()))
		}
	}

	b.assemble(result, slots)

	b.reportProgress(BuildProgress{Phase: ProgressPhaseFinalizing, Done: len(elements), Total: len(elements), Records: result.Graph.Len()})
	result.Graph.Freeze()

	duration := time.Since(start)
	result.Stats.DurationMilli = duration.Milliseconds()
	result.Stats.DurationMicro = duration.Microseconds()

	setBuildSpanResult(span, result.Stats.RecordsCreated, result.Stats.DependenciesCreated, result.Incomplete)
	recordBuildMetrics(ctx, duration, result.Stats, !result.Incomplete)

	b.options.Logger.Debug("dependency graph built",
		slog.String("source", b.options.Source),
		slog.Int("records", result.Stats.RecordsCreated),
		slog.Int("dependencies", result.Stats.DependenciesCreated),
		slog.Int("unresolved", result.Stats.UnresolvedReferences),
		slog.Int("workers", b.options.Workers),
		slog.Bool("incomplete", result.Incomplete),
	)
	return result, nil
}

// assemble adds completed slots to the graph in order and tallies stats.
func (b *Builder) assemble(result *BuildResult, slots []slot) {
	for _, s := range slots {
		if !s.done {
			continue
		}
		result.Stats.ObjectsProcessed++

		rec := &Record{
			ID:           s.element.ID,
			Name:         s.element.Key(),
			Category:     s.element.Category,
			Dependencies: s.result.deps,
		}
		if err := result.Graph.AddRecord(rec); err != nil {
			result.RecordErrors = append(result.RecordErrors, RecordError{ID: rec.ID, Err: err})
			continue
		}

		result.Stats.RecordsCreated++
		result.Stats.DependenciesCreated += len(rec.Dependencies)
		result.Stats.ReferenceDependencies += s.result.references
		result.Stats.FormulaDependencies += s.result.formulas
		result.Stats.UnresolvedReferences += s.result.unresolved

		for _, w := range s.result.warnings {
			result.Warnings = append(result.Warnings, w)
			w.Log(b.options.Logger)
		}
	}
	b.reportProgress(BuildProgress{Phase: ProgressPhaseAssembling, Done: len(slots), Total: len(slots), Records: result.Graph.Len()})
}

func (b *Builder) reportProgress(p BuildProgress) {
	if b.options.Progress != nil {
		b.options.Progress(p)
	}
}
