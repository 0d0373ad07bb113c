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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("seamlydeps.graph")
	meter  = otel.Meter("seamlydeps.graph")
)

// Metrics for graph building and queries.
var (
	buildLatency        metric.Float64Histogram
	buildTotal          metric.Int64Counter
	recordsCreated      metric.Int64Histogram
	dependenciesCreated metric.Int64Histogram
	unresolvedTotal     metric.Int64Counter
	queryLatency        metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"deps_graph_build_duration_seconds",
			metric.WithDescription("Duration of dependency graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"deps_graph_build_total",
			metric.WithDescription("Total number of dependency graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		recordsCreated, err = meter.Int64Histogram(
			"deps_graph_records_created",
			metric.WithDescription("Number of records created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		dependenciesCreated, err = meter.Int64Histogram(
			"deps_graph_dependencies_created",
			metric.WithDescription("Number of dependencies created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unresolvedTotal, err = meter.Int64Counter(
			"deps_graph_unresolved_total",
			metric.WithDescription("Total number of unresolved references"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryLatency, err = meter.Float64Histogram(
			"deps_graph_query_duration_seconds",
			metric.WithDescription("Duration of graph queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		recordsCreated.Record(ctx, int64(stats.RecordsCreated))
		dependenciesCreated.Record(ctx, int64(stats.DependenciesCreated))
		unresolvedTotal.Add(ctx, int64(stats.UnresolvedReferences))
	}
}

// recordQueryMetrics records metrics for a query operation.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	queryLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("query_type", queryType)),
	)
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, objectCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(
			attribute.Int("graph.object_count", objectCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, recordCount, depCount int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("graph.record_count", recordCount),
		attribute.Int("graph.dependency_count", depCount),
		attribute.Bool("graph.incomplete", incomplete),
	)
}

// startQuerySpan creates a span for a query operation.
func startQuerySpan(ctx context.Context, queryType, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph."+queryType,
		trace.WithAttributes(
			attribute.String("graph.query_type", queryType),
			attribute.String("graph.object_id", id),
		),
	)
}
