// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package categorize

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("seamlydeps.categorize")

// Prometheus metrics for categorization runs.
var (
	objectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seamlydeps_categorize_objects_total",
		Help: "Objects stored by category",
	}, []string{"category"})

	warningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seamlydeps_categorize_warnings_total",
		Help: "Categorization warnings by kind",
	}, []string{"kind"})

	categorizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seamlydeps_categorize_duration_seconds",
		Help:    "Time spent walking a document",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

func startCategorizeSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "categorize.Categorize")
}

func setCategorizeSpanResult(span trace.Span, objects int, success bool) {
	span.SetAttributes(
		attribute.Int("categorize.objects", objects),
		attribute.Bool("categorize.success", success),
	)
}

func recordCategorizeMetrics(_ context.Context, res *Result) {
	for c, n := range res.Objects.Counts() {
		objectsTotal.WithLabelValues(string(c)).Add(float64(n))
	}
	for _, w := range res.Warnings {
		warningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}
	categorizeDuration.Observe(res.Duration.Seconds())
}
