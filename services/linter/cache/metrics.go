// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for cache operations.
var (
	tracer = otel.Tracer("ailint.cache")
	meter  = otel.Meter("ailint.cache")
)

// Metrics for cache operations.
var (
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	cacheWrites     metric.Int64Counter
	cacheErrors     metric.Int64Counter
	cacheGetLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"ailint_cache_hits_total",
			metric.WithDescription("Total number of lint cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"ailint_cache_misses_total",
			metric.WithDescription("Total number of lint cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheWrites, err = meter.Int64Counter(
			"ailint_cache_writes_total",
			metric.WithDescription("Total number of lint cache writes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheErrors, err = meter.Int64Counter(
			"ailint_cache_errors_total",
			metric.WithDescription("Total number of failed lint cache operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheGetLatency, err = meter.Float64Histogram(
			"ailint_cache_get_duration_seconds",
			metric.WithDescription("Duration of lint cache get operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func backendAttr(backend string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("backend", backend))
}

func recordCacheHit(ctx context.Context, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, backendAttr(backend))
}

func recordCacheMiss(ctx context.Context, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, backendAttr(backend))
}

func recordCacheWrite(ctx context.Context, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheWrites.Add(ctx, 1, backendAttr(backend))
}

func recordCacheError(ctx context.Context, op, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("op", op),
	))
}

// recordGetLatency records the latency of a cache get operation.
func recordGetLatency(ctx context.Context, duration time.Duration, hit bool, backend string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheGetLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.Bool("hit", hit),
			attribute.String("backend", backend),
		),
	)
}

// startCacheSpan creates a span for a cache operation.
func startCacheSpan(ctx context.Context, operation, backend string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Cache."+operation,
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.backend", backend),
		),
	)
}

// setCacheSpanResult sets the result attributes on a cache span.
func setCacheSpanResult(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}

func setCacheSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
