// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("ailint.executor")
	meter  = otel.Meter("ailint.executor")
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeShared  = "shared"
)

// executorMetrics holds the OTel instruments. Any instrument may be nil if
// its creation failed; every method tolerates that.
type executorMetrics struct {
	taskLatency metric.Float64Histogram
	taskTotal   metric.Int64Counter
	activeTasks metric.Int64UpDownCounter
	runLatency  metric.Float64Histogram
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		m := &executorMetrics{}
		var initErrors []string

		var err error
		m.taskLatency, err = meter.Float64Histogram("ailint_task_duration_seconds",
			metric.WithDescription("Time spent evaluating each lint task"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_latency: "+err.Error())
		}

		m.taskTotal, err = meter.Int64Counter("ailint_tasks_total",
			metric.WithDescription("Number of executed lint tasks by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_total: "+err.Error())
		}

		m.activeTasks, err = meter.Int64UpDownCounter("ailint_active_tasks",
			metric.WithDescription("Number of lint tasks currently in flight"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_tasks: "+err.Error())
		}

		m.runLatency, err = meter.Float64Histogram("ailint_run_duration_seconds",
			metric.WithDescription("Total task execution time per run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some executor metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
		e.metrics = m
	})
}

func (m *executorMetrics) taskStarted(ctx context.Context) {
	if m.activeTasks != nil {
		m.activeTasks.Add(ctx, 1)
	}
}

func (m *executorMetrics) taskFinished(ctx context.Context) {
	if m.activeTasks != nil {
		m.activeTasks.Add(ctx, -1)
	}
}

func (m *executorMetrics) recordTask(ctx context.Context, d time.Duration, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.taskLatency != nil {
		m.taskLatency.Record(ctx, d.Seconds(), attrs)
	}
	if m.taskTotal != nil {
		m.taskTotal.Add(ctx, 1, attrs)
	}
}

func (m *executorMetrics) recordRun(ctx context.Context, d time.Duration) {
	if m.runLatency != nil {
		m.runLatency.Record(ctx, d.Seconds())
	}
}
