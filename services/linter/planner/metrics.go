// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Task Planning
// =============================================================================

var (
	// plannedTasks counts (rule, file) pairs by classification.
	// Labels: outcome (executable, cached, inline_disabled, rule_disabled, failed_precheck)
	plannedTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ailint",
		Subsystem: "planner",
		Name:      "tasks_total",
		Help:      "Total (rule, file) pairs planned by outcome",
	}, []string{"outcome"})

	// planWarnings counts non-fatal planning problems.
	// Labels: kind (precheck, cache)
	planWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ailint",
		Subsystem: "planner",
		Name:      "warnings_total",
		Help:      "Total non-fatal planning problems",
	}, []string{"kind"})
)

func recordOutcome(outcome string) {
	plannedTasks.WithLabelValues(outcome).Inc()
}

func recordWarning(kind string) {
	planWarnings.WithLabelValues(kind).Inc()
}
