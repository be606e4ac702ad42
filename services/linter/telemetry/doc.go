// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up OpenTelemetry for ailint.
//
// Packages instrument themselves with otel.Tracer and otel.Meter; this
// package only decides where the data goes. Traces go to OTLP, stdout or
// nowhere. Metrics go to the Prometheus default registry (alongside the
// promauto planner counters), to stdout, or nowhere.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// A CLI run has no scrape endpoint, so WriteTextfile dumps the default
// registry in text exposition format for the node_exporter textfile
// collector.
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_SAMPLER_ARG: root sample ratio in [0, 1] (default: 1)
//   - AILINT_ENV: environment name (default: development)
package telemetry
