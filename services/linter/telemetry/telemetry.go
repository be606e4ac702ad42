// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names.
const (
	ExporterNone       = "none"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

// Modes name the ailint entry point that owns the providers.
const (
	ModeLint  = "lint"
	ModeServe = "serve"
)

// Config selects where ailint's traces and metrics go.
type Config struct {
	// ServiceName and ServiceVersion identify ailint in the resource.
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`

	// Environment is the deployment environment, e.g. "ci" or "development".
	Environment string `json:"environment"`

	// Mode is ModeLint for one-shot and watch runs, ModeServe for the HTTP
	// server. Lint mode exports stdout spans synchronously so nothing is
	// lost when the process exits right after the report.
	Mode string `json:"mode"`

	// Model is the default model of the run, recorded on the resource.
	Model string `json:"model"`

	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `json:"trace_exporter"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `json:"metric_exporter"`

	// OTLPEndpoint is the OTLP gRPC receiver for traces.
	OTLPEndpoint string `json:"otlp_endpoint"`
	OTLPInsecure bool   `json:"otlp_insecure"`

	// SampleRatio is the fraction of root traces recorded, in [0, 1].
	SampleRatio float64 `json:"sample_ratio"`

	// Output receives stdout-exporter data. Nil means os.Stderr, which
	// keeps stdout free for the JSON report.
	Output io.Writer `json:"-"`
}

// DefaultConfig returns defaults for a lint run.
//
// Environment variables override defaults where applicable:
//   - AILINT_ENV: environment name
//   - OTEL_TRACES_EXPORTER: trace exporter type
//   - OTEL_METRICS_EXPORTER: metric exporter type
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
//   - OTEL_TRACES_SAMPLER_ARG: sample ratio
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ailint",
		ServiceVersion: "0.1.0",
		Environment:    envOr("AILINT_ENV", "development"),
		Mode:           ModeLint,
		TraceExporter:  envOr("OTEL_TRACES_EXPORTER", ExporterNone),
		MetricExporter: envOr("OTEL_METRICS_EXPORTER", ExporterPrometheus),
		OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
		SampleRatio:    envRatio("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

// Init installs the global tracer and meter providers.
//
// Description:
//
//	Planner, executor, cache and server spans and instruments are created
//	through otel.Tracer and otel.Meter; Init decides where they are
//	exported. The W3C trace-context propagator is always installed so
//	/v1/lint requests join the caller's trace. Exporters set to "none"
//	leave the no-op providers in place.
//
// Inputs:
//
//	ctx - Context for exporter connections.
//	cfg - Telemetry configuration, usually DefaultConfig() adjusted by flags.
//
// Outputs:
//
//	shutdown - Flushes and stops the providers, metrics first. Must be called.
//	error    - ErrUnknownExporter or an exporter construction failure.
//
// Thread Safety: Call once per process.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var stops []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i](ctx))
		}
		return errors.Join(errs...)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := cfg.resource()

	if enabled(cfg.TraceExporter) {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		stops = append(stops, tp.Shutdown)
	}

	if enabled(cfg.MetricExporter) {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		stops = append(stops, mp.Shutdown)
	}

	return shutdown, nil
}

func (c Config) resource() *resource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.ServiceVersion),
		attribute.String("deployment.environment", c.Environment),
		attribute.String("ailint.mode", c.Mode),
	}
	if c.Model != "" {
		attrs = append(attrs, attribute.String("ailint.model", c.Model))
	}
	return resource.NewWithAttributes("", attrs...)
}

func (c Config) output() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

func (c Config) sampler() trace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return trace.ParentBased(trace.AlwaysSample())
	case c.SampleRatio <= 0:
		return trace.ParentBased(trace.NeverSample())
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(c.SampleRatio))
	}
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(cfg.sampler()),
	}

	switch cfg.TraceExporter {
	case ExporterOTLP:
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, trace.WithBatcher(exp))

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.output()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		if cfg.Mode == ModeServe {
			opts = append(opts, trace.WithBatcher(exp))
		} else {
			opts = append(opts, trace.WithSyncer(exp))
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	return trace.NewTracerProvider(opts...), nil
}

// promState holds the Prometheus bridge. The exporter registers a collector
// with the default registry, which can only happen once per process, so
// watch-mode re-runs and tests share it.
var promState struct {
	once     sync.Once
	exporter *promexporter.Exporter
	err      error

	mu      sync.RWMutex
	handler http.Handler
}

// MetricsHandler returns the /metrics handler, or nil when the Prometheus
// exporter was not initialised.
//
// Thread Safety: Safe for concurrent use.
func MetricsHandler() http.Handler {
	promState.mu.RLock()
	defer promState.mu.RUnlock()
	return promState.handler
}

func newMeterProvider(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	var reader metric.Reader

	switch cfg.MetricExporter {
	case ExporterPrometheus:
		promState.once.Do(func() {
			promState.exporter, promState.err = promexporter.New()
		})
		if promState.err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", promState.err)
		}
		promState.mu.Lock()
		promState.handler = promhttp.Handler()
		promState.mu.Unlock()
		reader = promState.exporter

	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.output()), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		reader = metric.NewPeriodicReader(exp)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

// WriteTextfile writes the default Prometheus registry (planner counters
// and, with the Prometheus exporter, every otel instrument) to path in text
// exposition format.
//
// Outputs:
//
//	error - ErrNoPath for an empty path, or a gather/write failure.
func WriteTextfile(path string) error {
	if path == "" {
		return ErrNoPath
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != ExporterNone
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envRatio(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}
