// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package usage exports per-run token and cost figures to InfluxDB.
//
// One point is written per lint run to the "ailint_run" measurement:
//
//	ailint_run,run_id=<uuid>,model=<model> tokens=…,prompt_tokens=…,
//	  completion_tokens=…,cost_usd=…,model_calls=…,cache_hits=…,
//	  errors=…,warnings=…,executed=…,failed=…,duration_ms=…
//
// Configuration comes from the environment (INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG, INFLUXDB_BUCKET) unless overridden by the caller.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianLint/services/linter"
)

// Measurement is the InfluxDB measurement written for each run.
const Measurement = "ailint_run"

var (
	// ErrNoURL is returned when no InfluxDB URL is configured.
	ErrNoURL = errors.New("influxdb url is required")

	// ErrNoToken is returned when no InfluxDB token is configured.
	ErrNoToken = errors.New("influxdb token is required")
)

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// ConfigFromEnv reads INFLUXDB_* variables, defaulting org to "aleutian"
// and bucket to "ailint".
func ConfigFromEnv() Config {
	return Config{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    envOr("INFLUXDB_ORG", "aleutian"),
		Bucket: envOr("INFLUXDB_BUCKET", "ailint"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// pointWriter is the subset of api.WriteAPIBlocking the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes run summaries to InfluxDB.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewInfluxSink connects a blocking write API for cfg.Org/cfg.Bucket.
// No request is made until the first Record.
func NewInfluxSink(cfg Config, logger *slog.Logger) (*InfluxSink, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Record writes one point for the run.
func (s *InfluxSink) Record(ctx context.Context, model string, sum linter.Summary) error {
	p := Point(model, sum, s.now())
	if err := s.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("writing usage point: %w", err)
	}
	s.logger.Debug("usage recorded",
		slog.String("run_id", sum.RunID),
		slog.Int("tokens", sum.TotalTokens),
	)
	return nil
}

// Close releases the client's resources.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Point builds the InfluxDB point for a run summary.
func Point(model string, sum linter.Summary, at time.Time) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("run_id", sum.RunID).
		AddTag("model", model).
		AddField("tokens", sum.TotalTokens).
		AddField("prompt_tokens", sum.PromptTokens).
		AddField("completion_tokens", sum.CompletionTokens).
		AddField("cost_usd", sum.CostUSD).
		AddField("model_calls", sum.ModelCalls).
		AddField("cache_hits", sum.CacheHits).
		AddField("errors", sum.ErrorCount).
		AddField("warnings", sum.WarningCount).
		AddField("executed", sum.Executed).
		AddField("failed", sum.Failed).
		AddField("duration_ms", sum.DurationMs).
		SetTime(at)
}
