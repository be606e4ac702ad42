// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package linter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/executor"
	"github.com/AleutianAI/AleutianLint/services/linter/inline"
	"github.com/AleutianAI/AleutianLint/services/linter/planner"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
)

var tracer = otel.Tracer("ailint.linter")

var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNoEvaluator indicates no evaluator was configured.
	ErrNoEvaluator = errors.New("no evaluator configured")
)

// Option configures a Linter.
type Option func(*Linter)

// WithEvaluator sets the model collaborator. Required.
func WithEvaluator(ev evaluator.Evaluator) Option {
	return func(l *Linter) {
		l.evaluator = ev
	}
}

// WithStore sets the cache store. The Linter does not close it.
func WithStore(store cache.Store) Option {
	return func(l *Linter) {
		l.store = store
	}
}

// WithInlineParser replaces the default inline directive parser.
func WithInlineParser(p planner.InlineParser) Option {
	return func(l *Linter) {
		l.inline = p
	}
}

// WithGuidelines sets the guideline text sent with every evaluation.
func WithGuidelines(text string) Option {
	return func(l *Linter) {
		l.guidelines = text
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithStartFunc sets the callback invoked once before evaluation starts.
func WithStartFunc(fn executor.StartFunc) Option {
	return func(l *Linter) {
		l.onStart = fn
	}
}

// WithProgressFunc sets the callback invoked after each evaluated task.
func WithProgressFunc(fn executor.ProgressFunc) Option {
	return func(l *Linter) {
		l.onProgress = fn
	}
}

// Linter wires the planner and executor for lint runs.
type Linter struct {
	cfg        *config.ResolvedConfig
	evaluator  evaluator.Evaluator
	store      cache.Store
	inline     planner.InlineParser
	guidelines string
	logger     *slog.Logger
	onStart    executor.StartFunc
	onProgress executor.ProgressFunc

	planner  *planner.Planner
	executor *executor.Executor
}

// New creates a Linter.
//
// Inputs:
//
//	cfg  - Resolved configuration. Must not be nil.
//	opts - Options. WithEvaluator is required.
//
// Outputs:
//
//	*Linter - The linter.
//	error   - ErrInvalidInput for a nil config, ErrNoEvaluator without an
//	          evaluator.
//
// Limitations:
//
//	When cfg.Options.NoCache is set the store is replaced by a disabled one.
func New(cfg *config.ResolvedConfig, opts ...Option) (*Linter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", ErrInvalidInput)
	}

	l := &Linter{
		cfg:    cfg,
		inline: inline.NewParser(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	if l.store == nil || cfg.Options.NoCache {
		l.store = cache.Disabled()
	}

	var err error
	l.planner, err = planner.New(cfg, l.store,
		planner.WithInlineParser(l.inline),
		planner.WithGuidelines(l.guidelines),
		planner.WithLogger(l.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating planner: %w", err)
	}

	l.executor, err = executor.New(l.evaluator,
		executor.WithConcurrency(cfg.Options.Concurrency),
		executor.WithEarlyExit(cfg.Options.EarlyExit),
		executor.WithStore(l.store),
		executor.WithStartFunc(l.onStart),
		executor.WithProgressFunc(l.onProgress),
		executor.WithLogger(l.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executor: %w", err)
	}

	return l, nil
}

// Config returns the linter's resolved configuration.
func (l *Linter) Config() *config.ResolvedConfig {
	return l.cfg
}

// Run lints files against rules.
//
// Description:
//
//	Plans every (rule, file) pair, seeds the executor with the folded
//	results of skipped pairs, executes the remaining tasks and returns the
//	merged result with every warning. A configuration with Disabled set
//	returns an empty report without planning.
//
// Inputs:
//
//	ctx   - Context for cancellation. Must not be nil.
//	files - Files to lint.
//	rs    - Rules to check.
//
// Outputs:
//
//	*Report - The run report. Non-nil on cancellation with partial results.
//	error   - ctx.Err() on cancellation, or a planning failure.
//
// Thread Safety: Safe for concurrent use.
func (l *Linter) Run(ctx context.Context, files []rules.InputFile, rs []rules.Rule) (*Report, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	start := time.Now()
	report := newReport(uuid.NewString(), len(files)*len(rs))

	if l.cfg.Disabled {
		l.logger.Info("linter disabled by configuration", slog.String("run_id", report.RunID))
		return report, nil
	}

	ctx, span := tracer.Start(ctx, "linter.Run",
		trace.WithAttributes(
			attribute.String("lint.run_id", report.RunID),
			attribute.Int("lint.files", len(files)),
			attribute.Int("lint.rules", len(rs)),
			attribute.String("lint.model", l.cfg.Options.Model),
		),
	)
	defer span.End()

	report.TraceID = telemetry.TraceID(ctx)
	logger := telemetry.LoggerWithRun(ctx, l.logger, report.RunID)

	logger.Debug("lint run started",
		slog.Int("files", len(files)),
		slog.Int("rules", len(rs)),
	)

	plan, err := l.planner.Plan(ctx, files, rs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("planning lint tasks: %w", err)
	}
	report.addPlan(plan, l.cfg, rs)

	out, runErr := l.executor.Run(ctx, plan.Tasks, plan.Folded())
	report.addOutcome(out)
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("lint.errors", len(report.Result.Errors)),
		attribute.Int("lint.model_calls", report.Result.ModelCalls),
		attribute.Int("lint.cache_hits", report.Result.CacheHits),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return report, runErr
	}
	span.SetStatus(codes.Ok, "")

	logger.Info("lint run completed",
		slog.Int("errors", len(report.Result.Errors)),
		slog.Int("model_calls", report.Result.ModelCalls),
		slog.Int("cache_hits", report.Result.CacheHits),
		slog.Int("warnings", len(report.Warnings)),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// LintPaths discovers rules, guidelines and files under root from the
// configuration globs and runs the linter over them.
//
// Inputs:
//
//	ctx  - Context for cancellation.
//	root - Directory the configuration globs are relative to.
//	cfg  - Resolved configuration.
//	opts - Linter options. WithEvaluator is required.
//
// Outputs:
//
//	*Report - The run report.
//	error   - Discovery, rule parsing or run failure.
func LintPaths(ctx context.Context, root string, cfg *config.ResolvedConfig, opts ...Option) (*Report, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", ErrInvalidInput)
	}

	rs, err := rules.LoadRuleFiles(root, cfg.RuleFiles)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	guidelines, err := rules.LoadGuidelines(root, cfg.GuidelineFiles)
	if err != nil {
		return nil, fmt.Errorf("loading guidelines: %w", err)
	}

	files, err := rules.DiscoverFiles(root, cfg.Files, cfg.Ignores)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	l, err := New(cfg, append([]Option{WithGuidelines(guidelines)}, opts...)...)
	if err != nil {
		return nil, err
	}

	if len(rs) == 0 {
		l.logger.Warn("no rules found", slog.Any("rule_files", cfg.RuleFiles))
	}
	return l.Run(ctx, files, rs)
}
