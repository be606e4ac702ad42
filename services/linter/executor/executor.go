// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs planned lint tasks under bounded concurrency.
//
// Tasks are dispatched in submission order to at most Concurrency workers.
// Each completed task sends an immutable fragment to a single owner
// goroutine which folds it into the run aggregate and reports progress.
// When early exit is enabled, the first fragment with errors stops further
// dispatch; tasks already in flight run to completion and are counted.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/planner"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
)

// DefaultConcurrency is used when no positive concurrency is configured.
const DefaultConcurrency = 8

// =============================================================================
// CALLBACKS
// =============================================================================

// Progress describes run progress after a task completes.
type Progress struct {
	Completed int
	Total     int
	Fraction  float64

	// Label identifies the task that just completed ("rule file").
	Label string
}

// StartFunc is called once before the first task is dispatched.
type StartFunc func(ctx context.Context, total int) error

// ProgressFunc is called after each task completes, from a single
// goroutine. Calls never overlap.
type ProgressFunc func(ctx context.Context, p Progress) error

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets the worker pool size. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithEarlyExit stops dispatch after the first fragment with errors.
func WithEarlyExit(enabled bool) Option {
	return func(e *Executor) {
		e.earlyExit = enabled
	}
}

// WithStore sets the cache store successful evaluations are written to.
func WithStore(store cache.Store) Option {
	return func(e *Executor) {
		if store != nil {
			e.store = store
		}
	}
}

// WithStartFunc sets the start callback.
func WithStartFunc(fn StartFunc) Option {
	return func(e *Executor) {
		e.onStart = fn
	}
}

// WithProgressFunc sets the progress callback.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(e *Executor) {
		e.onProgress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs lint tasks with bounded parallelism and observability.
//
// Thread Safety:
//
//	Executor is safe for concurrent use. Concurrent Runs share the
//	in-flight deduplication group, so identical tasks across runs are
//	evaluated once.
type Executor struct {
	evaluator   evaluator.Evaluator
	store       cache.Store
	concurrency int
	earlyExit   bool
	onStart     StartFunc
	onProgress  ProgressFunc
	logger      *slog.Logger

	flight singleflight.Group

	metricsOnce sync.Once
	metrics     *executorMetrics
}

// New creates an Executor.
//
// Inputs:
//
//	ev   - The evaluation collaborator. Must not be nil.
//	opts - Optional settings.
//
// Outputs:
//
//	*Executor - The configured executor.
//	error     - ErrInvalidInput if ev is nil.
func New(ev evaluator.Evaluator, opts ...Option) (*Executor, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: evaluator must not be nil", ErrInvalidInput)
	}

	e := &Executor{
		evaluator:   ev,
		store:       cache.Disabled(),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Outcome is the result of executing a task list.
type Outcome struct {
	// Result is the seed merged with every completed task's fragment.
	Result result.LintResult

	// Warnings are task failures, cache write failures and callback errors.
	Warnings []error

	// Executed counts tasks that were dispatched and completed.
	Executed int

	// Failed counts executed tasks that produced a TaskExecutionError.
	Failed int

	// NotRun counts tasks never dispatched due to early exit or cancellation.
	NotRun int

	// Stopped is true when early exit prevented dispatch.
	Stopped bool
}

// completion is what a worker hands to the owner goroutine.
type completion struct {
	fragment result.LintResult
	warnings []error
	label    string
	failed   bool
}

// Run executes tasks and folds their fragments into seed.
//
// Description:
//
//	The early-exit flag starts set when early exit is enabled and seed
//	already has errors, in which case no task runs. Every dispatched task
//	checks the flag and the context first; a task whose fragment has errors
//	sets the flag before releasing its worker slot. Tasks with an identical
//	cache key that overlap in time share one evaluation; followers count a
//	cache hit with no tokens and their errors are attributed to their own
//	file.
//
// Inputs:
//
//	ctx   - Context for cancellation. Must not be nil.
//	tasks - Executable tasks in dispatch order.
//	seed  - Starting aggregate, usually the folded skipped results.
//
// Outputs:
//
//	*Outcome - Always non-nil when ctx is non-nil, also on cancellation.
//	error    - ctx.Err() if the context was cancelled, otherwise nil.
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Run(ctx context.Context, tasks []planner.Task, seed result.LintResult) (*Outcome, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	e.initMetrics()

	ctx, span := tracer.Start(ctx, "executor.Run",
		trace.WithAttributes(
			attribute.Int("executor.tasks", len(tasks)),
			attribute.Int("executor.concurrency", e.concurrency),
			attribute.Bool("executor.early_exit", e.earlyExit),
		),
	)
	defer span.End()

	start := time.Now()
	out := &Outcome{Result: seed}

	var stop atomic.Bool
	stop.Store(e.earlyExit && seed.HasErrors())

	if e.onStart != nil {
		if err := e.onStart(ctx, len(tasks)); err != nil {
			out.Warnings = append(out.Warnings, fmt.Errorf("start callback: %w", err))
		}
	}

	completions := make(chan completion)
	owned := make(chan struct{})
	go func() {
		defer close(owned)
		for c := range completions {
			out.Result = result.Merge(out.Result, c.fragment)
			out.Warnings = append(out.Warnings, c.warnings...)
			out.Executed++
			if c.failed {
				out.Failed++
			}
			e.reportProgress(ctx, out, c.label, len(tasks))
		}
	}()

	var notRun atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)

	for i, task := range tasks {
		if stop.Load() || ctx.Err() != nil {
			notRun.Add(int64(len(tasks) - i))
			break
		}
		g.Go(func() error {
			if stop.Load() || ctx.Err() != nil {
				notRun.Add(1)
				return nil
			}
			c := e.runTask(ctx, task)
			if e.earlyExit && c.fragment.HasErrors() {
				stop.Store(true)
			}
			completions <- c
			return nil
		})
	}

	_ = g.Wait()
	close(completions)
	<-owned

	out.NotRun = int(notRun.Load())
	out.Stopped = e.earlyExit && stop.Load()

	duration := time.Since(start)
	e.metrics.recordRun(ctx, duration)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context canceled")
		e.logger.Warn("lint run cancelled",
			slog.Int("executed", out.Executed),
			slog.Int("not_run", out.NotRun),
		)
		return out, err
	}

	span.SetAttributes(
		attribute.Int("executor.executed", out.Executed),
		attribute.Int("executor.failed", out.Failed),
		attribute.Int("executor.not_run", out.NotRun),
	)
	span.SetStatus(codes.Ok, "")

	e.logger.Debug("lint tasks executed",
		slog.Int("executed", out.Executed),
		slog.Int("failed", out.Failed),
		slog.Int("not_run", out.NotRun),
		slog.Bool("stopped", out.Stopped),
		slog.Duration("duration", duration),
	)

	return out, nil
}

func (e *Executor) reportProgress(ctx context.Context, out *Outcome, label string, total int) {
	if e.onProgress == nil {
		return
	}
	p := Progress{
		Completed: out.Executed,
		Total:     total,
		Label:     label,
	}
	if total > 0 {
		p.Fraction = float64(out.Executed) / float64(total)
	}
	if err := e.onProgress(ctx, p); err != nil {
		out.Warnings = append(out.Warnings, fmt.Errorf("progress callback: %w", err))
	}
}

// runTask evaluates one task and builds its completion.
func (e *Executor) runTask(ctx context.Context, task planner.Task) completion {
	ctx, span := tracer.Start(ctx, "executor.Task",
		trace.WithAttributes(
			attribute.String("lint.rule", task.Rule.Name),
			attribute.String("lint.file", task.File.DisplayName),
			attribute.String("lint.key", task.Key.Short()),
			attribute.String("lint.model", task.Options.Model),
		),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, e.logger).With(
		slog.String("rule", task.Rule.Name),
		slog.String("file", task.File.DisplayName),
	)

	e.metrics.taskStarted(ctx)
	defer e.metrics.taskFinished(ctx)

	c := completion{label: task.Label(), fragment: result.Empty()}
	start := time.Now()

	var leader bool
	v, err, _ := e.flight.Do(task.Key.String(), func() (any, error) {
		leader = true
		return e.evaluate(ctx, task)
	})
	duration := time.Since(start)

	if err != nil {
		terr := &TaskExecutionError{Rule: task.Rule.Name, File: task.File.DisplayName, Err: err}
		c.failed = true
		c.warnings = append(c.warnings, terr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.recordTask(ctx, duration, outcomeFailure)
		logger.Warn("lint task failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return c
	}

	ev := v.(*evaluator.Evaluation)

	if !leader {
		c.fragment = result.FromEntry(ev.Errors, ev.Message).WithFile(task.File.DisplayName)
		span.SetAttributes(attribute.Bool("lint.shared", true))
		span.SetStatus(codes.Ok, "")
		e.metrics.recordTask(ctx, duration, outcomeShared)
		return c
	}

	c.fragment = ev.Result().WithFile(task.File.DisplayName)
	if task.Options.NoCache {
		span.SetAttributes(attribute.Bool("lint.cache_bypassed", true))
	} else if err := e.store.Set(ctx, task.Key, cache.EntryFromResult(c.fragment)); err != nil {
		c.warnings = append(c.warnings, err)
		logger.Warn("cache write failed",
			slog.String("key", task.Key.Short()),
			slog.String("error", err.Error()),
		)
	}

	span.SetAttributes(
		attribute.Int("lint.errors", len(c.fragment.Errors)),
		attribute.Int("lint.tokens", c.fragment.TotalTokens),
		attribute.Bool("lint.provider_cached", ev.ProviderCached),
	)
	span.SetStatus(codes.Ok, "")
	e.metrics.recordTask(ctx, duration, outcomeSuccess)

	logger.Debug("lint task completed",
		slog.Int("errors", len(c.fragment.Errors)),
		slog.Duration("duration", duration),
	)
	return c
}

// evaluate calls the evaluator, converting a panic into an error so that
// singleflight followers observe a failure instead of re-panicking.
func (e *Executor) evaluate(ctx context.Context, task planner.Task) (ev *evaluator.Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	ev, err = e.evaluator.Evaluate(ctx, evaluator.Request{
		File:        task.File,
		Rule:        task.Rule,
		Model:       task.Params.Model,
		Temperature: task.Params.Temperature,
		Guidelines:  task.Params.Guidelines,
	})
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrNilEvaluation
	}
	return ev, nil
}
