// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLint/pkg/ux"
	"github.com/AleutianAI/AleutianLint/services/linter"
	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/executor"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
	"github.com/AleutianAI/AleutianLint/services/linter/usage"
	"github.com/AleutianAI/AleutianLint/services/linter/watch"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

// lintFlags are the flags of the root lint command.
type lintFlags struct {
	concurrency    int
	model          string
	temperature    float64
	noCache        bool
	cacheDir       string
	earlyExit      bool
	noInlineConfig bool
	format         string
	watch          bool
	influxURL      string
}

// toConfig builds a partial config from the flags the user actually set,
// so unset flags never override the config file.
func (lf *lintFlags) toConfig(cmd *cobra.Command, debug bool) *config.Config {
	changed := cmd.Flags().Changed
	opts := &config.LinterOptions{}

	if changed("concurrency") {
		opts.Concurrency = config.Int(lf.concurrency)
	}
	if changed("model") {
		opts.Model = config.String(lf.model)
	}
	if changed("temperature") {
		opts.Temperature = config.Float(lf.temperature)
	}
	if changed("no-cache") {
		opts.NoCache = config.Bool(lf.noCache)
	}
	if changed("cache-dir") {
		opts.CacheDir = config.String(lf.cacheDir)
	}
	if changed("early-exit") {
		opts.EarlyExit = config.Bool(lf.earlyExit)
	}
	if changed("no-inline-config") {
		opts.NoInlineConfig = config.Bool(lf.noInlineConfig)
	}
	if debug {
		opts.Debug = config.Bool(true)
	}
	return &config.Config{LinterOptions: opts}
}

// lintEnv is everything one lint pass needs.
type lintEnv struct {
	cfg    *config.ResolvedConfig
	root   string
	store  cache.Store
	ev     evaluator.Evaluator
	sink   *usage.InfluxSink
	format string
}

func (a *app) runLint(cmd *cobra.Command, args []string, lf *lintFlags) error {
	if lf.format != formatText && lf.format != formatJSON {
		return fmt.Errorf("unknown format %q: use text or json", lf.format)
	}
	ctx := cmd.Context()

	cfg, root, err := a.loadConfig(lf.toConfig(cmd, a.debug))
	if err != nil {
		return err
	}
	if len(args) > 0 {
		if cfg.Files, err = pathGlobs(root, args); err != nil {
			return err
		}
	}

	logger := a.setupLogger(cfg.Options.Debug)
	defer logger.Close()

	shutdown, err := a.setupTelemetry(ctx, telemetry.ModeLint, cfg.Options.Model)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	ev, err := a.newEvaluator(cfg, logger.Slog())
	if err != nil {
		return err
	}

	env := &lintEnv{cfg: cfg, root: root, store: store, ev: ev, format: lf.format}
	if lf.influxURL != "" {
		ucfg := usage.ConfigFromEnv()
		ucfg.URL = lf.influxURL
		if env.sink, err = usage.NewInfluxSink(ucfg, logger.Slog()); err != nil {
			return fmt.Errorf("usage export: %w", err)
		}
		defer env.sink.Close()
	}

	code, err := a.lintOnce(ctx, env)
	if err != nil {
		return err
	}
	if lf.watch {
		return a.watchLoop(ctx, env)
	}
	if code != ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// lintOnce runs one pass, renders it and exports usage and metrics.
func (a *app) lintOnce(ctx context.Context, env *lintEnv) (int, error) {
	spin := ux.NewSpinner(a.stderr, "linting")
	defer spin.Stop()

	rep, err := linter.LintPaths(ctx, env.root, env.cfg,
		linter.WithEvaluator(env.ev),
		linter.WithStore(env.store),
		linter.WithLogger(a.logger.Slog()),
		linter.WithStartFunc(func(_ context.Context, total int) error {
			if env.format == formatText {
				spin.Start(total)
			}
			return nil
		}),
		linter.WithProgressFunc(func(_ context.Context, p executor.Progress) error {
			spin.Set(p.Completed, p.Total, p.Label)
			return nil
		}),
	)
	spin.Stop()
	if rep == nil {
		return ExitUsage, err
	}

	sum := rep.Summary()
	if renderErr := a.render(env.format, sum); renderErr != nil {
		return ExitUsage, renderErr
	}

	if env.sink != nil {
		if uerr := env.sink.Record(ctx, env.cfg.Options.Model, sum); uerr != nil {
			a.logger.Warn("usage export failed", slog.String("error", uerr.Error()))
		}
	}
	a.writeMetrics()
	return rep.ExitCode(), err
}

func (a *app) render(format string, sum linter.Summary) error {
	if format == formatJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	ux.NewPrinter(a.stdout).Report(reportView(sum))
	return nil
}

func reportView(sum linter.Summary) ux.ReportView {
	v := ux.ReportView{
		Violations:  make([]ux.Violation, len(sum.Errors)),
		Errors:      sum.ErrorCount,
		Warnings:    sum.WarningCount,
		ModelCalls:  sum.ModelCalls,
		CacheHits:   sum.CacheHits,
		TotalTokens: sum.TotalTokens,
		CostUSD:     sum.CostUSD,
		Skipped:     sum.Skipped,
		Executed:    sum.Executed,
		NotRun:      sum.NotRun,
		Stopped:     sum.Stopped,
		Problems:    sum.Warnings,
		Duration:    time.Duration(sum.DurationMs) * time.Millisecond,
	}
	for i, e := range sum.Errors {
		v.Violations[i] = ux.Violation{
			File:       e.File,
			Rule:       e.Rule,
			Code:       e.Code,
			Severity:   string(e.Severity),
			Confidence: string(e.Confidence),
		}
	}
	return v
}

// watchLoop re-runs the lint pass on every debounced batch of changes
// until ctx is cancelled.
func (a *app) watchLoop(ctx context.Context, env *lintEnv) error {
	ignore := watch.DefaultIgnore()
	if dir := env.cfg.Options.CacheDir; dir != "" && !isRemote(dir) {
		if abs, err := filepath.Abs(dir); err == nil {
			ignore = append(ignore, abs)
		}
	}
	if a.logDir != "" {
		if abs, err := filepath.Abs(a.logDir); err == nil {
			ignore = append(ignore, abs)
		}
	}

	w, err := watch.New(env.root, func(ctx context.Context, changes []watch.Change) {
		a.logger.Info("re-running after changes", slog.Int("paths", len(changes)))
		ux.NewPrinter(a.stderr).Muted(fmt.Sprintf("%d path(s) changed, re-running", len(changes)))
		if _, err := a.lintOnce(ctx, env); err != nil && ctx.Err() == nil {
			a.logger.Error("lint run failed", slog.String("error", err.Error()))
		}
	}, watch.Options{Ignore: ignore, Logger: a.logger.Slog()})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	ux.NewPrinter(a.stderr).Muted("watching for changes (ctrl-c to stop)")
	return w.Run(ctx)
}

// pathGlobs turns command-line paths into file globs relative to root.
// Directories select everything below them.
func pathGlobs(root string, paths []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	globs := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil {
			return nil, fmt.Errorf("%s is not under %s", p, root)
		}
		rel = filepath.ToSlash(rel)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, fmt.Errorf("%s is outside the project root %s", p, absRoot)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", p, err)
		}
		switch {
		case info.IsDir() && rel == ".":
			globs = append(globs, "**/*")
		case info.IsDir():
			globs = append(globs, rel+"/**/*")
		default:
			globs = append(globs, rel)
		}
	}
	return globs, nil
}
