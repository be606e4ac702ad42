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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianLint/pkg/logging"
	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
)

// app holds what every command shares: output streams, global flag values
// and the collaborators built from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags.
	configPath    string
	debug         bool
	quiet         bool
	logDir        string
	traceExporter string
	metricsOut    string

	// newEvaluator builds the model collaborator. Replaced in tests.
	newEvaluator func(cfg *config.ResolvedConfig, logger *slog.Logger) (evaluator.Evaluator, error)

	logger *logging.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:       stdout,
		stderr:       stderr,
		configPath:   config.DefaultConfigFile,
		newEvaluator: openAIEvaluator,
	}
}

func openAIEvaluator(_ *config.ResolvedConfig, logger *slog.Logger) (evaluator.Evaluator, error) {
	cfg := evaluator.OpenAIConfigFromEnv()
	cfg.Logger = logger
	ev, err := evaluator.NewOpenAI(cfg)
	if err != nil {
		if errors.Is(err, evaluator.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", err)
		}
		return nil, err
	}
	return ev, nil
}

// setupLogger creates the process logger. Debug comes from --debug or the
// resolved config.
func (a *app) setupLogger(debug bool) *logging.Logger {
	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  a.logDir,
		Service: "ailint",
		Quiet:   a.quiet,
		Output:  a.stderr,
	})
	a.logger.SetDefault()
	return a.logger
}

// setupTelemetry initialises OpenTelemetry for one command.
func (a *app) setupTelemetry(ctx context.Context, mode, model string) (func(context.Context) error, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Mode = mode
	cfg.Model = model
	cfg.Output = a.stderr
	if a.traceExporter != "" {
		cfg.TraceExporter = a.traceExporter
	}
	return telemetry.Init(ctx, cfg)
}

// loadConfig reads the config file (when present), merges flag overrides
// last and resolves defaults.
//
// Outputs:
//
//	*config.ResolvedConfig - The resolved config. Relative cache dirs are
//	                         anchored at the config file's directory.
//	string                 - The project root: the config file's directory.
//	error                  - *config.ValidationError or a read failure.
func (a *app) loadConfig(flags *config.Config) (*config.ResolvedConfig, string, error) {
	path := a.configPath
	root := filepath.Dir(path)

	var fileCfg *config.Config
	switch _, err := os.Stat(path); {
	case err == nil:
		fileCfg, err = config.Load(path)
		if err != nil {
			return nil, "", err
		}
	case errors.Is(err, os.ErrNotExist) && path == config.DefaultConfigFile:
		fileCfg = &config.Config{}
	default:
		return nil, "", fmt.Errorf("config file: %w", err)
	}

	if err := config.ValidateConfig(flags); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			verr.Source = "flags"
		}
		return nil, "", err
	}

	resolved := config.Resolve(config.Merge(fileCfg, flags))
	if dir := resolved.Options.CacheDir; dir != "" && !filepath.IsAbs(dir) && !isRemote(dir) {
		resolved.Options.CacheDir = filepath.Join(root, dir)
	}
	return resolved, root, nil
}

// openStore opens the cache backing selected by cfg.
func (a *app) openStore(ctx context.Context, cfg *config.ResolvedConfig) (cache.Store, error) {
	return cache.Open(ctx, cache.Options{
		Dir:             cfg.Options.CacheDir,
		Disabled:        cfg.Options.NoCache,
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}, a.logger.Slog())
}

// writeMetrics writes the Prometheus textfile when --metrics-out is set.
func (a *app) writeMetrics() {
	if a.metricsOut == "" {
		return
	}
	if err := telemetry.WriteTextfile(a.metricsOut); err != nil {
		a.logger.Warn("writing metrics failed", slog.String("path", a.metricsOut), slog.String("error", err.Error()))
	}
}

func isRemote(dir string) bool {
	return strings.HasPrefix(dir, "gs://")
}
