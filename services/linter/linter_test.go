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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/planner"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

const styleRules = "## no-console-log\n" +
	"level: warn\n\n" +
	"Use the structured logger.\n\n" +
	"## no-any\n\n" +
	"Avoid the any type.\n"

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"rules/style.md":   styleRules,
		"docs/guide.md":    "Be kind to reviewers.\n",
		"src/a.ts":         "console.log(1)\n",
		"src/b.ts":         "let x: number = 1\n",
		"src/c.ts":         "// ailint-disable\nconsole.log(2)\n",
		"vendor/skip.ts":   "console.log(3)\n",
		"src/notes.txt.md": "ignored by glob\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// consoleEvaluator flags console.log for the no-console-log rule.
func consoleEvaluator(calls *atomic.Int32, guidelines *atomic.Value) evaluator.Evaluator {
	return evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		guidelines.Store(req.Guidelines)
		ev := &evaluator.Evaluation{
			Usage: evaluator.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110, CostMicros: 21},
		}
		if req.Rule.Name == "no-console-log" && strings.Contains(req.File.Content, "console.log") {
			ev.Errors = []result.LintError{{
				File:     req.File.DisplayName,
				Language: req.File.Language,
				Rule:     req.Rule.Name,
				Code:     "console.log(1)",
			}}
		}
		return ev, nil
	})
}

func projectConfig() *config.Config {
	return &config.Config{
		Files:          []string{"src/*.ts"},
		RuleFiles:      []string{"rules/*.md"},
		GuidelineFiles: []string{"docs/*.md"},
	}
}

func TestLintPaths_EndToEnd(t *testing.T) {
	root := writeProject(t)
	store, err := cache.Open(context.Background(), cache.Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer store.Close()

	var calls atomic.Int32
	var guidelines atomic.Value
	ev := consoleEvaluator(&calls, &guidelines)

	cfg := config.Resolve(projectConfig())
	report, err := LintPaths(context.Background(), root, cfg, WithEvaluator(ev), WithStore(store))
	require.NoError(t, err)

	assert.Len(t, report.RunID, 36)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 4, report.Executed)
	assert.Equal(t, 2, report.Skipped[planner.SkipInlineDisabled])
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, "Be kind to reviewers.", guidelines.Load())

	require.Len(t, report.Result.Errors, 1)
	assert.Equal(t, "src/a.ts", report.Result.Errors[0].File)
	assert.Equal(t, 4, report.Result.ModelCalls)
	assert.Equal(t, int64(84), report.Result.CostMicros)

	// level: warn keeps the exit code clean
	assert.Equal(t, config.SettingWarn, report.Severity(report.Result.Errors[0]))
	assert.Equal(t, 0, report.ErrorCount())
	assert.Equal(t, 1, report.WarningCount())
	assert.Equal(t, 0, report.ExitCode())

	// second run answers everything from the cache
	again, err := LintPaths(context.Background(), root, cfg, WithEvaluator(ev), WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
	assert.Zero(t, again.Executed)
	assert.Equal(t, 4, again.Skipped[planner.SkipCached])
	assert.Equal(t, 4, again.Result.CacheHits)
	assert.Zero(t, again.Result.ModelCalls)
	assert.Zero(t, again.Result.TotalTokens)
	assert.Equal(t, report.Result.Errors, again.Result.Errors)
	assert.Equal(t, 1, again.WarningCount())
}

func TestLintPaths_ErrorSettingFailsRun(t *testing.T) {
	root := writeProject(t)
	var calls atomic.Int32
	var guidelines atomic.Value

	raw := projectConfig()
	raw.Rules = map[string]config.RuleSetting{"no-console-log": config.SettingError, "no-any": config.SettingOff}

	report, err := LintPaths(context.Background(), root, config.Resolve(raw),
		WithEvaluator(consoleEvaluator(&calls, &guidelines)))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, report.Skipped[planner.SkipRuleDisabled])
	assert.Equal(t, 1, report.ErrorCount())
	assert.Equal(t, 1, report.ExitCode())

	data, err := json.Marshal(report.Summary())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"error"`)
	assert.Contains(t, string(data), `"rule_disabled":2`)
}

func TestRun_Disabled(t *testing.T) {
	cfg := config.Resolve(&config.Config{Disabled: config.Bool(true)})
	l, err := New(cfg, WithEvaluator(evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		t.Fatal("evaluator must not be called")
		return nil, nil
	})))
	require.NoError(t, err)

	report, err := l.Run(context.Background(),
		[]rules.InputFile{rules.NewInputFile("a.ts", "x")},
		[]rules.Rule{{Name: "r", Message: "m"}})
	require.NoError(t, err)
	assert.Empty(t, report.Result.Errors)
	assert.Equal(t, 0, report.ExitCode())
}

func TestRun_EarlyExitSeededByCache(t *testing.T) {
	store, err := cache.Open(context.Background(), cache.Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer store.Close()

	file := rules.NewInputFile("a.ts", "console.log(1)")
	rule := rules.Rule{Name: "r", Message: "m"}
	key, err := cache.NewKey(file, rule, cache.Params{Model: config.DefaultModel})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), key, cache.Entry{
		Errors: []result.LintError{{File: "a.ts", Rule: "r", Code: "console.log(1)"}},
	}))

	var calls atomic.Int32
	cfg := config.Resolve(&config.Config{LinterOptions: &config.LinterOptions{EarlyExit: config.Bool(true)}})
	l, err := New(cfg, WithStore(store), WithEvaluator(evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		return &evaluator.Evaluation{}, nil
	})))
	require.NoError(t, err)

	report, err := l.Run(context.Background(),
		[]rules.InputFile{file, rules.NewInputFile("b.ts", "let y = 2")},
		[]rules.Rule{rule})
	require.NoError(t, err)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, report.NotRun)
	assert.True(t, report.Stopped)
	assert.Equal(t, 1, report.ExitCode())
}

func TestRun_LogsCarryRunAndTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l, err := New(config.Resolve(nil), WithLogger(logger), WithEvaluator(evaluator.Func(
		func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
			return &evaluator.Evaluation{}, nil
		})))
	require.NoError(t, err)

	report, err := l.Run(context.Background(),
		[]rules.InputFile{rules.NewInputFile("a.ts", "let x = 1")},
		[]rules.Rule{{Name: "r", Message: "m"}})
	require.NoError(t, err)
	require.Len(t, report.TraceID, 32)
	assert.Equal(t, report.TraceID, report.Summary().TraceID)

	var sawRun, sawTask bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry["msg"] {
		case "lint run completed":
			sawRun = true
			assert.Equal(t, report.RunID, entry["run_id"])
			assert.Equal(t, report.TraceID, entry["trace_id"])
		case "lint task completed":
			sawTask = true
			assert.Equal(t, report.TraceID, entry["trace_id"])
			assert.Equal(t, "a.ts", entry["file"])
		}
	}
	assert.True(t, sawRun)
	assert.True(t, sawTask)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(config.Resolve(nil))
	assert.ErrorIs(t, err, ErrNoEvaluator)
}
