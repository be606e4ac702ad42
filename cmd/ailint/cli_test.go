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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLint/services/linter"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
)

// =============================================================================
// Test Harness
// =============================================================================

const projectConfig = `files:
  - "src/**/*"
ruleFiles:
  - "rules/*.md"
linterOptions:
  concurrency: 2
`

type cliResult struct {
	stdout string
	stderr string
	err    error
}

type harness struct {
	root  string
	calls atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")

	root := t.TempDir()
	files := map[string]string{
		".ailint.yaml":  projectConfig,
		"rules/todo.md": "## no-todo\n\nResolve TODO comments.\n",
		"src/a.go":      "// TODO: fix\npackage a\n",
		"src/b.go":      "package b\n",
		"lib/c.go":      "// TODO: later\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return &harness{root: root}
}

func (h *harness) evaluator(_ *config.ResolvedConfig, _ *slog.Logger) (evaluator.Evaluator, error) {
	return evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		h.calls.Add(1)
		ev := &evaluator.Evaluation{Usage: evaluator.Usage{PromptTokens: 50, CompletionTokens: 5, TotalTokens: 55}}
		if strings.Contains(req.File.Content, "TODO") {
			ev.Errors = []result.LintError{{
				File:       req.File.DisplayName,
				Rule:       req.Rule.Name,
				Code:       "// TODO: fix",
				Confidence: result.ConfidenceHigh,
			}}
		}
		return ev, nil
	}), nil
}

// run executes the CLI with the project config unless args set --config.
func (h *harness) run(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.newEvaluator = h.evaluator

	full := append([]string{"--config", filepath.Join(h.root, ".ailint.yaml")}, args...)
	cmd := newRootCmd(a)
	cmd.SetArgs(full)
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitUsage
}

// =============================================================================
// Lint Command Tests
// =============================================================================

func TestLint_TextReport(t *testing.T) {
	h := newHarness(t)

	res := h.run(t)
	assert.Equal(t, ExitLintError, exitCode(res.err), res.stderr)
	assert.Contains(t, res.stdout, "src/a.go")
	assert.Contains(t, res.stdout, "no-todo")
	assert.Contains(t, res.stdout, "1 error, 0 warnings")
	assert.NotContains(t, res.stdout, "lib/c.go")
	assert.EqualValues(t, 2, h.calls.Load())
}

func TestLint_JSONAndCache(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "--format", "json")
	require.Equal(t, ExitLintError, exitCode(res.err))

	var sum linter.Summary
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sum))
	assert.Equal(t, 2, sum.ModelCalls)
	assert.Equal(t, 110, sum.TotalTokens)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, config.SettingError, sum.Errors[0].Severity)

	res = h.run(t, "--format", "json")
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sum))
	assert.Equal(t, 0, sum.ModelCalls)
	assert.Equal(t, 2, sum.CacheHits)
	assert.Len(t, sum.Errors, 1)
	assert.EqualValues(t, 2, h.calls.Load())

	assert.DirExists(t, filepath.Join(h.root, ".ailint", "cache"))
}

func TestLint_NoCacheFlag(t *testing.T) {
	h := newHarness(t)

	h.run(t, "--no-cache", "--format", "json")
	h.run(t, "--no-cache", "--format", "json")
	assert.EqualValues(t, 4, h.calls.Load())
	assert.NoDirExists(t, filepath.Join(h.root, ".ailint", "cache"))
}

func TestLint_WarnSettingExitsZero(t *testing.T) {
	h := newHarness(t)
	cfgPath := filepath.Join(h.root, ".ailint.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(projectConfig+"rules:\n  no-todo: warn\n"), 0o644))

	res := h.run(t)
	assert.NoError(t, res.err)
	assert.Contains(t, res.stdout, "0 errors, 1 warning")
}

func TestLint_PathArguments(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "--format", "json", filepath.Join(h.root, "lib"))
	require.Equal(t, ExitLintError, exitCode(res.err))

	var sum linter.Summary
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sum))
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "lib/c.go", sum.Errors[0].File)
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestLint_MetricsOut(t *testing.T) {
	h := newHarness(t)
	t.Setenv("OTEL_METRICS_EXPORTER", "prometheus")
	out := filepath.Join(t.TempDir(), "ailint.prom")

	h.run(t, "--metrics-out", out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ailint_planner_tasks_total")
}

func TestLint_UsageErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"--format", "xml"}, "unknown format"},
		{"bad concurrency", []string{"--concurrency", "0"}, "invalid config flags"},
		{"bad temperature", []string{"--temperature", "3"}, "linterOptions.temperature"},
		{"path outside root", []string{t.TempDir()}, "outside the project root"},
		{"missing config", []string{"--config", filepath.Join(h.root, "nope.yaml")}, "config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.run(t, tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, ExitUsage, exitCode(res.err))
			assert.Contains(t, res.err.Error(), tt.want)
		})
	}
	assert.EqualValues(t, 0, h.calls.Load())
}

// =============================================================================
// Init And Cache Command Tests
// =============================================================================

func TestInit_WritesDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "proj", ".ailint.yaml")

	var stdout bytes.Buffer
	a := newApp(&stdout, &bytes.Buffer{})
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"--config", cfgPath, "init", "--yes"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/**/*"}, cfg.Files)
	assert.Equal(t, []string{".ailint/rules/*.md"}, cfg.RuleFiles)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), ".ailint", "rules", "example.md"))
	assert.Contains(t, stdout.String(), "wrote")

	cmd = newRootCmd(newApp(&bytes.Buffer{}, &bytes.Buffer{}))
	cmd.SetArgs([]string{"--config", cfgPath, "init", "--yes"})
	err = cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, config.ErrConfigExists)
}

func TestBuildInitConfig(t *testing.T) {
	ans := defaultAnswers()
	ans.files = "src/**/*.ts, lib/**/*.ts"
	ans.ruleDir = "lint/rules/"
	ans.concurrency = "4"
	ans.model = "gpt-4o"

	cfg, err := buildInitConfig(ans)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/**/*.ts", "lib/**/*.ts"}, cfg.Files)
	assert.Equal(t, []string{"lint/rules/*.md"}, cfg.RuleFiles)
	assert.Equal(t, 4, *cfg.LinterOptions.Concurrency)
	assert.Equal(t, "gpt-4o", *cfg.LinterOptions.Model)

	ans.concurrency = "zero"
	_, err = buildInitConfig(ans)
	assert.Error(t, err)
}

func TestCacheClear(t *testing.T) {
	h := newHarness(t)

	h.run(t, "--format", "json")
	require.EqualValues(t, 2, h.calls.Load())

	res := h.run(t, "cache", "clear")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "cleared")

	h.run(t, "--format", "json")
	assert.EqualValues(t, 4, h.calls.Load())
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestPathGlobs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "api"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), nil, 0o644))

	globs, err := pathGlobs(root, []string{
		root,
		filepath.Join(root, "src", "api"),
		filepath.Join(root, "src", "main.go"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*", "src/api/**/*", "src/main.go"}, globs)

	_, err = pathGlobs(root, []string{filepath.Join(root, "missing")})
	assert.Error(t, err)
}

func TestLintFlags_OnlyChangedFlags(t *testing.T) {
	lf := &lintFlags{}
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().IntVar(&lf.concurrency, "concurrency", 0, "")
	cmd.Flags().StringVar(&lf.model, "model", "", "")
	cmd.Flags().BoolVar(&lf.earlyExit, "early-exit", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--model", "gpt-4o", "--early-exit"}))

	cfg := lf.toConfig(cmd, false)
	require.NotNil(t, cfg.LinterOptions)
	assert.Nil(t, cfg.LinterOptions.Concurrency)
	assert.Equal(t, "gpt-4o", *cfg.LinterOptions.Model)
	assert.True(t, *cfg.LinterOptions.EarlyExit)
	assert.Nil(t, cfg.LinterOptions.Debug)

	assert.True(t, *lf.toConfig(cmd, true).LinterOptions.Debug)
}

func TestExitError(t *testing.T) {
	assert.Equal(t, ExitLintError, exitCode(&exitError{code: ExitLintError}))
	assert.Equal(t, ExitUsage, exitCode(errors.New("boom")))
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
}
