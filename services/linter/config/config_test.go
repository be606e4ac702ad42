// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// =============================================================================
// PARSE / VALIDATE
// =============================================================================

func TestParse_YAML(t *testing.T) {
	raw := []byte(`
files: ["src/**/*.ts"]
ignores: ["**/dist/**"]
rules:
  no-console: warn
  no-any: off
linterOptions:
  concurrency: 4
  earlyExit: true
  model: gpt-4o
`)
	cfg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**/*.ts"}, cfg.Files)
	assert.Equal(t, SettingWarn, cfg.Rules["no-console"])
	assert.Equal(t, SettingOff, cfg.Rules["no-any"])
	require.NotNil(t, cfg.LinterOptions)
	assert.Equal(t, 4, *cfg.LinterOptions.Concurrency)
	assert.True(t, *cfg.LinterOptions.EarlyExit)
	assert.Nil(t, cfg.LinterOptions.Temperature)
}

func TestParse_JSON(t *testing.T) {
	raw := []byte(`{"files": ["**/*.go"], "linterOptions": {"temperature": 0.5}}`)
	cfg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*.go"}, cfg.Files)
	assert.InDelta(t, 0.5, *cfg.LinterOptions.Temperature, 1e-9)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestParse_EnumeratesEveryIssue(t *testing.T) {
	raw := []byte(`
files: ["src/**", ""]
rules:
  no-console: loud
linterOptions:
  concurrency: 0
  temperature: 3.5
  model: ""
`)
	_, err := Parse(raw)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	fields := make(map[string]string)
	for _, issue := range verr.Issues {
		fields[issue.Field] = issue.Problem
	}
	assert.Len(t, verr.Issues, 5)
	assert.Contains(t, fields, "files[1]")
	assert.Contains(t, fields, "rules[no-console]")
	assert.Contains(t, fields, "linterOptions.concurrency")
	assert.Contains(t, fields, "linterOptions.temperature")
	assert.Contains(t, fields, "linterOptions.model")
	assert.Contains(t, fields["rules[no-console]"], "off, warn, error")
}

func TestParse_TypeAndUnknownFieldIssuesCombined(t *testing.T) {
	raw := []byte(`
files: ["a"]
bogus: 1
linterOptions:
  concurrency: lots
  temperature: 9
`)
	_, err := Parse(raw)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make(map[string]bool)
	for _, issue := range verr.Issues {
		fields[issue.Field] = true
	}
	assert.True(t, fields["line 3"], "unknown key")
	assert.True(t, fields["line 5"], "type mismatch")
	assert.True(t, fields["linterOptions.temperature"], "range check")
	assert.Equal(t, "line 3", verr.Issues[0].Field)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("files: [unclosed"))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestValidate_AppliesDefaults(t *testing.T) {
	rc, err := Validate([]byte(`files: ["x"]`))
	require.NoError(t, err)

	assert.Equal(t, DefaultConcurrency, rc.Options.Concurrency)
	assert.Equal(t, DefaultModel, rc.Options.Model)
	assert.Equal(t, DefaultCacheDir, rc.Options.CacheDir)
	assert.Zero(t, rc.Options.Temperature)
	assert.False(t, rc.Options.EarlyExit)
	assert.False(t, rc.Disabled)
	assert.NotNil(t, rc.Rules)
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(&Config{Rules: map[string]RuleSetting{"a": SettingOff}}))

	err := ValidateConfig(&Config{LinterOptions: &LinterOptions{Concurrency: Int(-1)}})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "linterOptions.concurrency", verr.Issues[0].Field)
}

// =============================================================================
// MERGE / RESOLVE
// =============================================================================

func TestMerge_GlobsDedupedInOrder(t *testing.T) {
	a := &Config{Files: []string{"a", "b"}}
	b := &Config{Files: []string{"b", "c", "a"}}

	got := Merge(a, b)
	assert.Equal(t, []string{"a", "b", "c"}, got.Files)
	assert.Equal(t, []string{"a", "b"}, a.Files, "input must not change")
}

func TestMerge_RulesAndOptions(t *testing.T) {
	a := &Config{
		Rules:         map[string]RuleSetting{"x": SettingWarn, "y": SettingError},
		LinterOptions: &LinterOptions{Concurrency: Int(2), Model: String("m1")},
	}
	b := &Config{
		Rules:         map[string]RuleSetting{"y": SettingOff},
		LinterOptions: &LinterOptions{Model: String("m2")},
		Disabled:      Bool(true),
	}

	got := Merge(a, b)
	assert.Equal(t, map[string]RuleSetting{"x": SettingWarn, "y": SettingOff}, got.Rules)
	assert.Equal(t, 2, *got.LinterOptions.Concurrency)
	assert.Equal(t, "m2", *got.LinterOptions.Model)
	assert.True(t, *got.Disabled)
	assert.Equal(t, SettingError, a.Rules["y"])
}

func TestMerge_NilOptionsStayNil(t *testing.T) {
	got := Merge(&Config{Files: []string{"a"}}, &Config{})
	assert.Nil(t, got.LinterOptions)
	assert.Nil(t, got.Rules)
	assert.Nil(t, got.Disabled)

	assert.NotNil(t, Merge(nil, nil))
}

func TestResolvedConfig_Apply(t *testing.T) {
	base := Resolve(&Config{
		Files: []string{"src/**"},
		Rules: map[string]RuleSetting{"x": SettingWarn},
	})

	over := base.Apply(&Config{
		Rules:         map[string]RuleSetting{"x": SettingOff},
		LinterOptions: &LinterOptions{Temperature: Float(0.7)},
	})

	assert.Equal(t, SettingOff, over.Rules["x"])
	assert.InDelta(t, 0.7, over.Options.Temperature, 1e-9)
	assert.Equal(t, SettingWarn, base.Rules["x"])
	assert.Zero(t, base.Options.Temperature)
	assert.Same(t, base, base.Apply(nil))
}

func TestResolvedConfig_RuleSetting(t *testing.T) {
	rc := Resolve(&Config{Rules: map[string]RuleSetting{"configured": SettingOff}})

	assert.Equal(t, SettingOff, rc.RuleSetting(rules.Rule{Name: "configured", Level: rules.LevelWarn}))
	assert.Equal(t, SettingWarn, rc.RuleSetting(rules.Rule{Name: "other", Level: rules.LevelWarn}))
	assert.Equal(t, SettingError, rc.RuleSetting(rules.Rule{Name: "bare"}))
}

// =============================================================================
// LOADER
// =============================================================================

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.yaml")
	second := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(first, []byte("files: [a]\nrules: {x: warn}\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("files: [b, a]\nrules: {x: error}\n"), 0o644))

	cfg, err := LoadAll(first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.Files)
	assert.Equal(t, SettingError, cfg.Rules["x"])
}

func TestLoad_ValidationErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("linterOptions: {concurrency: -3}\n"), 0o644))

	_, err := Load(path)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, path, verr.Source)
	assert.Contains(t, err.Error(), path)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ailint.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	rc := Resolve(cfg)
	assert.Equal(t, DefaultConcurrency, rc.Options.Concurrency)
	assert.Equal(t, DefaultConfig().Files, cfg.Files)

	err = WriteDefault(path)
	assert.True(t, errors.Is(err, ErrConfigExists))
}
