// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config validates, merges and resolves lint configuration.
//
// A Config is partial: every field is optional so that config files, CLI
// flags and inline file directives can each supply a subset and be merged.
// Resolve fills defaults and produces a ResolvedConfig that the rest of the
// pipeline reads without nil checks.
package config

import (
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// Default option values applied by Resolve.
const (
	DefaultConcurrency = 8
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.0
	DefaultCacheDir    = ".ailint/cache"
	DefaultConfigFile  = ".ailint.yaml"
)

// =============================================================================
// RULE SETTING
// =============================================================================

// RuleSetting is the per-rule severity configured by the user.
type RuleSetting string

const (
	SettingOff   RuleSetting = "off"
	SettingWarn  RuleSetting = "warn"
	SettingError RuleSetting = "error"
)

// Valid reports whether s is one of off, warn or error.
func (s RuleSetting) Valid() bool {
	switch s {
	case SettingOff, SettingWarn, SettingError:
		return true
	default:
		return false
	}
}

// =============================================================================
// PARTIAL CONFIG
// =============================================================================

// LinterOptions are the tunable pipeline options. Nil means "not set".
type LinterOptions struct {
	NoInlineConfig *bool    `yaml:"noInlineConfig,omitempty" json:"noInlineConfig,omitempty"`
	EarlyExit      *bool    `yaml:"earlyExit,omitempty" json:"earlyExit,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	NoCache        *bool    `yaml:"noCache,omitempty" json:"noCache,omitempty"`
	CacheDir       *string  `yaml:"cacheDir,omitempty" json:"cacheDir,omitempty" validate:"omitempty,min=1"`
	Concurrency    *int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty" validate:"omitempty,gt=0"`
	Model          *string  `yaml:"model,omitempty" json:"model,omitempty" validate:"omitempty,min=1"`
	Temperature    *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// Config is a partial lint configuration as read from a file, flags or an
// inline directive.
type Config struct {
	// Files are globs selecting the files to lint.
	Files []string `yaml:"files,omitempty" json:"files,omitempty" validate:"omitempty,dive,required"`

	// Ignores are globs excluded from Files.
	Ignores []string `yaml:"ignores,omitempty" json:"ignores,omitempty" validate:"omitempty,dive,required"`

	// GuidelineFiles are globs selecting guideline documents.
	GuidelineFiles []string `yaml:"guidelineFiles,omitempty" json:"guidelineFiles,omitempty" validate:"omitempty,dive,required"`

	// RuleFiles are globs selecting markdown rule documents.
	RuleFiles []string `yaml:"ruleFiles,omitempty" json:"ruleFiles,omitempty" validate:"omitempty,dive,required"`

	// Rules maps rule names to off, warn or error.
	Rules map[string]RuleSetting `yaml:"rules,omitempty" json:"rules,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=off warn error"`

	// LinterOptions tune the pipeline.
	LinterOptions *LinterOptions `yaml:"linterOptions,omitempty" json:"linterOptions,omitempty"`

	// Disabled turns the linter off entirely. Used by inline directives.
	Disabled *bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// DefaultConfig returns the config written by "ailint init".
func DefaultConfig() *Config {
	concurrency := DefaultConcurrency
	model := DefaultModel
	temperature := DefaultTemperature
	cacheDir := DefaultCacheDir
	return &Config{
		Files:          []string{"src/**/*"},
		Ignores:        []string{"**/node_modules/**", "**/vendor/**", "**/dist/**"},
		GuidelineFiles: []string{},
		RuleFiles:      []string{".ailint/rules/*.md"},
		Rules:          map[string]RuleSetting{},
		LinterOptions: &LinterOptions{
			Concurrency: &concurrency,
			Model:       &model,
			Temperature: &temperature,
			CacheDir:    &cacheDir,
		},
	}
}

// =============================================================================
// RESOLVED CONFIG
// =============================================================================

// ResolvedOptions are LinterOptions with every default applied.
type ResolvedOptions struct {
	NoInlineConfig bool    `json:"noInlineConfig"`
	EarlyExit      bool    `json:"earlyExit"`
	Debug          bool    `json:"debug"`
	NoCache        bool    `json:"noCache"`
	CacheDir       string  `json:"cacheDir"`
	Concurrency    int     `json:"concurrency"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
}

// ResolvedConfig is a fully defaulted configuration.
//
// Thread Safety: Treat as immutable once built. Apply returns a copy.
type ResolvedConfig struct {
	Files          []string               `json:"files"`
	Ignores        []string               `json:"ignores"`
	GuidelineFiles []string               `json:"guidelineFiles"`
	RuleFiles      []string               `json:"ruleFiles"`
	Rules          map[string]RuleSetting `json:"rules"`
	Options        ResolvedOptions        `json:"linterOptions"`
	Disabled       bool                   `json:"disabled"`
}

// RuleSetting returns the effective setting for a rule.
//
// Description:
//
//	The config entry for the rule name wins. Otherwise the rule's own level
//	is used, and a rule with no level reports as error.
func (r *ResolvedConfig) RuleSetting(rule rules.Rule) RuleSetting {
	if s, ok := r.Rules[rule.Name]; ok {
		return s
	}
	switch rule.Level {
	case rules.LevelWarn:
		return SettingWarn
	default:
		return SettingError
	}
}
