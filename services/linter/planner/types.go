// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// =============================================================================
// SKIP REASON
// =============================================================================

// SkipReason is why a (rule, file) pair needs no model call.
type SkipReason int

const (
	// SkipCached means a prior evaluation was found in the cache.
	SkipCached SkipReason = iota + 1

	// SkipInlineDisabled means the file disables the linter inline.
	SkipInlineDisabled

	// SkipRuleDisabled means the effective setting for the rule is off.
	SkipRuleDisabled

	// SkipFailedPrecheck means the file is blank or its directives are bad.
	SkipFailedPrecheck
)

var skipReasonNames = map[SkipReason]string{
	SkipCached:         "cached",
	SkipInlineDisabled: "inline_disabled",
	SkipRuleDisabled:   "rule_disabled",
	SkipFailedPrecheck: "failed_precheck",
}

// String returns the reason's snake_case name.
func (r SkipReason) String() string {
	if name, ok := skipReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("SkipReason(%d)", int(r))
}

// Valid reports whether r is a known reason.
func (r SkipReason) Valid() bool {
	_, ok := skipReasonNames[r]
	return ok
}

// SkipReasons returns every reason in declaration order.
func SkipReasons() []SkipReason {
	return []SkipReason{SkipCached, SkipInlineDisabled, SkipRuleDisabled, SkipFailedPrecheck}
}

// =============================================================================
// TASK AND PLAN
// =============================================================================

// Task is an executable (file, rule) evaluation.
type Task struct {
	File rules.InputFile
	Rule rules.Rule

	// Options are the effective options after inline overrides.
	Options config.ResolvedOptions

	// Setting is the effective severity (warn or error).
	Setting config.RuleSetting

	// Params are the model parameters the key was computed from.
	Params cache.Params

	// Key is the cache key the evaluation is stored under.
	Key cache.Key
}

// Label is a short human-readable task description for progress output.
func (t Task) Label() string {
	return t.Rule.Name + " " + t.File.DisplayName
}

// Skipped is a (rule, file) pair resolved without a model call.
type Skipped struct {
	Reason SkipReason
	Rule   string
	File   string

	// Setting is the effective severity, empty when it was never resolved.
	Setting config.RuleSetting

	// Result is the pair's contribution to the run.
	Result result.LintResult
}

// Plan is the classification of every (rule, file) pair.
type Plan struct {
	// Tasks are executable in submission order.
	Tasks []Task

	// Skipped pairs with their contributions.
	Skipped []Skipped

	// Warnings are non-fatal problems (bad directives, cache failures).
	Warnings []error

	// Total is the number of pairs considered.
	Total int
}

// Folded merges every skipped pair's result in plan order.
func (p *Plan) Folded() result.LintResult {
	acc := result.Empty()
	for _, s := range p.Skipped {
		acc = result.Merge(acc, s.Result)
	}
	return acc
}

// Counts returns the number of skipped pairs per reason.
func (p *Plan) Counts() map[SkipReason]int {
	counts := make(map[SkipReason]int, len(skipReasonNames))
	for _, s := range p.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidInput indicates invalid input parameters.
var ErrInvalidInput = errors.New("invalid input")

// ErrInlineParse indicates the inline directive parser failed unexpectedly.
var ErrInlineParse = errors.New("inline directive parser failed")

// PrecheckError reports a (rule, file) pair that could not be planned.
type PrecheckError struct {
	Rule string
	File string
	Err  error
}

// Error implements the error interface.
func (e *PrecheckError) Error() string {
	return fmt.Sprintf("precheck %s on %s: %v", e.Rule, e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *PrecheckError) Unwrap() error {
	return e.Err
}
