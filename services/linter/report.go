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
	"time"

	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/executor"
	"github.com/AleutianAI/AleutianLint/services/linter/planner"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// pair identifies a (rule, file) combination.
type pair struct {
	rule string
	file string
}

// Report is the outcome of one lint run.
type Report struct {
	// RunID uniquely identifies the run in logs, traces and usage points.
	RunID string

	// TraceID is the trace of the run, empty when tracing is not recording.
	TraceID string

	// Result is the merged result of every (rule, file) pair.
	Result result.LintResult

	// Warnings are non-fatal problems in the order they were observed.
	Warnings []error

	// Skipped counts pairs resolved without a model call, per reason.
	Skipped map[planner.SkipReason]int

	// Total is the number of (rule, file) pairs.
	Total int

	// Executed counts evaluated tasks, including failed ones.
	Executed int

	// Failed counts evaluated tasks that ended in a TaskExecutionError.
	Failed int

	// NotRun counts tasks never dispatched due to early exit or cancellation.
	NotRun int

	// Stopped is true when early exit cut the run short.
	Stopped bool

	// Duration is the wall-clock run time.
	Duration time.Duration

	severities map[pair]config.RuleSetting
	ruleLevels map[string]config.RuleSetting
}

func newReport(runID string, total int) *Report {
	return &Report{
		RunID:      runID,
		Result:     result.Empty(),
		Skipped:    make(map[planner.SkipReason]int),
		Total:      total,
		severities: make(map[pair]config.RuleSetting),
		ruleLevels: make(map[string]config.RuleSetting),
	}
}

func (r *Report) addPlan(plan *planner.Plan, cfg *config.ResolvedConfig, rs []rules.Rule) {
	for _, rule := range rs {
		r.ruleLevels[rule.Name] = cfg.RuleSetting(rule)
	}
	for _, task := range plan.Tasks {
		r.severities[pair{task.Rule.Name, task.File.DisplayName}] = task.Setting
	}
	for _, s := range plan.Skipped {
		r.Skipped[s.Reason]++
		if s.Setting != "" {
			r.severities[pair{s.Rule, s.File}] = s.Setting
		}
	}
	r.Warnings = append(r.Warnings, plan.Warnings...)
	r.Result = plan.Folded()
}

func (r *Report) addOutcome(out *executor.Outcome) {
	if out == nil {
		return
	}
	r.Result = out.Result
	r.Warnings = append(r.Warnings, out.Warnings...)
	r.Executed = out.Executed
	r.Failed = out.Failed
	r.NotRun = out.NotRun
	r.Stopped = out.Stopped
}

// Severity returns the effective setting of the rule that produced e in
// e's file. Inline overrides are taken into account.
func (r *Report) Severity(e result.LintError) config.RuleSetting {
	if s, ok := r.severities[pair{e.Rule, e.File}]; ok {
		return s
	}
	if s, ok := r.ruleLevels[e.Rule]; ok {
		return s
	}
	return config.SettingError
}

// ErrorCount returns the number of violations reported with setting error.
func (r *Report) ErrorCount() int {
	n := 0
	for _, e := range r.Result.Errors {
		if r.Severity(e) == config.SettingError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of violations reported with setting warn.
func (r *Report) WarningCount() int {
	n := 0
	for _, e := range r.Result.Errors {
		if r.Severity(e) == config.SettingWarn {
			n++
		}
	}
	return n
}

// ExitCode returns 1 when any violation was reported with setting error.
func (r *Report) ExitCode() int {
	if r.ErrorCount() > 0 {
		return 1
	}
	return 0
}

// =============================================================================
// SUMMARY
// =============================================================================

// ReportedError is a violation with its effective severity.
type ReportedError struct {
	result.LintError
	Severity config.RuleSetting `json:"severity"`
}

// Summary is the serializable form of a Report.
type Summary struct {
	RunID            string          `json:"run_id"`
	TraceID          string          `json:"trace_id,omitempty"`
	Errors           []ReportedError `json:"errors"`
	ErrorCount       int             `json:"error_count"`
	WarningCount     int             `json:"warning_count"`
	ModelCalls       int             `json:"model_calls"`
	CacheHits        int             `json:"cache_hits"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	CostUSD          float64         `json:"cost_usd"`
	Message          string          `json:"message,omitempty"`
	Skipped          map[string]int  `json:"skipped"`
	Total            int             `json:"total"`
	Executed         int             `json:"executed"`
	Failed           int             `json:"failed"`
	NotRun           int             `json:"not_run"`
	Stopped          bool            `json:"stopped"`
	Warnings         []string        `json:"warnings"`
	DurationMs       int64           `json:"duration_ms"`
}

// Summary converts the report into its serializable form.
func (r *Report) Summary() Summary {
	s := Summary{
		RunID:            r.RunID,
		TraceID:          r.TraceID,
		Errors:           make([]ReportedError, 0, len(r.Result.Errors)),
		ErrorCount:       r.ErrorCount(),
		WarningCount:     r.WarningCount(),
		ModelCalls:       r.Result.ModelCalls,
		CacheHits:        r.Result.CacheHits,
		PromptTokens:     r.Result.PromptTokens,
		CompletionTokens: r.Result.CompletionTokens,
		TotalTokens:      r.Result.TotalTokens,
		CostUSD:          r.Result.CostUSD(),
		Message:          r.Result.Message,
		Skipped:          make(map[string]int, len(r.Skipped)),
		Total:            r.Total,
		Executed:         r.Executed,
		Failed:           r.Failed,
		NotRun:           r.NotRun,
		Stopped:          r.Stopped,
		Warnings:         make([]string, 0, len(r.Warnings)),
		DurationMs:       r.Duration.Milliseconds(),
	}
	for _, e := range r.Result.Errors {
		s.Errors = append(s.Errors, ReportedError{LintError: e, Severity: r.Severity(e)})
	}
	for reason, n := range r.Skipped {
		s.Skipped[reason.String()] = n
	}
	for _, w := range r.Warnings {
		s.Warnings = append(s.Warnings, w.Error())
	}
	return s
}
