// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evaluator checks one file against one rule using a language model.
//
// The Evaluator interface is the only thing the executor knows about model
// calls. OpenAI implements it for OpenAI-compatible chat completion APIs and
// Func adapts a plain function for tests and embedding.
package evaluator

import (
	"context"

	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// Request is one (file, rule) evaluation.
type Request struct {
	File        rules.InputFile
	Rule        rules.Rule
	Model       string
	Temperature float64
	Guidelines  string
}

// Usage is the provider-reported token usage and the computed cost.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// CachedTokens are prompt tokens the provider served from its own cache.
	CachedTokens int

	// CostMicros is the cost in millionths of a US dollar.
	CostMicros int64
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		CachedTokens:     u.CachedTokens + o.CachedTokens,
		CostMicros:       u.CostMicros + o.CostMicros,
	}
}

// Evaluation is the outcome of one Request.
type Evaluation struct {
	// Errors are the violations found, attributed to the request's file.
	Errors []result.LintError

	// Message is an optional summary from the model.
	Message string

	// Usage is token usage and cost.
	Usage Usage

	// ProviderCached is true when the provider answered from its own cache.
	ProviderCached bool

	// Calls is the number of provider requests behind the evaluation, for
	// example one per chunk of a large file. Zero counts as one.
	Calls int
}

// Result converts the evaluation into a lint result fragment.
//
// The fragment counts one model call per provider request, or as many cache
// hits when the provider served every request from its own cache. Tokens
// and cost are always charged.
func (e *Evaluation) Result() result.LintResult {
	errs := make([]result.LintError, len(e.Errors))
	copy(errs, e.Errors)

	r := result.LintResult{
		Errors:           errs,
		PromptTokens:     e.Usage.PromptTokens,
		CompletionTokens: e.Usage.CompletionTokens,
		TotalTokens:      e.Usage.TotalTokens,
		CostMicros:       e.Usage.CostMicros,
		Message:          e.Message,
	}
	calls := max(e.Calls, 1)
	if e.ProviderCached {
		r.CacheHits = calls
	} else {
		r.ModelCalls = calls
	}
	return r
}

// Evaluator checks a file against a rule.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Evaluation, error)
}

// Func adapts a function to the Evaluator interface.
type Func func(ctx context.Context, req Request) (*Evaluation, error)

// Evaluate calls f.
func (f Func) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	return f(ctx, req)
}
