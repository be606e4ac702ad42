// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package result defines lint findings and the run-level result they fold into.
//
// LintResult forms a monoid under Merge with Empty as identity. Error lists
// concatenate and every numeric counter sums, so per-task fragments can be
// combined in any grouping. The Message field is the exception: it is
// last-non-empty-wins and therefore not commutative.
//
// # Thread Safety
//
// LintResult is a value type. Merge never mutates its inputs.
package result

import (
	"strings"
)

// =============================================================================
// CONFIDENCE
// =============================================================================

// Confidence is how sure the model is that a violation is real.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence normalises a model-supplied confidence label.
//
// Description:
//
//	Accepts case-insensitive labels and a few common synonyms.
//	Unknown values default to ConfidenceMedium.
//
// Inputs:
//
//	s - Confidence label as returned by the model.
//
// Outputs:
//
//	Confidence - The normalised confidence.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l", "unlikely":
		return ConfidenceLow
	case "high", "h", "certain", "very high":
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// Valid reports whether c is one of the three known levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

// =============================================================================
// LINT ERROR
// =============================================================================

// LintError is a single rule violation reported for a file.
//
// Thread Safety: Immutable after creation.
type LintError struct {
	// File is the path of the offending file, relative to the run root.
	File string `json:"file"`

	// Language is the detected language of the file.
	Language string `json:"language"`

	// Rule is the name of the violated rule.
	Rule string `json:"rule"`

	// Code is the offending snippet quoted by the model.
	Code string `json:"code"`

	// Confidence is the model's certainty.
	Confidence Confidence `json:"confidence"`
}

// =============================================================================
// LINT RESULT
// =============================================================================

// LintResult is the outcome of one task or of a whole run.
type LintResult struct {
	// Errors are violations in discovery order.
	Errors []LintError `json:"errors"`

	// ModelCalls counts fresh calls to the model service.
	ModelCalls int `json:"model_calls"`

	// CacheHits counts tasks answered without a fresh model call.
	CacheHits int `json:"cache_hits"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// CostMicros is the accumulated cost in millionths of a US dollar.
	// Integer so that summation stays exactly associative.
	CostMicros int64 `json:"cost_micros"`

	// Message is an optional free-text summary from the model.
	Message string `json:"message,omitempty"`
}

// Empty returns the identity element for Merge.
func Empty() LintResult {
	return LintResult{Errors: []LintError{}}
}

// Merge combines two results.
//
// Description:
//
//	Errors are a's followed by b's. ModelCalls, CacheHits, token counts and
//	CostMicros are summed. Message is b's when non-empty, otherwise a's.
//
//	Merge is associative on every field and commutative on every field
//	except Message, which is last-non-empty-wins.
//
// Inputs:
//
//	a, b - Results to combine. Neither is modified.
//
// Outputs:
//
//	LintResult - The combined result with a freshly allocated error slice.
func Merge(a, b LintResult) LintResult {
	errs := make([]LintError, 0, len(a.Errors)+len(b.Errors))
	errs = append(errs, a.Errors...)
	errs = append(errs, b.Errors...)

	msg := a.Message
	if b.Message != "" {
		msg = b.Message
	}

	return LintResult{
		Errors:           errs,
		ModelCalls:       a.ModelCalls + b.ModelCalls,
		CacheHits:        a.CacheHits + b.CacheHits,
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
		CostMicros:       a.CostMicros + b.CostMicros,
		Message:          msg,
	}
}

// FromEntry builds the fragment contributed by a cached evaluation.
//
// The fragment counts one cache hit and charges no tokens or cost.
func FromEntry(errs []LintError, message string) LintResult {
	out := make([]LintError, len(errs))
	copy(out, errs)
	return LintResult{
		Errors:    out,
		CacheHits: 1,
		Message:   message,
	}
}

// Fold merges results left to right starting from Empty.
func Fold(results ...LintResult) LintResult {
	acc := Empty()
	for _, r := range results {
		acc = Merge(acc, r)
	}
	return acc
}

// HasErrors returns true if at least one violation was recorded.
func (r LintResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// CostUSD returns the cost in US dollars.
func (r LintResult) CostUSD() float64 {
	return float64(r.CostMicros) / 1e6
}

// WithFile returns a copy of r whose errors are attributed to file.
//
// Used when one evaluation is shared by tasks on identical content.
func (r LintResult) WithFile(file string) LintResult {
	out := r
	out.Errors = make([]LintError, len(r.Errors))
	for i, e := range r.Errors {
		e.File = file
		out.Errors[i] = e
	}
	return out
}

// ErrorsByRule groups error counts by rule name.
func (r LintResult) ErrorsByRule() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Errors {
		counts[e.Rule]++
	}
	return counts
}

// ErrorsByFile groups errors by file, preserving discovery order per file.
func (r LintResult) ErrorsByFile() (files []string, byFile map[string][]LintError) {
	byFile = make(map[string][]LintError)
	for _, e := range r.Errors {
		if _, ok := byFile[e.File]; !ok {
			files = append(files, e.File)
		}
		byFile[e.File] = append(byFile[e.File], e)
	}
	return files, byFile
}
