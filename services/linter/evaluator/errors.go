// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evaluator

import (
	"errors"
	"fmt"
)

// Sentinel errors for evaluation.
var (
	// ErrMissingAPIKey indicates no API key was configured or found.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("model returned no choices")

	// ErrMalformedResponse indicates the model's answer was not the
	// expected JSON document.
	ErrMalformedResponse = errors.New("malformed model response")
)

// EvaluationError provides context about a failed model call.
type EvaluationError struct {
	// Model is the model that was called.
	Model string

	// Rule is the rule being evaluated.
	Rule string

	// File is the file's display name.
	File string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s against %s with %s: %v", e.File, e.Rule, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}
