// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for discovery and rule loading.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateRule indicates two rule documents define the same name.
	ErrDuplicateRule = errors.New("duplicate rule")

	// ErrEmptyRule indicates a rule heading with no message text.
	ErrEmptyRule = errors.New("rule has no message")

	// ErrBadPattern indicates a malformed glob pattern.
	ErrBadPattern = errors.New("bad glob pattern")
)

// RuleFileError provides context about a failure in a rule document.
type RuleFileError struct {
	// Path is the rule document.
	Path string

	// Line is the 1-based line, or 0 when unknown.
	Line int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RuleFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("rule file %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("rule file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleFileError) Unwrap() error {
	return e.Err
}
