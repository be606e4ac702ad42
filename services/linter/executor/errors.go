// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilEvaluation indicates an evaluator returned neither a result
	// nor an error.
	ErrNilEvaluation = errors.New("evaluator returned nil evaluation")

	// ErrTaskPanic indicates a task panicked.
	ErrTaskPanic = errors.New("task panicked")
)

// TaskExecutionError wraps a failure of a single lint task.
//
// The run continues; the task contributes nothing and is not cached.
type TaskExecutionError struct {
	Rule string
	File string
	Err  error
}

// Error implements the error interface.
func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s on %s: %v", e.Rule, e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
