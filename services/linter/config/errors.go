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
	"fmt"
	"strings"
)

// Sentinel errors for configuration handling.
var (
	// ErrInvalidConfig is wrapped by every *ValidationError.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMalformed indicates the input is not parseable YAML or JSON.
	ErrMalformed = errors.New("malformed config")

	// ErrConfigExists indicates WriteDefault refused to overwrite a file.
	ErrConfigExists = errors.New("config file already exists")
)

// Issue is one problem found while validating a config.
type Issue struct {
	// Field is the config path (e.g., "linterOptions.concurrency").
	Field string `json:"field"`

	// Problem is a human-readable description.
	Problem string `json:"problem"`
}

// String returns "field: problem".
func (i Issue) String() string {
	if i.Field == "" {
		return i.Problem
	}
	return i.Field + ": " + i.Problem
}

// ValidationError lists every issue found in a config.
type ValidationError struct {
	// Source names the config (a path, "flags" or "inline"), may be empty.
	Source string

	// Issues are all problems found, in discovery order.
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	prefix := "invalid config"
	if e.Source != "" {
		prefix = fmt.Sprintf("invalid config %s", e.Source)
	}
	return fmt.Sprintf("%s: %d issue(s): %s", prefix, len(e.Issues), strings.Join(parts, "; "))
}

// Unwrap returns ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}
