// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations.
var (
	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("cache store closed")

	// ErrInvalidLocation indicates a cacheDir that names no usable backing.
	ErrInvalidLocation = errors.New("invalid cache location")

	// ErrNotClearable indicates the backing does not support Clear.
	ErrNotClearable = errors.New("cache store cannot be cleared")
)

// CacheError provides context about a failed cache operation.
//
// Cache errors are never fatal to a lint run: a failed Get is treated as a
// miss and a failed Set loses only that entry.
type CacheError struct {
	// Op is "get", "set" or "clear".
	Op string

	// Key is the affected key, empty for "clear".
	Key Key

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key.Short(), e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}
