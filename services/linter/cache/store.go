// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists evaluation results under content-addressed keys.
//
// A Key fingerprints everything that can change the model's answer for a
// (file, rule) pair. Stores map keys to Entries. Writes for the same key are
// idempotent overwrites, so concurrent writers need no coordination.
//
// Backings:
//
//	BadgerStore - local BadgerDB directory (default)
//	GCSStore    - Google Cloud Storage prefix, shared between machines
//	Disabled    - every Get misses, every Set is dropped
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianLint/services/linter/result"
)

// Entry is the persisted part of an evaluation.
type Entry struct {
	// Errors are the violations found, attributed to the file evaluated.
	Errors []result.LintError `json:"errors"`

	// Message is the model's optional summary.
	Message string `json:"message,omitempty"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// Result returns the fragment a cache hit contributes to a run.
func (e Entry) Result() result.LintResult {
	return result.FromEntry(e.Errors, e.Message)
}

// EntryFromResult builds an entry from an evaluation fragment.
func EntryFromResult(r result.LintResult) Entry {
	errs := make([]result.LintError, len(r.Errors))
	copy(errs, r.Errors)
	return Entry{Errors: errs, Message: r.Message, StoredAt: time.Now().UTC()}
}

// Store is a content-addressed evaluation cache.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key. ok is false on a miss.
	Get(ctx context.Context, key Key) (entry Entry, ok bool, err error)

	// Set stores entry under key, overwriting any previous entry.
	Set(ctx context.Context, key Key, entry Entry) error

	// Close releases the backing.
	Close() error
}

// Clearer is implemented by stores that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// =============================================================================
// OPEN
// =============================================================================

// Options select and tune the backing opened by Open.
type Options struct {
	// Dir is a local directory or a gs://bucket/prefix URL.
	Dir string

	// Disabled returns the Disabled store regardless of Dir.
	Disabled bool

	// InMemory opens an in-memory Badger store. Dir is ignored.
	InMemory bool

	// GCInterval enables periodic Badger value-log GC when positive.
	GCInterval time.Duration

	// CredentialsFile is an optional service-account key for GCS.
	CredentialsFile string
}

// Open selects, opens and instruments the cache backing.
//
// Description:
//
//	Returns the Disabled store when opts.Disabled is set, a GCSStore when
//	Dir starts with "gs://", and a BadgerStore otherwise. Every returned
//	store except Disabled records OpenTelemetry metrics and spans and
//	wraps backing errors in *CacheError.
//
// Inputs:
//
//	ctx    - Context for opening remote backings.
//	opts   - Backing selection.
//	logger - Logger for backing diagnostics. Nil uses slog.Default().
//
// Outputs:
//
//	Store - The opened store. Caller must Close it.
//	error - Non-nil if the backing cannot be opened. Fatal to a run.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Disabled {
		logger.Debug("cache disabled")
		return Disabled(), nil
	}

	switch {
	case opts.InMemory:
		cfg := InMemoryConfig()
		cfg.Logger = logger
		s, err := NewBadgerStore(cfg)
		if err != nil {
			return nil, err
		}
		return instrument(s, "badger"), nil

	case strings.HasPrefix(opts.Dir, "gs://"):
		s, err := NewGCSStore(ctx, opts.Dir, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened gcs cache", slog.String("location", opts.Dir))
		return instrument(s, "gcs"), nil

	case opts.Dir == "":
		return nil, fmt.Errorf("%w: empty cache directory", ErrInvalidLocation)

	default:
		cfg := DefaultConfig()
		cfg.Path = opts.Dir
		cfg.Logger = logger
		cfg.GCInterval = opts.GCInterval
		s, err := NewBadgerStore(cfg)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened badger cache", slog.String("path", opts.Dir))
		return instrument(s, "badger"), nil
	}
}

// Clear drops every entry from s when the backing supports it.
func Clear(ctx context.Context, s Store) error {
	c, ok := s.(Clearer)
	if !ok {
		return ErrNotClearable
	}
	return c.Clear(ctx)
}

// =============================================================================
// DISABLED
// =============================================================================

type disabledStore struct{}

// Disabled returns a store that never hits and never persists.
func Disabled() Store { return disabledStore{} }

func (disabledStore) Get(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }
func (disabledStore) Set(context.Context, Key, Entry) error         { return nil }
func (disabledStore) Close() error                                  { return nil }
func (disabledStore) Clear(context.Context) error                   { return nil }

// =============================================================================
// INSTRUMENTATION
// =============================================================================

// instrumented wraps a backing with metrics, spans and *CacheError wrapping.
type instrumented struct {
	inner   Store
	backend string
}

func instrument(s Store, backend string) Store {
	return &instrumented{inner: s, backend: backend}
}

func (s *instrumented) Get(ctx context.Context, key Key) (Entry, bool, error) {
	ctx, span := startCacheSpan(ctx, "Get", s.backend)
	defer span.End()

	start := time.Now()
	entry, ok, err := s.inner.Get(ctx, key)
	recordGetLatency(ctx, time.Since(start), ok, s.backend)

	if err != nil {
		recordCacheError(ctx, "get", s.backend)
		setCacheSpanError(span, err)
		return Entry{}, false, &CacheError{Op: "get", Key: key, Err: err}
	}
	if ok {
		recordCacheHit(ctx, s.backend)
	} else {
		recordCacheMiss(ctx, s.backend)
	}
	setCacheSpanResult(span, ok)
	return entry, ok, nil
}

func (s *instrumented) Set(ctx context.Context, key Key, entry Entry) error {
	ctx, span := startCacheSpan(ctx, "Set", s.backend)
	defer span.End()

	if err := s.inner.Set(ctx, key, entry); err != nil {
		recordCacheError(ctx, "set", s.backend)
		setCacheSpanError(span, err)
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	recordCacheWrite(ctx, s.backend)
	return nil
}

func (s *instrumented) Clear(ctx context.Context) error {
	if err := Clear(ctx, s.inner); err != nil {
		return &CacheError{Op: "clear", Err: err}
	}
	return nil
}

func (s *instrumented) Close() error {
	return s.inner.Close()
}
