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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces entries so the format can be versioned.
var keyPrefix = []byte("lint:v1:")

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent stores. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal diagnostics.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns defaults for an on-disk cache.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites disabled (a lost entry only costs a re-evaluation)
//	- GC disabled (lint runs are short-lived)
//	- 50% discard ratio threshold when GC is enabled
func DefaultConfig() Config {
	return Config{
		SyncWrites:     false,
		GCInterval:     0,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
//
// Badger's info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

// openDB opens a BadgerDB instance with the given configuration.
func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for persistent cache", ErrInvalidLocation)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return db, nil
}

// =============================================================================
// GC RUNNER
// =============================================================================

// GCRunner runs periodic value-log garbage collection on a BadgerDB.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewGCRunner creates a garbage collection runner.
//
// Inputs:
//
//	db       - The BadgerDB instance. Must not be nil.
//	interval - How often to run GC. Must be positive.
//	ratio    - Minimum garbage ratio to trigger GC (0.0-1.0).
//	logger   - Optional logger for GC events.
//
// Outputs:
//
//	*GCRunner - The runner. Not started until Start() is called.
//	error     - Non-nil if inputs are invalid.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db must not be nil", ErrInvalidInput)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidInput)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: ratio must be between 0 and 1", ErrInvalidInput)
	}

	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins periodic garbage collection in a goroutine.
func (r *GCRunner) Start() {
	go r.run()
}

// Stop halts garbage collection and waits for the goroutine to finish.
// Safe to call multiple times.
func (r *GCRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *GCRunner) runGC() {
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		if r.logger != nil {
			r.logger.Debug("badger value log GC completed")
		}
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		// ErrNoRewrite means no GC was needed
		if r.logger != nil {
			r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
		}
	}
}

// =============================================================================
// BADGER STORE
// =============================================================================

// BadgerStore is a Store backed by a local BadgerDB.
//
// Values are JSON-encoded Entries. Each Set is a single-key transaction,
// so concurrent writes of the same key are last-writer-wins overwrites.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db       *badger.DB
	gcRunner *GCRunner
	path     string

	closeOnce sync.Once
	closeErr  error
}

// NewBadgerStore opens a BadgerDB and starts a GC runner if configured.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must Close it.
//	error        - Non-nil if the database cannot be opened.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &BadgerStore{db: db, path: cfg.Path}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gcRunner = runner
		runner.Start()
	}
	return s, nil
}

func dbKey(key Key) []byte {
	out := make([]byte, 0, len(keyPrefix)+len(key))
	out = append(out, keyPrefix...)
	return append(out, key...)
}

// Get returns the entry stored under key.
func (s *BadgerStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	if s.db.IsClosed() {
		return Entry{}, false, ErrClosed
	}

	var (
		entry Entry
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

// Set stores entry under key.
func (s *BadgerStore) Set(ctx context.Context, key Key, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), data)
	})
}

// Clear drops every cached entry.
func (s *BadgerStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.DropPrefix(keyPrefix)
}

// Path returns the database directory, empty for in-memory stores.
func (s *BadgerStore) Path() string {
	return s.path
}

// Close stops the GC runner and closes the database. Safe to call
// multiple times.
func (s *BadgerStore) Close() error {
	s.closeOnce.Do(func() {
		if s.gcRunner != nil {
			s.gcRunner.Stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
