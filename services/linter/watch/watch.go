// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs work when files under a directory change.
//
// Changes are batched: after the first event the watcher waits for a quiet
// period (the debounce window) and then calls the handler once with every
// distinct path that changed. The handler runs on the watcher goroutine, so
// runs never overlap; events that arrive meanwhile form the next batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 300 * time.Millisecond

// ErrInvalidInput indicates invalid constructor arguments.
var ErrInvalidInput = errors.New("invalid input")

// Op is the kind of change observed.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one changed path. Within a batch the last operation wins.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a debounced batch, sorted by path.
type Handler func(ctx context.Context, changes []Change)

// Options configure a Watcher.
type Options struct {
	// Debounce is the quiet period. Default: DefaultDebounce.
	Debounce time.Duration

	// Ignore lists base names, base-name globs ("*.swp") or absolute
	// paths whose subtrees are not watched. Default: DefaultIgnore().
	Ignore []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultIgnore returns the names ignored when Options.Ignore is nil.
func DefaultIgnore() []string {
	return []string{".git", "node_modules", ".idea", "*.swp", "*.tmp", "*~"}
}

// Watcher watches a directory tree.
//
// Thread Safety: Run must be called at most once.
type Watcher struct {
	root     string
	fs       *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
}

// New creates a watcher over root and registers every directory below it.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler must not be nil", ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, root)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		fs:       fw,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		logger:   opts.Logger,
	}
	if err := w.addRecursive(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batches until ctx is cancelled, then releases the watcher.
// It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[string]Change)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watching new directory failed",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}
			pending[event.Name] = Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timerC = nil
			batch := drain(pending)
			w.logger.Debug("changes detected", slog.Int("paths", len(batch)))
			w.handler(ctx, batch)
		}
	}
}

func drain(pending map[string]Change) []Change {
	batch := make([]Change, 0, len(pending))
	for path, c := range pending {
		batch = append(batch, c)
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if filepath.IsAbs(pattern) {
			if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
				return true
			}
			continue
		}
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		// An ignored directory anywhere in the path hides its subtree.
		rel, err := filepath.Rel(w.root, path)
		if err == nil {
			for _, seg := range strings.Split(rel, string(filepath.Separator)) {
				if seg == pattern {
					return true
				}
			}
		}
	}
	return false
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}
