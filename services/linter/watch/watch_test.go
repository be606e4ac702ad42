// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string, opts Options) <-chan []Change {
	t.Helper()
	batches := make(chan []Change, 10)
	w, err := New(root, func(_ context.Context, changes []Change) {
		batches <- changes
	}, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return batches
}

func TestWatcher_DebouncesBatch(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{Debounce: 250 * time.Millisecond})

	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("2"), 0o644))

	select {
	case batch := <-batches:
		paths := make([]string, len(batch))
		for i, c := range batch {
			paths[i] = c.Path
		}
		assert.Equal(t, []string{a, b}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	<-batches

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(sub, "x.go")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-batches:
			for _, c := range batch {
				if c.Path == file {
					return
				}
			}
		case <-deadline:
			t.Fatal("change in new directory not seen")
		}
	}
}

func TestWatcher_IgnoresPaths(t *testing.T) {
	root := t.TempDir()
	cacheDir := filepath.Join(root, ".ailint", "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	batches := startWatcher(t, root, Options{
		Debounce: 50 * time.Millisecond,
		Ignore:   append(DefaultIgnore(), cacheDir),
	})

	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "000001.vlog"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "m.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.swp"), []byte("x"), 0o644))

	select {
	case batch := <-batches:
		t.Fatalf("unexpected batch: %+v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(t.TempDir(), nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(filepath.Join(t.TempDir(), "missing"), func(context.Context, []Change) {}, Options{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file, func(context.Context, []Change) {}, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConvertOp(t *testing.T) {
	assert.Equal(t, OpCreate, convertOp(fsnotify.Create))
	assert.Equal(t, OpWrite, convertOp(fsnotify.Write))
	assert.Equal(t, OpRemove, convertOp(fsnotify.Remove))
	assert.Equal(t, OpRename, convertOp(fsnotify.Rename))
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", Op(9).String())
}
