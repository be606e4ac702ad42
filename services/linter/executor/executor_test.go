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
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/planner"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

func makeTasks(n int) []planner.Task {
	tasks := make([]planner.Task, n)
	for i := range tasks {
		name := fmt.Sprintf("f%d.go", i)
		tasks[i] = planner.Task{
			File: rules.NewInputFile(name, fmt.Sprintf("package f%d", i)),
			Rule: rules.Rule{Name: "r", Message: "m"},
			Key:  cache.Key(fmt.Sprintf("%064d", i)),
		}
	}
	return tasks
}

func clean(tokens int) *evaluator.Evaluation {
	return &evaluator.Evaluation{Usage: evaluator.Usage{PromptTokens: tokens, TotalTokens: tokens, CostMicros: 1}}
}

func violation(req evaluator.Request) *evaluator.Evaluation {
	return &evaluator.Evaluation{
		Errors: []result.LintError{{File: req.File.DisplayName, Rule: req.Rule.Name, Code: "bad"}},
		Usage:  evaluator.Usage{TotalTokens: 1},
	}
}

// recordingStore counts writes.
type recordingStore struct {
	mu   sync.Mutex
	sets map[cache.Key]cache.Entry
	err  error
}

func (s *recordingStore) Get(context.Context, cache.Key) (cache.Entry, bool, error) {
	return cache.Entry{}, false, nil
}

func (s *recordingStore) Set(_ context.Context, k cache.Key, e cache.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets == nil {
		s.sets = make(map[cache.Key]cache.Entry)
	}
	s.sets[k] = e
	return nil
}

func (s *recordingStore) Close() error { return nil }

func TestRun_ConcurrencyBound(t *testing.T) {
	var inFlight, peak, calls atomic.Int32
	ev := evaluator.Func(func(_ context.Context, _ evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return clean(10), nil
	})

	exec, err := New(ev, WithConcurrency(3))
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(10), result.Empty())
	require.NoError(t, err)

	assert.Equal(t, int32(10), calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(3), peak.Load())
	assert.Equal(t, 10, out.Executed)
	assert.Equal(t, 10, out.Result.ModelCalls)
	assert.Equal(t, 100, out.Result.PromptTokens)
	assert.Equal(t, int64(10), out.Result.CostMicros)
	assert.Zero(t, out.NotRun)
}

func TestRun_EarlyExit(t *testing.T) {
	var calls atomic.Int32
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		if calls.Add(1) == 2 {
			return violation(req), nil
		}
		return clean(1), nil
	})

	exec, err := New(ev, WithConcurrency(1), WithEarlyExit(true))
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(5), result.Empty())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, out.Executed)
	assert.Equal(t, 3, out.NotRun)
	assert.True(t, out.Stopped)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, "f1.go", out.Result.Errors[0].File)
	assert.Equal(t, 2, out.Result.ModelCalls)
}

func TestRun_EarlyExitLetsInFlightTasksFinish(t *testing.T) {
	var calls atomic.Int32
	slowStarted := make(chan struct{})
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		switch req.File.DisplayName {
		case "f0.go":
			close(slowStarted)
			time.Sleep(60 * time.Millisecond)
			return clean(3), nil
		case "f1.go":
			select {
			case <-slowStarted:
			case <-time.After(time.Second):
			}
			return violation(req), nil
		}
		return clean(100), nil
	})

	exec, err := New(ev, WithConcurrency(2), WithEarlyExit(true))
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(5), result.Empty())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, out.Executed)
	assert.Equal(t, 3, out.NotRun)
	assert.True(t, out.Stopped)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, "f1.go", out.Result.Errors[0].File)

	// f0 was in flight when f1 failed; its usage still counts.
	assert.Equal(t, 2, out.Result.ModelCalls)
	assert.Equal(t, 3, out.Result.PromptTokens)
	assert.Equal(t, 4, out.Result.TotalTokens)
	assert.Equal(t, int64(1), out.Result.CostMicros)
}

func TestRun_NoCacheTaskSkipsWrite(t *testing.T) {
	store := &recordingStore{}
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		return violation(req), nil
	})
	exec, err := New(ev, WithStore(store))
	require.NoError(t, err)

	tasks := makeTasks(2)
	tasks[0].Options.NoCache = true

	out, err := exec.Run(context.Background(), tasks, result.Empty())
	require.NoError(t, err)

	assert.Len(t, out.Result.Errors, 2)
	require.Len(t, store.sets, 1)
	_, ok := store.sets[tasks[1].Key]
	assert.True(t, ok)
}

func TestRun_EarlyExitDisabledRunsAll(t *testing.T) {
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		return violation(req), nil
	})
	exec, err := New(ev, WithConcurrency(2))
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(5), result.Empty())
	require.NoError(t, err)
	assert.Len(t, out.Result.Errors, 5)
	assert.False(t, out.Stopped)
}

func TestRun_SeedWithErrorsStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	ev := evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		return clean(1), nil
	})
	exec, err := New(ev, WithEarlyExit(true))
	require.NoError(t, err)

	seed := result.FromEntry([]result.LintError{{File: "cached.go", Rule: "r", Code: "x"}}, "")
	out, err := exec.Run(context.Background(), makeTasks(3), seed)
	require.NoError(t, err)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 3, out.NotRun)
	assert.Equal(t, seed, out.Result)
}

func TestRun_FailuresAndPanicsAreWarnings(t *testing.T) {
	boom := errors.New("rate limited")
	store := &recordingStore{}
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		switch req.File.DisplayName {
		case "f0.go":
			return nil, boom
		case "f1.go":
			panic("kaboom")
		case "f2.go":
			return nil, nil
		}
		return clean(5), nil
	})

	exec, err := New(ev, WithConcurrency(2), WithStore(store))
	require.NoError(t, err)

	tasks := makeTasks(4)
	out, err := exec.Run(context.Background(), tasks, result.Empty())
	require.NoError(t, err)

	assert.Equal(t, 4, out.Executed)
	assert.Equal(t, 3, out.Failed)
	require.Len(t, out.Warnings, 3)

	var sawBoom, sawPanic, sawNil bool
	for _, w := range out.Warnings {
		var terr *TaskExecutionError
		require.True(t, errors.As(w, &terr))
		sawBoom = sawBoom || errors.Is(w, boom)
		sawPanic = sawPanic || errors.Is(w, ErrTaskPanic)
		sawNil = sawNil || errors.Is(w, ErrNilEvaluation)
	}
	assert.True(t, sawBoom)
	assert.True(t, sawPanic)
	assert.True(t, sawNil)

	assert.Equal(t, 1, out.Result.ModelCalls)
	assert.Len(t, store.sets, 1)
	assert.Contains(t, store.sets, tasks[3].Key)
}

func TestRun_CacheWriteFailureIsWarning(t *testing.T) {
	store := &recordingStore{err: &cache.CacheError{Op: "set", Err: errors.New("disk full")}}
	exec, err := New(evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		return clean(1), nil
	}), WithStore(store))
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(1), result.Empty())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Result.ModelCalls)
	assert.Zero(t, out.Failed)
	require.Len(t, out.Warnings, 1)
	var cerr *cache.CacheError
	assert.True(t, errors.As(out.Warnings[0], &cerr))
}

func TestRun_IdenticalKeysShareEvaluation(t *testing.T) {
	var calls atomic.Int32
	ev := evaluator.Func(func(_ context.Context, req evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		e := violation(req)
		e.Usage = evaluator.Usage{PromptTokens: 7, TotalTokens: 7}
		return e, nil
	})
	exec, err := New(ev, WithConcurrency(2))
	require.NoError(t, err)

	tasks := makeTasks(2)
	tasks[1].Key = tasks[0].Key

	out, err := exec.Run(context.Background(), tasks, result.Empty())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, out.Result.ModelCalls)
	assert.Equal(t, 1, out.Result.CacheHits)
	assert.Equal(t, 7, out.Result.PromptTokens)

	files, _ := out.Result.ErrorsByFile()
	assert.ElementsMatch(t, []string{"f0.go", "f1.go"}, files)
}

func TestRun_Callbacks(t *testing.T) {
	var started int
	var progress []Progress
	exec, err := New(
		evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
			return clean(1), nil
		}),
		WithConcurrency(4),
		WithStartFunc(func(_ context.Context, total int) error {
			started = total
			return nil
		}),
		WithProgressFunc(func(_ context.Context, p Progress) error {
			progress = append(progress, p)
			if p.Completed == 1 {
				return errors.New("terminal closed")
			}
			return nil
		}),
	)
	require.NoError(t, err)

	out, err := exec.Run(context.Background(), makeTasks(4), result.Empty())
	require.NoError(t, err)

	assert.Equal(t, 4, started)
	require.Len(t, progress, 4)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 4, p.Total)
		assert.InDelta(t, float64(i+1)/4, p.Fraction, 1e-9)
		assert.NotEmpty(t, p.Label)
	}
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0].Error(), "terminal closed")
}

func TestRun_Cancelled(t *testing.T) {
	var calls atomic.Int32
	exec, err := New(evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		calls.Add(1)
		return clean(1), nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := exec.Run(ctx, makeTasks(3), result.Empty())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Zero(t, calls.Load())
	assert.Equal(t, 3, out.NotRun)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	exec, err := New(evaluator.Func(func(context.Context, evaluator.Request) (*evaluator.Evaluation, error) {
		return clean(1), nil
	}), WithConcurrency(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, exec.concurrency)

	//nolint:staticcheck // nil context is the case under test
	_, err = exec.Run(nil, nil, result.Empty())
	assert.ErrorIs(t, err, ErrNilContext)
}
