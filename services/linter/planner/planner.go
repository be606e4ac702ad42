// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner expands rules and files into lint tasks.
//
// Every (rule, file) pair is classified exactly once: either it is skipped
// with a known contribution (cached, disabled, failed precheck) or it
// becomes an executable Task for the executor.
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// InlineParser extracts a per-file config override from file content.
//
// Returns nil when the file declares no directives.
type InlineParser interface {
	Parse(file rules.InputFile) (*config.Config, error)
}

// Option configures a Planner.
type Option func(*Planner)

// WithInlineParser sets the inline directive parser. Without one, inline
// directives are ignored.
func WithInlineParser(p InlineParser) Option {
	return func(pl *Planner) {
		pl.inline = p
	}
}

// WithGuidelines sets the guideline text hashed into every key.
func WithGuidelines(text string) Option {
	return func(pl *Planner) {
		pl.guidelines = text
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pl *Planner) {
		if logger != nil {
			pl.logger = logger
		}
	}
}

// Planner classifies (rule, file) pairs.
//
// Thread Safety: Plan may be called concurrently; the planner holds no
// mutable state.
type Planner struct {
	cfg        *config.ResolvedConfig
	store      cache.Store
	inline     InlineParser
	guidelines string
	logger     *slog.Logger
}

// New creates a Planner.
//
// Inputs:
//
//	cfg   - Resolved base configuration. Must not be nil.
//	store - Cache store. Must not be nil; use cache.Disabled() for none.
//	opts  - Optional settings.
//
// Outputs:
//
//	*Planner - The planner.
//	error    - ErrInvalidInput if cfg or store is nil.
func New(cfg *config.ResolvedConfig, store cache.Store, opts ...Option) (*Planner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store must not be nil", ErrInvalidInput)
	}

	p := &Planner{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// fileState is the per-file inline parse, computed once per Plan.
type fileState struct {
	override *config.Config
	err      error
}

// Plan classifies every (rule, file) pair in rule-major order.
//
// Description:
//
//	For each pair:
//	 1. The cache key is computed from the base options.
//	 2. A blank file is SkipFailedPrecheck with an empty result.
//	 3. A file whose directives disable the linter is SkipInlineDisabled;
//	    the empty result is persisted under the key.
//	 4. The inline override is applied. If it changes model parameters the
//	    key is recomputed. An effective setting of off is SkipRuleDisabled.
//	 5. A cache hit is SkipCached with the stored errors and one cache hit.
//	 6. Otherwise the pair becomes an executable Task.
//
//	Bad directives yield a *PrecheckError warning and SkipFailedPrecheck.
//	Cache failures yield a *cache.CacheError warning; a failed lookup is
//	treated as a miss.
//
// Inputs:
//
//	ctx   - Context for cancellation and cache I/O.
//	files - Files to lint.
//	rs    - Rules to check.
//
// Outputs:
//
//	*Plan - Classification of all len(rs)*len(files) pairs.
//	error - Non-nil only if ctx is cancelled or a key cannot be computed.
func (p *Planner) Plan(ctx context.Context, files []rules.InputFile, rs []rules.Rule) (*Plan, error) {
	plan := &Plan{Total: len(files) * len(rs)}

	states := make([]fileState, len(files))
	if p.inline != nil && !p.cfg.Options.NoInlineConfig {
		for i, f := range files {
			if f.IsBlank() {
				continue
			}
			override, err := p.parseInline(f)
			states[i] = fileState{override: override, err: err}
		}
	}

	for _, rule := range rs {
		for i, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := p.classify(ctx, plan, rule, file, states[i]); err != nil {
				return nil, err
			}
		}
	}

	p.logger.Debug("planned lint tasks",
		slog.Int("total", plan.Total),
		slog.Int("executable", len(plan.Tasks)),
		slog.Int("skipped", len(plan.Skipped)),
		slog.Int("warnings", len(plan.Warnings)))

	return plan, nil
}

// parseInline runs the inline parser, turning a panic into an error so one
// bad file cannot abort the run.
func (p *Planner) parseInline(f rules.InputFile) (override *config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			override = nil
			err = fmt.Errorf("%w: panic: %v", ErrInlineParse, r)
		}
	}()
	return p.inline.Parse(f)
}

func (p *Planner) params(opts config.ResolvedOptions) cache.Params {
	return cache.Params{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		Guidelines:  p.guidelines,
	}
}

func (p *Planner) classify(ctx context.Context, plan *Plan, rule rules.Rule, file rules.InputFile, state fileState) error {
	params := p.params(p.cfg.Options)
	key, err := cache.NewKey(file, rule, params)
	if err != nil {
		return err
	}

	skip := func(reason SkipReason, r result.LintResult, setting config.RuleSetting) {
		plan.Skipped = append(plan.Skipped, Skipped{
			Reason:  reason,
			Rule:    rule.Name,
			File:    file.DisplayName,
			Setting: setting,
			Result:  r,
		})
		recordOutcome(reason.String())
	}

	if file.IsBlank() {
		skip(SkipFailedPrecheck, result.Empty(), "")
		return nil
	}

	if state.err != nil {
		plan.Warnings = append(plan.Warnings, &PrecheckError{Rule: rule.Name, File: file.DisplayName, Err: state.err})
		recordWarning("precheck")
		skip(SkipFailedPrecheck, result.Empty(), "")
		return nil
	}

	effective := p.cfg.Apply(state.override)

	if effective.Disabled {
		if effective.Options.NoCache {
			skip(SkipInlineDisabled, result.Empty(), config.SettingOff)
			return nil
		}
		if err := p.store.Set(ctx, key, cache.EntryFromResult(result.Empty())); err != nil {
			p.cacheWarning(plan, err)
		}
		skip(SkipInlineDisabled, result.Empty(), config.SettingOff)
		return nil
	}

	if effParams := p.params(effective.Options); effParams != params {
		params = effParams
		key, err = cache.NewKey(file, rule, params)
		if err != nil {
			return err
		}
	}

	setting := effective.RuleSetting(rule)
	if setting == config.SettingOff {
		skip(SkipRuleDisabled, result.Empty(), config.SettingOff)
		return nil
	}

	if !effective.Options.NoCache {
		entry, ok, err := p.store.Get(ctx, key)
		if err != nil {
			p.cacheWarning(plan, err)
		} else if ok {
			skip(SkipCached, entry.Result().WithFile(file.DisplayName), setting)
			return nil
		}
	}

	plan.Tasks = append(plan.Tasks, Task{
		File:    file,
		Rule:    rule,
		Options: effective.Options,
		Setting: setting,
		Params:  params,
		Key:     key,
	})
	recordOutcome("executable")
	return nil
}

func (p *Planner) cacheWarning(plan *Plan, err error) {
	plan.Warnings = append(plan.Warnings, err)
	recordWarning("cache")
	p.logger.Warn("cache operation failed during planning", slog.String("error", err.Error()))
}
