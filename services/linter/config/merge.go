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

// Merge combines two partial configs. Neither input is modified.
//
// Description:
//
//	Glob lists are concatenated and de-duplicated keeping the first
//	occurrence. Rules are shallow-merged with b's entries winning.
//	LinterOptions are merged field by field with b's set fields winning;
//	the result has nil options when neither side defines them. Disabled is
//	taken from b when set.
//
// Inputs:
//
//	a, b - Configs to merge. Either may be nil.
//
// Outputs:
//
//	*Config - A new config. Never nil.
func Merge(a, b *Config) *Config {
	if a == nil {
		a = &Config{}
	}
	if b == nil {
		b = &Config{}
	}

	out := &Config{
		Files:          mergeGlobs(a.Files, b.Files),
		Ignores:        mergeGlobs(a.Ignores, b.Ignores),
		GuidelineFiles: mergeGlobs(a.GuidelineFiles, b.GuidelineFiles),
		RuleFiles:      mergeGlobs(a.RuleFiles, b.RuleFiles),
		LinterOptions:  mergeOptions(a.LinterOptions, b.LinterOptions),
		Disabled:       a.Disabled,
	}
	if b.Disabled != nil {
		out.Disabled = b.Disabled
	}

	if a.Rules != nil || b.Rules != nil {
		out.Rules = make(map[string]RuleSetting, len(a.Rules)+len(b.Rules))
		for k, v := range a.Rules {
			out.Rules[k] = v
		}
		for k, v := range b.Rules {
			out.Rules[k] = v
		}
	}
	return out
}

func mergeGlobs(a, b []string) []string {
	if a == nil && b == nil {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, g := range list {
			if seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

func mergeOptions(a, b *LinterOptions) *LinterOptions {
	if a == nil && b == nil {
		return nil
	}
	out := &LinterOptions{}
	for _, o := range []*LinterOptions{a, b} {
		if o == nil {
			continue
		}
		if o.NoInlineConfig != nil {
			out.NoInlineConfig = o.NoInlineConfig
		}
		if o.EarlyExit != nil {
			out.EarlyExit = o.EarlyExit
		}
		if o.Debug != nil {
			out.Debug = o.Debug
		}
		if o.NoCache != nil {
			out.NoCache = o.NoCache
		}
		if o.CacheDir != nil {
			out.CacheDir = o.CacheDir
		}
		if o.Concurrency != nil {
			out.Concurrency = o.Concurrency
		}
		if o.Model != nil {
			out.Model = o.Model
		}
		if o.Temperature != nil {
			out.Temperature = o.Temperature
		}
	}
	return out
}

// Resolve applies defaults to a partial config.
//
// Defaults: concurrency 8, model gpt-4o-mini, temperature 0, cacheDir
// .ailint/cache, every boolean false. A nil config resolves to all
// defaults.
func Resolve(cfg *Config) *ResolvedConfig {
	if cfg == nil {
		cfg = &Config{}
	}

	out := &ResolvedConfig{
		Files:          cloneStrings(cfg.Files),
		Ignores:        cloneStrings(cfg.Ignores),
		GuidelineFiles: cloneStrings(cfg.GuidelineFiles),
		RuleFiles:      cloneStrings(cfg.RuleFiles),
		Rules:          make(map[string]RuleSetting, len(cfg.Rules)),
		Options: ResolvedOptions{
			CacheDir:    DefaultCacheDir,
			Concurrency: DefaultConcurrency,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
		},
		Disabled: cfg.Disabled != nil && *cfg.Disabled,
	}
	for k, v := range cfg.Rules {
		out.Rules[k] = v
	}
	applyOptions(&out.Options, cfg.LinterOptions)
	return out
}

// Apply returns a copy of r with an inline override merged on top.
//
// Description:
//
//	Globs are appended and de-duplicated, rule entries and set option
//	fields in override win, and Disabled is taken from override when set.
//	A nil override returns r unchanged.
func (r *ResolvedConfig) Apply(override *Config) *ResolvedConfig {
	if override == nil {
		return r
	}

	out := &ResolvedConfig{
		Files:          mergeGlobs(r.Files, override.Files),
		Ignores:        mergeGlobs(r.Ignores, override.Ignores),
		GuidelineFiles: mergeGlobs(r.GuidelineFiles, override.GuidelineFiles),
		RuleFiles:      mergeGlobs(r.RuleFiles, override.RuleFiles),
		Rules:          make(map[string]RuleSetting, len(r.Rules)+len(override.Rules)),
		Options:        r.Options,
		Disabled:       r.Disabled,
	}
	for k, v := range r.Rules {
		out.Rules[k] = v
	}
	for k, v := range override.Rules {
		out.Rules[k] = v
	}
	if override.Disabled != nil {
		out.Disabled = *override.Disabled
	}
	applyOptions(&out.Options, override.LinterOptions)
	return out
}

func applyOptions(dst *ResolvedOptions, o *LinterOptions) {
	if o == nil {
		return
	}
	if o.NoInlineConfig != nil {
		dst.NoInlineConfig = *o.NoInlineConfig
	}
	if o.EarlyExit != nil {
		dst.EarlyExit = *o.EarlyExit
	}
	if o.Debug != nil {
		dst.Debug = *o.Debug
	}
	if o.NoCache != nil {
		dst.NoCache = *o.NoCache
	}
	if o.CacheDir != nil {
		dst.CacheDir = *o.CacheDir
	}
	if o.Concurrency != nil {
		dst.Concurrency = *o.Concurrency
	}
	if o.Model != nil {
		dst.Model = *o.Model
	}
	if o.Temperature != nil {
		dst.Temperature = *o.Temperature
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Bool returns a pointer to b. Helper for building configs in code.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
