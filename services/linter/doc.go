// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package linter checks source files against natural-language rules using a
// language model.
//
// A run expands every (rule, file) pair into a task, skips what the cache or
// the configuration already decides, evaluates the rest with bounded
// concurrency and folds every contribution into one result.
//
// # Pipeline
//
//	config ─┐
//	rules  ─┼─► planner ──► executor ──► Report
//	files  ─┘      │            │
//	               └── cache ◄──┘
//
// The planner classifies each pair as cached, inline-disabled,
// rule-disabled, failed-precheck or executable. The executor runs
// executable tasks through an evaluator.Evaluator and writes successful
// evaluations back to the cache. Skipped results seed the executor so the
// early-exit flag sees cached violations.
//
// # Usage
//
//	cfg, err := config.LoadAll(".ailint.yaml")
//	if err != nil {
//	    return err
//	}
//	ev, err := evaluator.NewOpenAI(evaluator.OpenAIConfigFromEnv())
//	if err != nil {
//	    return err
//	}
//	report, err := linter.LintPaths(ctx, ".", config.Resolve(cfg),
//	    linter.WithEvaluator(ev))
//	if err != nil {
//	    return err
//	}
//	os.Exit(report.ExitCode())
//
// # Subpackages
//
//   - config: YAML configuration, validation and merging
//   - rules: rule documents, guideline files and file discovery
//   - inline: per-file ailint-disable / ailint-config directives
//   - cache: content-addressed result store (Badger, GCS)
//   - planner: task classification
//   - executor: bounded concurrent execution
//   - evaluator: the model collaborator (OpenAI-compatible)
//   - result: the LintResult monoid
//
// # Thread Safety
//
// A Linter is safe for concurrent use; each Run is independent.
package linter
