// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianLint/services/linter/result"
)

const systemPrompt = `You are a meticulous code reviewer enforcing exactly one rule.
Report only clear violations of that rule in the provided file. Do not report
style issues unrelated to the rule. If the file complies, report nothing.

Answer with a single JSON object and nothing else:
{"violations": [{"code": "<exact offending snippet>", "confidence": "low|medium|high"}], "message": "<optional one-sentence summary>"}`

// buildPrompt renders the user message for one file chunk.
func buildPrompt(req Request, content string, part, parts int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Rule: %s\n\n%s\n", req.Rule.Name, req.Rule.Message)
	if req.Rule.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", req.Rule.Description)
	}
	for _, ex := range req.Rule.Bad {
		fmt.Fprintf(&b, "\n## Violating example\n```\n%s\n```\n", ex)
	}
	for _, ex := range req.Rule.Good {
		fmt.Fprintf(&b, "\n## Compliant example\n```\n%s\n```\n", ex)
	}
	if req.Guidelines != "" {
		fmt.Fprintf(&b, "\n# Project guidelines\n\n%s\n", req.Guidelines)
	}

	fmt.Fprintf(&b, "\n# File: %s (%s)", req.File.DisplayName, req.File.Language)
	if parts > 1 {
		fmt.Fprintf(&b, " part %d of %d", part, parts)
	}
	fmt.Fprintf(&b, "\n```%s\n%s\n```\n", req.File.Language, content)
	return b.String()
}

// modelAnswer is the JSON document the model is asked to produce.
type modelAnswer struct {
	Violations []modelViolation `json:"violations"`
	Errors     []modelViolation `json:"errors"`
	Message    string           `json:"message"`
}

type modelViolation struct {
	Code       string `json:"code"`
	Confidence string `json:"confidence"`
}

// parseAnswer decodes the model's answer into lint errors for req.
//
// Tolerates a surrounding markdown code fence and an "errors" key in
// place of "violations". Violations with no code are dropped.
func parseAnswer(req Request, content string) ([]result.LintError, string, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(text), &ans); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	found := ans.Violations
	if len(found) == 0 {
		found = ans.Errors
	}

	errs := make([]result.LintError, 0, len(found))
	for _, v := range found {
		code := strings.TrimSpace(v.Code)
		if code == "" {
			continue
		}
		errs = append(errs, result.LintError{
			File:       req.File.DisplayName,
			Language:   req.File.Language,
			Rule:       req.Rule.Name,
			Code:       code,
			Confidence: result.ParseConfidence(v.Confidence),
		})
	}
	return errs, strings.TrimSpace(ans.Message), nil
}
