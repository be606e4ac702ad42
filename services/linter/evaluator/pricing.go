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
	"strings"
)

// Price is a model's list price in micro-dollars per 1000 tokens, which is
// the same number as US dollars per billion tokens.
type Price struct {
	Input       int64
	CachedInput int64
	Output      int64
}

// prices by model name prefix. The longest matching prefix wins so dated
// snapshots ("gpt-4o-mini-2024-07-18") resolve to their family.
var prices = map[string]Price{
	"gpt-4o":       {Input: 2500, CachedInput: 1250, Output: 10000},
	"gpt-4o-mini":  {Input: 150, CachedInput: 75, Output: 600},
	"gpt-4.1":      {Input: 2000, CachedInput: 500, Output: 8000},
	"gpt-4.1-mini": {Input: 400, CachedInput: 100, Output: 1600},
	"gpt-4.1-nano": {Input: 100, CachedInput: 25, Output: 400},
	"o4-mini":      {Input: 1100, CachedInput: 275, Output: 4400},
	"o3-mini":      {Input: 1100, CachedInput: 550, Output: 4400},
}

// PriceFor returns the price of model. ok is false for unknown models,
// which are treated as free.
func PriceFor(model string) (Price, bool) {
	best := ""
	for prefix := range prices {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Price{}, false
	}
	return prices[best], true
}

// CostMicros computes the cost of a call in micro-dollars.
//
// Cached prompt tokens are billed at the cached input rate. The result is
// rounded to the nearest micro-dollar.
func CostMicros(model string, promptTokens, cachedTokens, completionTokens int) int64 {
	p, ok := PriceFor(model)
	if !ok {
		return 0
	}
	if cachedTokens > promptTokens {
		cachedTokens = promptTokens
	}
	uncached := int64(promptTokens - cachedTokens)

	milli := uncached*p.Input + int64(cachedTokens)*p.CachedInput + int64(completionTokens)*p.Output
	return (milli + 500) / 1000
}
