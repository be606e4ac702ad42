// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Violation is one reported rule violation, flattened for display.
type Violation struct {
	File       string
	Rule       string
	Code       string
	Severity   string
	Confidence string
}

// ReportView is everything the text renderer shows about a run. It is
// kept free of linter types so the CLI decides the mapping.
type ReportView struct {
	Violations  []Violation
	Errors      int
	Warnings    int
	ModelCalls  int
	CacheHits   int
	TotalTokens int
	CostUSD     float64
	Skipped     map[string]int
	Executed    int
	NotRun      int
	Stopped     bool
	Problems    []string
	Duration    time.Duration
}

// Report prints violations grouped by file followed by a one-line summary.
func (p *Printer) Report(v ReportView) {
	byFile := make(map[string][]Violation)
	for _, violation := range v.Violations {
		byFile[violation.File] = append(byFile[violation.File], violation)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Fprintln(p.w, p.styles.Bold.Render(file))
		vs := byFile[file]
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].Rule < vs[j].Rule })
		for _, violation := range vs {
			p.violationLine(violation)
		}
		fmt.Fprintln(p.w)
	}

	if len(v.Problems) > 0 {
		p.Warning(fmt.Sprintf("%d problem(s) during the run:", len(v.Problems)))
		for _, problem := range v.Problems {
			fmt.Fprintf(p.w, "  %s %s\n", p.icon(IconBullet), problem)
		}
		fmt.Fprintln(p.w)
	}

	if v.Stopped && v.NotRun > 0 {
		p.Muted(fmt.Sprintf("stopped early: %d check(s) not run", v.NotRun))
	}

	counts := fmt.Sprintf("%s, %s", plural(v.Errors, "error"), plural(v.Warnings, "warning"))
	switch {
	case v.Errors > 0:
		fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), p.styles.Error.Render(counts))
	case v.Warnings > 0:
		fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), p.styles.Warning.Render(counts))
	default:
		p.Success(counts)
	}
	p.Muted(statsLine(v))
}

func (p *Printer) violationLine(v Violation) {
	ic := p.icon(IconWarning)
	sev := p.styles.Warning.Render(pad(v.Severity, 5))
	if v.Severity != "warn" {
		ic = p.icon(IconError)
		sev = p.styles.Error.Render(pad(v.Severity, 5))
	}
	line := fmt.Sprintf("  %s %s  %s", ic, sev, p.styles.Highlight.Render(v.Rule))
	if v.Code != "" {
		line += "  " + firstLine(v.Code)
	}
	if v.Confidence != "" {
		line += "  " + p.styles.Muted.Render("("+v.Confidence+")")
	}
	fmt.Fprintln(p.w, line)
}

func statsLine(v ReportView) string {
	parts := []string{
		plural(v.ModelCalls, "model call"),
		plural(v.CacheHits, "cache hit"),
		fmt.Sprintf("%d tokens", v.TotalTokens),
		fmt.Sprintf("$%.4f", v.CostUSD),
	}
	if skipped := skippedSummary(v.Skipped); skipped != "" {
		parts = append(parts, "skipped "+skipped)
	}
	if v.Duration > 0 {
		parts = append(parts, v.Duration.Round(time.Millisecond).String())
	}
	return strings.Join(parts, " · ")
}

func skippedSummary(skipped map[string]int) string {
	keys := make([]string, 0, len(skipped))
	for k, n := range skipped {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, skipped[k])
	}
	return strings.Join(parts, ",")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
