// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// pattern is a compiled glob.
//
// Anchored patterns match the whole slash-separated path relative to the
// root; "**" matches zero or more path segments. Unanchored patterns (no
// slash, e.g. "*.go") match the base name at any depth.
type pattern struct {
	raw      string
	segments []string
	anchored bool
}

// compilePattern normalises a user pattern relative to root.
//
// Literal directories expand to "dir/**". Absolute paths under root are
// made relative.
func compilePattern(root, raw string) (pattern, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return pattern{}, fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}

	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return pattern{}, fmt.Errorf("%w: %s is outside %s", ErrBadPattern, raw, root)
		}
		p = rel
	}
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")

	anchored := strings.Contains(strings.TrimSuffix(p, "/"), "/")
	if !hasMeta(p) && root != "" {
		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err == nil {
			anchored = true
			if info.IsDir() && p != "." {
				p = strings.TrimSuffix(p, "/") + "/**"
			} else if p == "." {
				p = "**"
			}
		}
	}
	if strings.HasSuffix(p, "/") {
		p += "**"
		anchored = true
	}

	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "**" {
			continue
		}
		if _, err := path.Match(s, ""); err != nil {
			return pattern{}, fmt.Errorf("%w: %q", ErrBadPattern, raw)
		}
	}

	return pattern{raw: raw, segments: segs, anchored: anchored}, nil
}

// compilePatterns compiles every pattern, failing on the first bad one.
func compilePatterns(root string, raws []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raws))
	for _, r := range raws {
		p, err := compilePattern(root, r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// match reports whether rel (slash separated, relative to root) matches.
func (p pattern) match(rel string) bool {
	if !p.anchored {
		ok, _ := path.Match(p.segments[0], path.Base(rel))
		return ok
	}
	return matchSegments(p.segments, strings.Split(rel, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

func matchAny(patterns []pattern, rel string) bool {
	for _, p := range patterns {
		if p.match(rel) {
			return true
		}
	}
	return false
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// MatchGlob reports whether a slash-separated relative path matches a
// "**"-aware glob pattern.
func MatchGlob(glob, rel string) (bool, error) {
	p, err := compilePattern("", glob)
	if err != nil {
		return false, err
	}
	return p.match(filepath.ToSlash(rel)), nil
}
