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
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// alwaysSkipDirs are never descended into regardless of patterns.
var alwaysSkipDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// binarySniffLen is how many leading bytes are checked for NUL.
const binarySniffLen = 8000

// DiscoverFiles walks root and returns every file matching include and not
// matching ignore.
//
// Description:
//
//	Patterns are "**"-aware globs relative to root. A pattern without a
//	slash (e.g. "*.go") matches the base name at any depth. A literal
//	directory matches everything under it. Ignored directories are pruned
//	from the walk. Binary files (NUL byte in the first 8000 bytes) are
//	skipped.
//
// Inputs:
//
//	root    - Directory to walk.
//	include - Patterns a file must match. Must not be empty.
//	ignore  - Patterns that exclude files and prune directories.
//
// Outputs:
//
//	[]InputFile - Matched files in lexical path order, each once.
//	error       - Non-nil on a bad pattern or I/O failure.
func DiscoverFiles(root string, include, ignore []string) ([]InputFile, error) {
	if len(include) == 0 {
		return nil, fmt.Errorf("%w: no file patterns", ErrInvalidInput)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	includes, err := compilePatterns(absRoot, include)
	if err != nil {
		return nil, err
	}
	ignores, err := compilePatterns(absRoot, ignore)
	if err != nil {
		return nil, err
	}

	var files []InputFile
	walkErr := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if alwaysSkipDirs[d.Name()] || matchAny(ignores, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matchAny(ignores, rel) || !matchAny(includes, rel) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		if isBinary(content) {
			return nil
		}

		files = append(files, InputFile{
			AbsPath:     p,
			RelPath:     rel,
			DisplayName: rel,
			Content:     string(content),
			Language:    DetectLanguage(rel),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("discovering files under %s: %w", root, walkErr)
	}

	return files, nil
}

// findMatching returns the absolute paths of files under root matching
// patterns, in lexical order.
func findMatching(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	compiled, err := compilePatterns(absRoot, patterns)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if alwaysSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		if matchAny(compiled, filepath.ToSlash(rel)) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// LoadGuidelines concatenates every guideline document matching patterns.
//
// Documents are joined in lexical path order separated by a blank line.
// Returns "" when patterns is empty.
func LoadGuidelines(root string, patterns []string) (string, error) {
	paths, err := findMatching(root, patterns)
	if err != nil {
		return "", fmt.Errorf("finding guideline files: %w", err)
	}

	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("reading guideline %s: %w", p, err)
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func isBinary(content []byte) bool {
	n := len(content)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
