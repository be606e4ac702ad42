// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules loads the inputs of a lint run: natural-language rules,
// guideline documents and the source files they are checked against.
//
// Rules are written in markdown. Each second-level heading starts a rule:
//
//	## no-console-log
//	level: warn
//	fixable: true
//
//	Production code must log through the structured logger.
//
//	### Bad
//	```ts
//	console.log(user)
//	```
//
//	### Good
//	```ts
//	logger.info("user", { id: user.id })
//	```
//
// Everything returned by this package is treated as immutable for the
// duration of a run.
package rules

import (
	"strings"
)

// Level is the severity a rule reports at when the config does not override it.
type Level string

const (
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel parses a level string. Unknown values default to LevelError.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return LevelWarn
	default:
		return LevelError
	}
}

// Rule is a natural-language lint rule.
//
// Thread Safety: Immutable after loading.
type Rule struct {
	// Name is the unique key of the rule (e.g., "no-console-log").
	Name string `json:"name"`

	// Message is the one-line statement of the rule.
	Message string `json:"message"`

	// Description is optional longer guidance.
	Description string `json:"description,omitempty"`

	// Good are examples of compliant code.
	Good []string `json:"good,omitempty"`

	// Bad are examples of violating code.
	Bad []string `json:"bad,omitempty"`

	// Fixable marks rules whose violations have a mechanical fix.
	Fixable bool `json:"fixable,omitempty"`

	// Source is where the rule was defined ("rules/style.md:12").
	Source string `json:"source,omitempty"`

	// Level is the default severity.
	Level Level `json:"level,omitempty"`
}

// InputFile is a source file to lint.
//
// Thread Safety: Immutable after loading.
type InputFile struct {
	// AbsPath is the absolute path on disk.
	AbsPath string `json:"abs_path"`

	// RelPath is the path relative to the run root, slash separated.
	RelPath string `json:"rel_path"`

	// DisplayName is what reports show for the file.
	DisplayName string `json:"display_name"`

	// Content is the full text of the file.
	Content string `json:"content"`

	// Language is the detected language identifier (e.g., "go").
	Language string `json:"language"`
}

// IsBlank returns true if the file has no non-whitespace content.
func (f InputFile) IsBlank() bool {
	return strings.TrimSpace(f.Content) == ""
}

// NewInputFile builds an InputFile from in-memory content.
//
// Description:
//
//	Used by the HTTP server and tests where files never touch disk.
//	Language is detected from the path extension.
func NewInputFile(relPath, content string) InputFile {
	rel := strings.TrimPrefix(strings.ReplaceAll(relPath, "\\", "/"), "./")
	return InputFile{
		AbsPath:     rel,
		RelPath:     rel,
		DisplayName: rel,
		Content:     content,
		Language:    DetectLanguage(rel),
	}
}
