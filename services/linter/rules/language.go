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
	"path/filepath"
	"strings"
)

// languageByExt maps lower-case file extensions to language identifiers.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".ts":    "typescript",
	".tsx":   "typescript",
	".mts":   "typescript",
	".cts":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".vue":   "vue",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".tf":    "terraform",
}

// languageByName maps well-known extension-less filenames.
var languageByName = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
}

// DetectLanguage returns the language identifier for a path.
//
// Description:
//
//	Uses the file extension, falling back to well-known filenames.
//	Returns "text" when the language cannot be determined.
//
// Inputs:
//
//	path - File path (absolute or relative).
//
// Outputs:
//
//	string - Language identifier such as "go" or "typescript".
func DetectLanguage(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := languageByName[base]; ok {
		return lang
	}
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	return "text"
}
