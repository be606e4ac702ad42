// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inline parses per-file directive comments.
//
// Supported directives, in any comment syntax:
//
//	// ailint-disable                       turn the linter off for the file
//	# ailint-disable no-console, no-any     turn the named rules off
//	/* ailint-config {rules: {no-any: warn}, linterOptions: {model: gpt-4o}} */
//
// Directives merge in file order with config.Merge.
package inline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// ErrBadDirective indicates a directive that could not be parsed.
var ErrBadDirective = errors.New("bad inline directive")

// DirectiveError provides the location of a bad directive.
type DirectiveError struct {
	// File is the file's display name.
	File string

	// Line is the 1-based line of the directive.
	Line int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *DirectiveError) Unwrap() error {
	return e.Err
}

var directiveRe = regexp.MustCompile(`ailint-(disable|config)(?:[ \t]+(.*?))?[ \t]*$`)

// commentClosers are stripped from the end of a directive's argument.
var commentClosers = []string{"*/", "-->", "--}}", "#}", "%>", "*)"}

// Parser extracts inline overrides from file content.
//
// Thread Safety: Stateless, safe for concurrent use.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the merged override declared by file's directives.
//
// Description:
//
//	Scans every line for "ailint-disable" and "ailint-config". A bare
//	disable sets Disabled; a disable with a comma-separated list sets those
//	rules off; a config directive carries a YAML flow map validated like a
//	config file. Overrides merge in line order.
//
// Inputs:
//
//	file - The file to scan.
//
// Outputs:
//
//	*config.Config - The merged override, or nil when there are none.
//	error          - *DirectiveError for the first malformed directive.
func (p *Parser) Parse(file rules.InputFile) (*config.Config, error) {
	if !strings.Contains(file.Content, "ailint-") {
		return nil, nil
	}

	var merged *config.Config
	for i, line := range strings.Split(file.Content, "\n") {
		m := directiveRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}

		override, err := parseDirective(m[1], trimCloser(m[2]))
		if err != nil {
			return nil, &DirectiveError{File: file.DisplayName, Line: i + 1, Err: err}
		}
		merged = config.Merge(merged, override)
	}
	return merged, nil
}

func parseDirective(kind, arg string) (*config.Config, error) {
	switch kind {
	case "disable":
		if arg == "" {
			return &config.Config{Disabled: config.Bool(true)}, nil
		}
		off := make(map[string]config.RuleSetting)
		for _, name := range strings.Split(arg, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("%w: empty rule name in %q", ErrBadDirective, arg)
			}
			off[name] = config.SettingOff
		}
		return &config.Config{Rules: off}, nil

	case "config":
		if arg == "" {
			return nil, fmt.Errorf("%w: ailint-config needs a value", ErrBadDirective)
		}
		var cfg config.Config
		dec := yaml.NewDecoder(bytes.NewReader([]byte(arg)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrBadDirective, err)
		}
		if err := config.ValidateConfig(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return nil, fmt.Errorf("%w: unknown directive %q", ErrBadDirective, kind)
}

func trimCloser(arg string) string {
	arg = strings.TrimSpace(arg)
	for _, c := range commentClosers {
		if strings.HasSuffix(arg, c) {
			return strings.TrimSpace(strings.TrimSuffix(arg, c))
		}
	}
	return arg
}
