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
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

// section is the sub-heading a block appears under inside a rule.
type section int

const (
	sectionBody section = iota
	sectionGood
	sectionBad
	sectionOther
)

func classifySection(heading string) section {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "bad"), strings.Contains(h, "incorrect"), strings.Contains(h, "avoid"):
		return sectionBad
	case strings.Contains(h, "good"), strings.Contains(h, "correct"), strings.Contains(h, "prefer"):
		return sectionGood
	default:
		return sectionOther
	}
}

// LoadRuleFiles loads every markdown rule document matching patterns.
//
// Description:
//
//	Documents are read in lexical path order and parsed with
//	ParseRuleDocument. Rule names must be unique across all documents.
//
// Inputs:
//
//	root     - Directory patterns are relative to.
//	patterns - Globs selecting rule documents.
//
// Outputs:
//
//	[]Rule - Rules in document order.
//	error  - Non-nil on I/O failure, a malformed rule or a duplicate name.
func LoadRuleFiles(root string, patterns []string) ([]Rule, error) {
	paths, err := findMatching(root, patterns)
	if err != nil {
		return nil, fmt.Errorf("finding rule files: %w", err)
	}

	absRoot, _ := filepath.Abs(root)
	var all []Rule
	seen := make(map[string]string)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &RuleFileError{Path: p, Err: err}
		}

		display := p
		if rel, err := filepath.Rel(absRoot, p); err == nil {
			display = filepath.ToSlash(rel)
		}

		parsed, err := ParseRuleDocument(display, data)
		if err != nil {
			return nil, err
		}
		for _, r := range parsed {
			if prev, ok := seen[r.Name]; ok {
				return nil, &RuleFileError{
					Path: display,
					Err:  fmt.Errorf("%w: %q already defined at %s", ErrDuplicateRule, r.Name, prev),
				}
			}
			seen[r.Name] = r.Source
			all = append(all, r)
		}
	}
	return all, nil
}

// ParseRuleDocument parses one markdown rule document.
//
// Description:
//
//	Every "##" heading starts a rule named by the heading text. Within a
//	rule, "level:" and "fixable:" lines set metadata, the first paragraph
//	is the message and later paragraphs form the description. Fenced or
//	indented code under a sub-heading mentioning "good"/"correct" is a
//	good example; under "bad"/"incorrect" a bad example. Level-1 headings
//	and text before the first rule are ignored.
//
// Inputs:
//
//	source - Name used in Rule.Source and errors.
//	data   - Markdown document.
//
// Outputs:
//
//	[]Rule - Rules in document order.
//	error  - *RuleFileError for a rule without a message or a duplicate
//	         name within the document.
func ParseRuleDocument(source string, data []byte) ([]Rule, error) {
	md := markdown.New(markdown.HTML(false))
	tokens := md.Parse(data)

	var (
		out     []Rule
		cur     *Rule
		line    int
		desc    []string
		sect    section
		seen    = make(map[string]bool)
		failure error
	)

	finish := func() {
		if cur == nil || failure != nil {
			return
		}
		if cur.Message == "" {
			failure = &RuleFileError{Path: source, Line: line, Err: fmt.Errorf("%w: %q", ErrEmptyRule, cur.Name)}
			return
		}
		if seen[cur.Name] {
			failure = &RuleFileError{Path: source, Line: line, Err: fmt.Errorf("%w: %q", ErrDuplicateRule, cur.Name)}
			return
		}
		seen[cur.Name] = true
		cur.Description = strings.Join(desc, "\n\n")
		out = append(out, *cur)
		cur, desc = nil, nil
	}

	for i := 0; i < len(tokens); i++ {
		switch tok := tokens[i].(type) {
		case *markdown.HeadingOpen:
			text := ""
			if i+1 < len(tokens) {
				if in, ok := tokens[i+1].(*markdown.Inline); ok {
					text = strings.TrimSpace(in.Content)
					i++
				}
			}
			switch {
			case tok.HLevel <= 1:
				finish()
				cur = nil
			case tok.HLevel == 2:
				finish()
				line = tok.Map[0] + 1
				cur = &Rule{
					Name:   strings.Trim(text, "`"),
					Source: fmt.Sprintf("%s:%d", source, line),
					Level:  LevelError,
				}
				sect = sectionBody
			case cur != nil:
				sect = classifySection(text)
			}

		case *markdown.Inline:
			if cur == nil || sect != sectionBody {
				continue
			}
			if text := applyMetadata(cur, tok.Content); text != "" {
				if cur.Message == "" {
					cur.Message = text
				} else {
					desc = append(desc, text)
				}
			}

		case *markdown.Fence:
			addExample(cur, sect, tok.Content)

		case *markdown.CodeBlock:
			addExample(cur, sect, tok.Content)
		}
	}
	finish()

	if failure != nil {
		return nil, failure
	}
	return out, nil
}

// applyMetadata consumes "key: value" metadata lines from a paragraph and
// returns the remaining prose.
func applyMetadata(r *Rule, paragraph string) string {
	var prose []string
	for _, l := range strings.Split(paragraph, "\n") {
		key, value, ok := strings.Cut(l, ":")
		if ok {
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "level", "severity":
				r.Level = ParseLevel(value)
				continue
			case "fixable":
				if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
					r.Fixable = b
					continue
				}
			}
		}
		if t := strings.TrimSpace(l); t != "" {
			prose = append(prose, t)
		}
	}
	return strings.Join(prose, " ")
}

func addExample(r *Rule, s section, code string) {
	if r == nil {
		return
	}
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return
	}
	switch s {
	case sectionGood:
		r.Good = append(r.Good, code)
	case sectionBad:
		r.Bad = append(r.Bad, code)
	}
}
