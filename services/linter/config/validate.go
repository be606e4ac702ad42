// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their config key rather than the Go field name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Parse decodes and validates a partial config.
//
// Description:
//
//	Accepts YAML or JSON. Unknown keys and type mismatches are reported
//	together with struct rule violations so the user sees every problem at
//	once. Empty input yields an empty Config.
//
// Inputs:
//
//	raw - Config bytes.
//
// Outputs:
//
//	*Config - The decoded config.
//	error   - *ValidationError listing every issue, or ErrMalformed when
//	          the input is not YAML at all.
func Parse(raw []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var issues []Issue
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, msg := range te.Errors {
			issues = append(issues, typeIssue(msg))
		}
	}

	issues = append(issues, structIssues(&cfg)...)
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return &cfg, nil
}

// Validate parses raw config bytes and resolves them with defaults.
func Validate(raw []byte) (*ResolvedConfig, error) {
	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Resolve(cfg), nil
}

// ValidateConfig checks a Config built in code against the same rules as
// Parse.
//
// Returns nil for a nil config.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if issues := structIssues(cfg); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// structIssues runs struct validation and converts failures to issues.
func structIssues(cfg *Config) []Issue {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Problem: err.Error()}}
	}

	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
			Problem: describe(fe),
		})
	}
	return issues
}

// describe turns a validator failure into a readable problem.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must not be empty"
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", strings.ReplaceAll(fe.Param(), " ", ", "), fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// typeIssue converts a yaml.v3 decode message ("line 3: cannot unmarshal
// !!str `x` into int") into an issue keyed by line.
func typeIssue(msg string) Issue {
	if strings.HasPrefix(msg, "line ") {
		if loc, rest, ok := strings.Cut(msg, ": "); ok {
			return Issue{Field: loc, Problem: rest}
		}
	}
	return Issue{Problem: msg}
}
