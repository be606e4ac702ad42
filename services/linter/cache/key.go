// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// Key is the hex SHA-256 fingerprint of one (file, rule, model) evaluation.
type Key string

// String returns the key as a string.
func (k Key) String() string { return string(k) }

// Short returns the first 12 hex characters, for logs.
func (k Key) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

// Params are the model parameters that influence an evaluation.
type Params struct {
	Model       string
	Temperature float64
	Guidelines  string
}

// The fingerprint structs fix field order so the JSON encoding is
// canonical. Only inputs that can change the model's answer participate.
type keyFile struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

type keyRule struct {
	Name        string   `json:"name"`
	Message     string   `json:"message"`
	Description string   `json:"description"`
	Good        []string `json:"good"`
	Bad         []string `json:"bad"`
}

type keyModel struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Guidelines  string  `json:"guidelines"`
}

type keyMaterial struct {
	File  keyFile  `json:"file"`
	Rule  keyRule  `json:"rule"`
	Model keyModel `json:"model"`
}

// NewKey computes the cache key for evaluating rule against file.
//
// Description:
//
//	Encodes file content and language, the rule's name, message,
//	description and examples, and the model parameters as canonical JSON
//	and hashes the encoding with SHA-256. The file's path, the rule's
//	fixability, source and level are excluded, so renaming a file or
//	changing a rule's severity reuses prior evaluations.
//
// Inputs:
//
//	file   - The file being linted.
//	rule   - The rule being checked.
//	params - Model parameters.
//
// Outputs:
//
//	Key   - 64 hex characters. Equal inputs always yield equal keys.
//	error - Non-nil only if encoding fails.
func NewKey(file rules.InputFile, rule rules.Rule, params Params) (Key, error) {
	material := keyMaterial{
		File: keyFile{
			Content:  file.Content,
			Language: file.Language,
		},
		Rule: keyRule{
			Name:        rule.Name,
			Message:     rule.Message,
			Description: rule.Description,
			Good:        nonNil(rule.Good),
			Bad:         nonNil(rule.Bad),
		},
		Model: keyModel{
			Model:       params.Model,
			Temperature: params.Temperature,
			Guidelines:  params.Guidelines,
		},
	}

	data, err := json.Marshal(material)
	if err != nil {
		return "", fmt.Errorf("encoding cache key material: %w", err)
	}

	sum := sha256.Sum256(data)
	return Key(hex.EncodeToString(sum[:])), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
