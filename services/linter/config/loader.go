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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# ailint configuration.
#
# files, ignores, guidelineFiles and ruleFiles are globs relative to this
# file's directory. "**" matches any number of directories.
#
# rules maps a rule name to off, warn or error. Rules not listed use the
# level declared in their rule document.
`

// Load reads and parses one config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Source = path
			return nil, verr
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadAll loads config files and merges them in order; later files win.
func LoadAll(paths ...string) (*Config, error) {
	var merged *Config
	for _, p := range paths {
		cfg, err := Load(p)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, cfg)
	}
	if merged == nil {
		merged = &Config{}
	}
	return merged, nil
}

// Write validates cfg and writes it as commented YAML.
//
// Refuses to overwrite an existing file with ErrConfigExists.
func Write(path string, cfg *Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal the config: %w", err)
	}
	return os.WriteFile(path, append([]byte(fileHeader+"\n"), data...), 0644)
}

// WriteDefault writes DefaultConfig to path.
func WriteDefault(path string) error {
	return Write(path, DefaultConfig())
}
