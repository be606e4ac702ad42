// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLint/pkg/ux"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
)

// exampleRule is written next to a new config so the first run has
// something to check.
const exampleRule = `# Example rules

## no-debug-output
level: warn

Remove debugging output such as console.log or fmt.Println before committing.

### Bad

` + "```js\nconsole.log(user)\n```" + `

### Good

` + "```js\nlogger.debug({ user })\n```" + `
`

// initAnswers are the values collected by the init form.
type initAnswers struct {
	files       string
	ruleDir     string
	model       string
	concurrency string
	cacheDir    string
	example     bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		files:       "src/**/*",
		ruleDir:     ".ailint/rules",
		model:       config.DefaultModel,
		concurrency: strconv.Itoa(config.DefaultConcurrency),
		cacheDir:    config.DefaultCacheDir,
		example:     true,
	}
}

func newInitCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a starter .ailint.yaml (or the path given by --config).

On a terminal a short form asks for the files to lint, the rule directory
and the model. Without a terminal, or with --yes, defaults are written.
An example rule document is created unless one already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers := defaultAnswers()
			if !yes && ux.IsTerminal(os.Stdin) && ux.IsTerminal(os.Stdout) {
				if err := runInitForm(&answers); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return &exitError{code: ExitUsage}
					}
					return err
				}
			}
			return a.writeInit(answers)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func runInitForm(ans *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Files to lint").
				Description("Comma-separated globs relative to the config file").
				Value(&ans.files).
				Validate(notBlank),
			huh.NewInput().
				Title("Rule directory").
				Value(&ans.ruleDir).
				Validate(notBlank),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model").
				Options(huh.NewOptions("gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1")...).
				Value(&ans.model),
			huh.NewInput().
				Title("Concurrent model calls").
				Value(&ans.concurrency).
				Validate(positiveInt),
			huh.NewInput().
				Title("Cache directory").
				Description("A local directory or gs://bucket/prefix").
				Value(&ans.cacheDir).
				Validate(notBlank),
			huh.NewConfirm().
				Title("Create an example rule?").
				Value(&ans.example),
		),
	)
	return form.Run()
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errors.New("must be a positive whole number")
	}
	return nil
}

// buildInitConfig turns form answers into a config.
func buildInitConfig(ans initAnswers) (*config.Config, error) {
	if err := positiveInt(ans.concurrency); err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	concurrency, _ := strconv.Atoi(strings.TrimSpace(ans.concurrency))

	cfg := config.DefaultConfig()
	cfg.Files = splitList(ans.files)
	cfg.RuleFiles = []string{strings.TrimSuffix(filepath.ToSlash(strings.TrimSpace(ans.ruleDir)), "/") + "/*.md"}
	cfg.LinterOptions.Model = config.String(ans.model)
	cfg.LinterOptions.Concurrency = config.Int(concurrency)
	cfg.LinterOptions.CacheDir = config.String(strings.TrimSpace(ans.cacheDir))
	return cfg, nil
}

func (a *app) writeInit(ans initAnswers) error {
	cfg, err := buildInitConfig(ans)
	if err != nil {
		return err
	}
	if err := config.Write(a.configPath, cfg); err != nil {
		return err
	}

	p := ux.NewPrinter(a.stdout)
	p.Success(fmt.Sprintf("wrote %s", a.configPath))

	if ans.example {
		dir := filepath.Join(filepath.Dir(a.configPath), filepath.FromSlash(strings.TrimSpace(ans.ruleDir)))
		path := filepath.Join(dir, "example.md")
		if _, err := os.Stat(path); err == nil {
			p.Muted(fmt.Sprintf("%s already exists, leaving it alone", path))
			return nil
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating rule directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(exampleRule), 0644); err != nil {
			return fmt.Errorf("writing example rule: %w", err)
		}
		p.Success(fmt.Sprintf("wrote %s", path))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
