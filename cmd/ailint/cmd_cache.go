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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLint/pkg/ux"
	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
)

func newCacheCmd(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	var cacheDir string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := &config.Config{}
			if cmd.Flags().Changed("cache-dir") {
				flags.LinterOptions = &config.LinterOptions{CacheDir: config.String(cacheDir)}
			}
			cfg, _, err := a.loadConfig(flags)
			if err != nil {
				return err
			}
			logger := a.setupLogger(a.debug)
			defer logger.Close()

			ctx := cmd.Context()
			// A disabled store cannot be cleared.
			cfg.Options.NoCache = false
			store, err := a.openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer store.Close()

			if err := cache.Clear(ctx, store); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			ux.NewPrinter(a.stdout).Success(fmt.Sprintf("cleared %s", cfg.Options.CacheDir))
			return nil
		},
	}
	clearCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory or gs://bucket/prefix")

	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}
