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
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	lf := &lintFlags{}

	rootCmd := &cobra.Command{
		Use:   "ailint [paths...]",
		Short: "Check source files against natural-language rules with an LLM",
		Long: `ailint checks every configured file against every rule written in
markdown, asking a language model for violations. Verdicts are cached by
file content, rule text and model settings, so unchanged pairs are free
on the next run.

Configuration is read from .ailint.yaml; flags override it.

Examples:
  ailint                         # lint files matched by the config
  ailint src/api                 # lint only files under src/api
  ailint --format json           # machine-readable output
  ailint --early-exit --no-cache # stop at the first error, skip the cache
  ailint --watch                 # re-run on every change`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLint(cmd, args, lf)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", a.configPath, "Path to the config file")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress log output on stderr")
	pf.StringVar(&a.logDir, "log-dir", "", "Also write JSON logs to this directory")
	pf.StringVar(&a.traceExporter, "trace-exporter", "", "Trace exporter: none, stdout or otlp (default $OTEL_TRACES_EXPORTER)")
	pf.StringVar(&a.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file after the run")

	f := rootCmd.Flags()
	f.IntVar(&lf.concurrency, "concurrency", 0, "Maximum concurrent model calls")
	f.StringVar(&lf.model, "model", "", "Model identifier")
	f.Float64Var(&lf.temperature, "temperature", 0, "Sampling temperature (0-2)")
	f.BoolVar(&lf.noCache, "no-cache", false, "Neither read nor write the result cache")
	f.StringVar(&lf.cacheDir, "cache-dir", "", "Cache directory or gs://bucket/prefix")
	f.BoolVar(&lf.earlyExit, "early-exit", false, "Stop scheduling checks after the first error")
	f.BoolVar(&lf.noInlineConfig, "no-inline-config", false, "Ignore ailint-disable and ailint-config comments")
	f.StringVar(&lf.format, "format", "text", "Output format: text or json")
	f.BoolVarP(&lf.watch, "watch", "w", false, "Re-run when files change")
	f.StringVar(&lf.influxURL, "influx-url", "", "Export run usage to InfluxDB at this URL (token from $INFLUXDB_TOKEN)")

	rootCmd.AddCommand(newInitCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newCacheCmd(a))
	return rootCmd
}
