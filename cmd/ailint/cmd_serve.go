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
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
	"github.com/AleutianAI/AleutianLint/services/linter/server"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
	"github.com/AleutianAI/AleutianLint/services/linter/usage"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		influxURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the linter over HTTP",
		Long: `Serve POST /v1/lint, GET /v1/health and GET /metrics.

Requests carry their files and rules in the JSON body and start from the
configuration in --config. Guideline files from the config are loaded once
at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), port, influxURL)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&influxURL, "influx-url", "", "Export request usage to InfluxDB at this URL")
	return cmd
}

func (a *app) runServe(ctx context.Context, port int, influxURL string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	cfg, root, err := a.loadConfig(&config.Config{})
	if err != nil {
		return err
	}
	logger := a.setupLogger(a.debug || cfg.Options.Debug)
	defer logger.Close()
	if !cfg.Options.Debug && !a.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown, err := a.setupTelemetry(ctx, telemetry.ModeServe, cfg.Options.Model)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	ev, err := a.newEvaluator(cfg, logger.Slog())
	if err != nil {
		return err
	}

	guidelines, err := rules.LoadGuidelines(root, cfg.GuidelineFiles)
	if err != nil {
		return fmt.Errorf("loading guidelines: %w", err)
	}

	opts := []server.Option{
		server.WithStore(store),
		server.WithGuidelines(guidelines),
		server.WithLogger(logger.Slog()),
	}
	if influxURL != "" {
		ucfg := usage.ConfigFromEnv()
		ucfg.URL = influxURL
		sink, err := usage.NewInfluxSink(ucfg, logger.Slog())
		if err != nil {
			return fmt.Errorf("usage export: %w", err)
		}
		defer sink.Close()
		opts = append(opts, server.WithUsageRecorder(sink))
	}

	srv, err := server.New(cfg, ev, opts...)
	if err != nil {
		return err
	}
	logger.Info("starting server", slog.Int("port", port), slog.String("model", cfg.Options.Model))
	return srv.Run(ctx, ":"+strconv.Itoa(port))
}
