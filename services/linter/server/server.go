// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the linter over HTTP for "ailint serve".
//
// Routes:
//
//	GET  /v1/health  liveness and the configured model
//	POST /v1/lint    lint files sent in the request body
//	GET  /metrics    Prometheus exposition
//
// Files and rules travel inline in the JSON body; the server never reads
// the filesystem on behalf of a request. Results share the server's cache
// store, so repeated requests for unchanged content are free.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianLint/services/linter"
	"github.com/AleutianAI/AleutianLint/services/linter/cache"
	"github.com/AleutianAI/AleutianLint/services/linter/config"
	"github.com/AleutianAI/AleutianLint/services/linter/evaluator"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
	"github.com/AleutianAI/AleutianLint/services/linter/telemetry"
)

// ErrInvalidInput indicates invalid constructor arguments.
var ErrInvalidInput = errors.New("invalid input")

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// UsageRecorder receives the summary of every completed request.
type UsageRecorder interface {
	Record(ctx context.Context, model string, sum linter.Summary) error
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the cache store shared by all requests.
func WithStore(store cache.Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithGuidelines sets guideline text used when a request sends none.
func WithGuidelines(text string) Option {
	return func(s *Server) {
		s.guidelines = text
	}
}

// WithUsageRecorder records usage for every lint request.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(s *Server) {
		s.usage = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server serves lint requests.
//
// Thread Safety: Safe for concurrent use. Each request builds its own
// Linter over the shared store and evaluator.
type Server struct {
	base       *config.ResolvedConfig
	evaluator  evaluator.Evaluator
	store      cache.Store
	guidelines string
	usage      UsageRecorder
	logger     *slog.Logger
}

// New creates a Server. base is the configuration every request starts
// from; a request may override parts of it.
func New(base *config.ResolvedConfig, ev evaluator.Evaluator, opts ...Option) (*Server, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: config must not be nil", ErrInvalidInput)
	}
	if ev == nil {
		return nil, fmt.Errorf("%w: evaluator must not be nil", ErrInvalidInput)
	}

	s := &Server{
		base:      base,
		evaluator: ev,
		store:     cache.Disabled(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the gin engine with tracing middleware and all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ailint"))

	router.GET("/metrics", gin.WrapH(metricsHandler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/lint", s.handleLint)
	}
	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func metricsHandler() http.Handler {
	if h := telemetry.MetricsHandler(); h != nil {
		return h
	}
	return promhttp.Handler()
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"model":  s.base.Options.Model,
	})
}

func (s *Server) handleLint(c *gin.Context) {
	var req LintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	if err := config.ValidateConfig(req.Config); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config", "issues": verr.Issues})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := s.base.Apply(req.Config)

	rs, err := req.ruleSet()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rules", "detail": err.Error()})
		return
	}
	if len(rs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one rule is required"})
		return
	}

	guidelines := s.guidelines
	if req.Guidelines != "" {
		guidelines = req.Guidelines
	}

	l, err := linter.New(cfg,
		linter.WithEvaluator(s.evaluator),
		linter.WithStore(s.store),
		linter.WithGuidelines(guidelines),
		linter.WithLogger(s.logger),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	report, err := l.Run(ctx, req.inputFiles(), rs)
	if err != nil {
		s.logger.Warn("lint request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	sum := report.Summary()
	if s.usage != nil {
		if err := s.usage.Record(ctx, cfg.Options.Model, sum); err != nil {
			s.logger.Warn("usage export failed",
				slog.String("run_id", sum.RunID),
				slog.String("error", err.Error()),
			)
		}
	}
	c.JSON(http.StatusOK, sum)
}

// =============================================================================
// Request Types
// =============================================================================

// LintRequest is the body of POST /v1/lint.
type LintRequest struct {
	// Files are the files to lint. At least one is required.
	Files []FilePayload `json:"files" binding:"required,min=1,dive"`

	// Rules are structured rule definitions.
	Rules []RulePayload `json:"rules" binding:"omitempty,dive"`

	// RulesMarkdown is a rule document in the same format as rule files.
	RulesMarkdown string `json:"rules_markdown"`

	// Guidelines replaces the server's guideline text when set.
	Guidelines string `json:"guidelines"`

	// Config is a partial config applied over the server's config.
	Config *config.Config `json:"config"`
}

// FilePayload is one file sent for linting.
type FilePayload struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// RulePayload is one structured rule.
type RulePayload struct {
	Name        string   `json:"name" binding:"required"`
	Message     string   `json:"message" binding:"required"`
	Description string   `json:"description"`
	Good        []string `json:"good"`
	Bad         []string `json:"bad"`
	Level       string   `json:"level" binding:"omitempty,oneof=warn error"`
}

func (r *LintRequest) inputFiles() []rules.InputFile {
	out := make([]rules.InputFile, len(r.Files))
	for i, f := range r.Files {
		out[i] = rules.NewInputFile(f.Path, f.Content)
	}
	return out
}

func (r *LintRequest) ruleSet() ([]rules.Rule, error) {
	var out []rules.Rule
	seen := make(map[string]bool)

	if r.RulesMarkdown != "" {
		parsed, err := rules.ParseRuleDocument("request", []byte(r.RulesMarkdown))
		if err != nil {
			return nil, err
		}
		for _, rule := range parsed {
			seen[rule.Name] = true
		}
		out = append(out, parsed...)
	}

	for _, p := range r.Rules {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate rule %q", p.Name)
		}
		seen[p.Name] = true
		level := rules.LevelError
		if p.Level != "" {
			level = rules.ParseLevel(p.Level)
		}
		out = append(out, rules.Rule{
			Name:        p.Name,
			Message:     p.Message,
			Description: p.Description,
			Good:        p.Good,
			Bad:         p.Bad,
			Source:      "request",
			Level:       level,
		})
	}
	return out, nil
}
