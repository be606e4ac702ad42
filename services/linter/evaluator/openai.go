// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/time/rate"
)

const (
	// DefaultChunkSize is the file size in characters above which content
	// is split and evaluated per chunk.
	DefaultChunkSize = 24000

	// secretPath is where container runtimes mount the API key secret.
	secretPath = "/run/secrets/openai_api_key"
)

// chatClient is the subset of *openai.Client used here.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI evaluator.
type OpenAIConfig struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// ChunkSize is the character count above which files are split.
	// Zero uses DefaultChunkSize.
	ChunkSize int

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Zero means 1.
	Burst int

	// Logger for request diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// OpenAIConfigFromEnv reads the API key and base URL from the environment.
//
// Description:
//
//	The key comes from OPENAI_API_KEY, falling back to the mounted secret
//	at /run/secrets/openai_api_key. OPENAI_BASE_URL overrides the
//	endpoint.
func OpenAIConfigFromEnv() OpenAIConfig {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		if data, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(data))
			slog.Debug("read the OpenAI API key from the secrets mount")
		}
	}
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
}

// OpenAI evaluates rules with an OpenAI-compatible chat completion API.
//
// Thread Safety: Safe for concurrent use.
type OpenAI struct {
	client    chatClient
	splitter  textsplitter.RecursiveCharacter
	chunkSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewOpenAI creates an OpenAI evaluator.
//
// Outputs:
//
//	*OpenAI - The evaluator.
//	error   - ErrMissingAPIKey when cfg.APIKey is empty.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newOpenAI(client chatClient, cfg OpenAIConfig) *OpenAI {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &OpenAI{
		client: client,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
		chunkSize: chunkSize,
		limiter:   limiter,
		logger:    logger,
	}
}

// Evaluate checks req.File against req.Rule.
//
// Description:
//
//	Files longer than the chunk size are split on blank lines, then lines,
//	and each chunk is evaluated separately; chunk evaluations are merged.
//	The evaluation is provider-cached only if every chunk was.
//
// Inputs:
//
//	ctx - Context for cancellation. Honoured by the rate limiter and HTTP
//	      client.
//	req - The evaluation request.
//
// Outputs:
//
//	*Evaluation - Violations, usage and cost.
//	error       - *EvaluationError wrapping the provider or parse failure.
func (o *OpenAI) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	chunks := []string{req.File.Content}
	if len(req.File.Content) > o.chunkSize {
		split, err := o.splitter.SplitText(req.File.Content)
		if err != nil {
			return nil, o.wrap(req, fmt.Errorf("splitting file: %w", err))
		}
		if len(split) > 0 {
			chunks = split
		}
		o.logger.Debug("evaluating file in chunks",
			slog.String("file", req.File.DisplayName),
			slog.Int("chunks", len(chunks)))
	}

	out := &Evaluation{ProviderCached: true, Calls: len(chunks)}
	for i, chunk := range chunks {
		ev, err := o.evaluateChunk(ctx, req, chunk, i+1, len(chunks))
		if err != nil {
			return nil, o.wrap(req, err)
		}
		out.Errors = append(out.Errors, ev.Errors...)
		if ev.Message != "" {
			out.Message = ev.Message
		}
		out.Usage = out.Usage.Add(ev.Usage)
		out.ProviderCached = out.ProviderCached && ev.ProviderCached
	}
	return out, nil
}

func (o *OpenAI) evaluateChunk(ctx context.Context, req Request, content string, part, parts int) (*Evaluation, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req, content, part, parts)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: float32(req.Temperature),
	}
	// A zero temperature would be dropped by omitempty and default to 1.
	if req.Temperature == 0 {
		chatReq.Temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	o.logger.Debug("received response from OpenAI",
		slog.String("rule", req.Rule.Name),
		slog.String("file", req.File.DisplayName),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)))

	errs, message, err := parseAnswer(req, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	cached := 0
	if resp.Usage.PromptTokensDetails != nil {
		cached = resp.Usage.PromptTokensDetails.CachedTokens
	}
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CachedTokens:     cached,
		CostMicros:       CostMicros(req.Model, resp.Usage.PromptTokens, cached, resp.Usage.CompletionTokens),
	}

	return &Evaluation{
		Errors:         errs,
		Message:        message,
		Usage:          usage,
		ProviderCached: usage.PromptTokens > 0 && usage.CachedTokens >= usage.PromptTokens,
	}, nil
}

func (o *OpenAI) wrap(req Request, err error) error {
	return &EvaluationError{
		Model: req.Model,
		Rule:  req.Rule.Name,
		File:  req.File.DisplayName,
		Err:   err,
	}
}
