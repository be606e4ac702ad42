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
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLint/services/linter/result"
	"github.com/AleutianAI/AleutianLint/services/linter/rules"
)

// fakeChat returns canned responses and records requests.
type fakeChat struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	reply    func(req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(req)
}

func answer(content string, prompt, cached, completion int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:        prompt,
			CompletionTokens:    completion,
			TotalTokens:         prompt + completion,
			PromptTokensDetails: &openai.PromptTokensDetails{CachedTokens: cached},
		},
	}
}

func request() Request {
	return Request{
		File:  rules.NewInputFile("src/app.ts", "console.log(user)\n"),
		Rule:  rules.Rule{Name: "no-console", Message: "Use the logger", Bad: []string{"console.log(x)"}},
		Model: "gpt-4o-mini",
	}
}

func TestOpenAI_Evaluate(t *testing.T) {
	fake := &fakeChat{reply: func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return answer(`{"violations":[{"code":"console.log(user)","confidence":"HIGH"},{"code":"  "}],"message":"found one"}`, 1000, 0, 100), nil
	}}
	ev := newOpenAI(fake, OpenAIConfig{})

	got, err := ev.Evaluate(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, got.Errors, 1)
	assert.Equal(t, result.LintError{
		File:       "src/app.ts",
		Language:   "typescript",
		Rule:       "no-console",
		Code:       "console.log(user)",
		Confidence: result.ConfidenceHigh,
	}, got.Errors[0])
	assert.Equal(t, "found one", got.Message)
	assert.False(t, got.ProviderCached)
	assert.Equal(t, 1100, got.Usage.TotalTokens)
	// 1000 * 150 + 100 * 600 = 210000 milli-micros
	assert.Equal(t, int64(210), got.Usage.CostMicros)

	require.Len(t, fake.requests, 1)
	sent := fake.requests[0]
	assert.Equal(t, "gpt-4o-mini", sent.Model)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, sent.ResponseFormat.Type)
	assert.Greater(t, sent.Temperature, float32(0))
	assert.Contains(t, sent.Messages[1].Content, "# Rule: no-console")
	assert.Contains(t, sent.Messages[1].Content, "console.log(x)")

	frag := got.Result()
	assert.Equal(t, 1, frag.ModelCalls)
	assert.Zero(t, frag.CacheHits)
}

func TestOpenAI_ProviderCached(t *testing.T) {
	fake := &fakeChat{reply: func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return answer(`{"violations":[]}`, 500, 500, 5), nil
	}}
	got, err := newOpenAI(fake, OpenAIConfig{}).Evaluate(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, got.ProviderCached)
	frag := got.Result()
	assert.Equal(t, 1, frag.CacheHits)
	assert.Zero(t, frag.ModelCalls)
	assert.Equal(t, 505, frag.TotalTokens)
}

func TestOpenAI_Chunks(t *testing.T) {
	var calls int
	fake := &fakeChat{reply: func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		calls++
		return answer(`{"violations":[{"code":"x","confidence":"low"}]}`, 10, 0, 1), nil
	}}
	ev := newOpenAI(fake, OpenAIConfig{ChunkSize: 40})

	req := request()
	req.File = rules.NewInputFile("big.go", strings.Repeat("line of go code\n", 20))

	got, err := ev.Evaluate(context.Background(), req)
	require.NoError(t, err)

	assert.Greater(t, calls, 1)
	assert.Len(t, got.Errors, calls)
	assert.Equal(t, 10*calls, got.Usage.PromptTokens)
	assert.Contains(t, fake.requests[0].Messages[1].Content, "part 1 of")

	assert.Equal(t, calls, got.Calls)
	frag := got.Result()
	assert.Equal(t, calls, frag.ModelCalls)
	assert.Zero(t, frag.CacheHits)
}

func TestEvaluation_ResultCountsAtLeastOneCall(t *testing.T) {
	assert.Equal(t, 1, (&Evaluation{}).Result().ModelCalls)
	assert.Equal(t, 3, (&Evaluation{Calls: 3}).Result().ModelCalls)
	assert.Equal(t, 2, (&Evaluation{Calls: 2, ProviderCached: true}).Result().CacheHits)
}

func TestOpenAI_Errors(t *testing.T) {
	boom := errors.New("503")

	tests := []struct {
		name  string
		reply func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
		want  error
	}{
		{"provider failure", func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, boom
		}, boom},
		{"no choices", func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		}, ErrEmptyResponse},
		{"not json", func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return answer("I think it is fine", 1, 0, 1), nil
		}, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOpenAI(&fakeChat{reply: tt.reply}, OpenAIConfig{}).Evaluate(context.Background(), request())

			var eerr *EvaluationError
			require.True(t, errors.As(err, &eerr))
			assert.Equal(t, "no-console", eerr.Rule)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestOpenAI_RateLimiterHonoursContext(t *testing.T) {
	fake := &fakeChat{reply: func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return answer(`{}`, 1, 0, 1), nil
	}}
	ev := newOpenAI(fake, OpenAIConfig{RequestsPerSecond: 0.001})

	_, err := ev.Evaluate(context.Background(), request())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ev.Evaluate(ctx, request())
	assert.Error(t, err)
	assert.Len(t, fake.requests, 1)
}

func TestNewOpenAI_MissingKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestParseAnswer(t *testing.T) {
	req := request()

	errs, msg, err := parseAnswer(req, "```json\n{\"errors\":[{\"code\":\"a\"}],\"message\":\" ok \"}\n```")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, result.ConfidenceMedium, errs[0].Confidence)
	assert.Equal(t, "ok", msg)
}

func TestCostMicros(t *testing.T) {
	assert.Equal(t, int64(0), CostMicros("mystery-model", 1000, 0, 1000))
	// dated snapshot resolves to gpt-4o-mini, not gpt-4o
	assert.Equal(t, int64(150), CostMicros("gpt-4o-mini-2024-07-18", 1000, 0, 0))
	// cached tokens at half price
	assert.Equal(t, int64(75), CostMicros("gpt-4o-mini", 1000, 1000, 0))
	// cached never exceeds prompt
	assert.Equal(t, int64(75), CostMicros("gpt-4o-mini", 1000, 5000, 0))
}

func TestFunc(t *testing.T) {
	var e Evaluator = Func(func(_ context.Context, req Request) (*Evaluation, error) {
		return &Evaluation{Message: req.Rule.Name}, nil
	})
	got, err := e.Evaluate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "no-console", got.Message)
}
