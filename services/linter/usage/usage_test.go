// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLint/services/linter"
)

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	f.points = append(f.points, p...)
	return f.err
}

func sampleSummary() linter.Summary {
	return linter.Summary{
		RunID:            "run-1",
		ErrorCount:       2,
		WarningCount:     1,
		ModelCalls:       4,
		CacheHits:        3,
		PromptTokens:     100,
		CompletionTokens: 20,
		TotalTokens:      120,
		CostUSD:          0.5,
		Executed:         4,
		DurationMs:       1500,
	}
}

func TestPoint(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Point("gpt-4o-mini", sampleSummary(), at)

	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, at, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"run_id": "run-1", "model": "gpt-4o-mini"}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.EqualValues(t, 120, fields["tokens"])
	assert.EqualValues(t, 4, fields["model_calls"])
	assert.EqualValues(t, 3, fields["cache_hits"])
	assert.EqualValues(t, 2, fields["errors"])
	assert.Equal(t, 0.5, fields["cost_usd"])
}

func TestInfluxSink_Record(t *testing.T) {
	w := &fakeWriter{}
	s := &InfluxSink{writer: w, logger: discardLogger(), now: time.Now}

	require.NoError(t, s.Record(context.Background(), "m", sampleSummary()))
	require.Len(t, w.points, 1)

	w.err = errors.New("unavailable")
	err := s.Record(context.Background(), "m", sampleSummary())
	assert.ErrorIs(t, err, w.err)
	s.Close()
}

func TestNewInfluxSink_Validation(t *testing.T) {
	_, err := NewInfluxSink(Config{Token: "t"}, nil)
	assert.ErrorIs(t, err, ErrNoURL)
	_, err = NewInfluxSink(Config{URL: "http://localhost:8086"}, nil)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "http://influx:8086")
	t.Setenv("INFLUXDB_TOKEN", "secret")
	t.Setenv("INFLUXDB_ORG", "")
	t.Setenv("INFLUXDB_BUCKET", "lint")

	cfg := ConfigFromEnv()
	assert.Equal(t, Config{URL: "http://influx:8086", Token: "secret", Org: "aleutian", Bucket: "lint"}, cfg)
}

func TestInfluxSink_WritesLineProtocol(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, path = string(data), r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := NewInfluxSink(Config{URL: srv.URL, Token: "tok", Org: "o", Bucket: "b"}, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), "gpt-4o-mini", sampleSummary()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/v2/write", path)
	assert.Contains(t, body, "ailint_run,")
	assert.Contains(t, body, "run_id=run-1")
	assert.Contains(t, body, "tokens=120i")
	assert.Contains(t, body, "cache_hits=3i")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
