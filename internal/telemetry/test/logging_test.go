// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-media-combinations/internal/telemetry"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := telemetry.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := telemetry.ParseLevel("verbose")
	assert.Error(t, err)
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerUsesCloudLoggingKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := telemetry.NewLogger(buf, slog.LevelInfo)

	logger.Debug("dropped")
	logger.Warn("slow probe", "locator", "https://a/1.mp4")
	logger.WithGroup("task").Info("stored", "level", 3)

	entries := lines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARNING", entries[0]["severity"])
	assert.Equal(t, "slow probe", entries[0]["message"])
	assert.Contains(t, entries[0], "timestamp")
	assert.Equal(t, "https://a/1.mp4", entries[0]["locator"])

	assert.Equal(t, "INFO", entries[1]["severity"])
	assert.Equal(t, map[string]any{"level": float64(3)}, entries[1]["task"])
}

func TestLoggerAddsTraceCorrelation(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := telemetry.NewLogger(buf, slog.LevelInfo).With("service", "media-combinations")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	logger.InfoContext(ctx, "task complete")
	logger.Info("no span")

	entries := lines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0]["logging.googleapis.com/trace"])
	assert.Equal(t, "00f067aa0ba902b7", entries[0]["logging.googleapis.com/spanId"])
	assert.Equal(t, true, entries[0]["logging.googleapis.com/trace_sampled"])
	assert.Equal(t, "media-combinations", entries[0]["service"])
	assert.NotContains(t, entries[1], "logging.googleapis.com/trace")
}

func TestSetupLoggingWritesFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	logFile := filepath.Join(t.TempDir(), "service.log")
	closer, err := telemetry.SetupLogging("debug", logFile)
	require.NoError(t, err)
	slog.Debug("written to file")
	require.NoError(t, closer())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"written to file"`)

	_, err = telemetry.SetupLogging("loud", "")
	assert.Error(t, err)
}

func TestSetupOpenTelemetryDisabled(t *testing.T) {
	shutdown, err := telemetry.SetupOpenTelemetry(context.Background(), "media-combinations", "", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
