package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewParsesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("WARN", false, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("expected one JSON line: %v", err)
	}
	if line["message"] != "shown" || line["level"] != "warn" {
		t.Fatalf("unexpected line %v", line)
	}
	if _, ok := line["time"]; !ok {
		t.Fatal("expected timestamp field")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("", true, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Str("identity", "alice").Msg("token issued")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("pretty output must not be JSON: %s", out)
	}
	if !strings.Contains(out, "token issued") || !strings.Contains(out, "alice") {
		t.Fatalf("unexpected pretty output: %s", out)
	}
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", false, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	traced := WithTrace(ctx, logger)
	traced.Info().Msg("traced")
	untraced := WithTrace(context.Background(), logger)
	untraced.Info().Msg("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"trace_id":"0102030405060708090a0b0c0d0e0f10"`) {
		t.Fatalf("trace id missing: %s", lines[0])
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Fatalf("untraced line must not carry trace id: %s", lines[1])
	}
}
