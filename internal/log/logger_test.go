package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentCache, Output: &buf})
	logger.Info("hello", FieldCacheKey, "k")

	out := buf.String()
	if !strings.Contains(out, "component=cache") || !strings.Contains(out, "cache_key=k") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentQueue).Info("again")
	if strings.Count(buf.String(), "component=") != 1 || !strings.Contains(buf.String(), "component=offline_queue") {
		t.Fatalf("expected a single replaced component, got: %s", buf.String())
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})
	logger.Info("hello")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"component":"app"`) {
		t.Fatalf("expected JSON record, got: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard()
	ctx := IntoContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithOperation(OpReplay).WithMutation("m1", "transaction.create").WithError(errors.New("boom")).WithError(nil)
	if f[FieldOperation] != OpReplay || f[FieldMutationID] != "m1" || f[FieldError] != "boom" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("expected key/value pairs")
	}
}
