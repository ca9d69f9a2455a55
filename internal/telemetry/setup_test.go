package telemetry_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/royalcat/fieldgrid/internal/telemetry"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for s, expected := range cases {
		level, err := telemetry.ParseLevel(s)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", s, err)
		}
		if level != expected {
			t.Fatalf("%q: expected %s, got %s", s, expected, level)
		}
	}

	if _, err := telemetry.ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSetupWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_LOGS_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")

	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	ctx := context.Background()
	client, err := telemetry.Setup(ctx, "fieldgrid_test", "", slog.LevelInfo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Flush(ctx); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	client.Shutdown(ctx)
}
