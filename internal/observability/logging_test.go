package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithBuildID(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-123")

	if lc := GetContext(ctx); lc.BuildID != "build-123" {
		t.Errorf("expected build-123, got %s", lc.BuildID)
	}
}

func TestContextLayering(t *testing.T) {
	ctx := WithBuildID(context.Background(), "b1")
	ctx = WithStage(ctx, "scan")
	ctx = WithMode(ctx, "watch")
	inner := WithStage(ctx, "assemble")

	if lc := GetContext(ctx); lc.Stage != "scan" {
		t.Errorf("outer stage changed: %s", lc.Stage)
	}
	lc := GetContext(inner)
	if lc.BuildID != "b1" || lc.Stage != "assemble" || lc.Mode != "watch" {
		t.Errorf("unexpected inner context: %+v", lc)
	}
}

func TestInfoContextIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(NewLogger(&buf, slog.LevelDebug, "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithStage(WithBuildID(context.Background(), "b42"), "emit")
	InfoContext(ctx, "chunk written", slog.String("module_id", "is/a"))

	out := buf.String()
	for _, want := range []string{"build.id=b42", "stage=emit", "module_id=is/a", "chunk written"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
