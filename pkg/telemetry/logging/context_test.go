package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetModel(ctx) != "" {
		t.Fatal("empty context should yield empty values")
	}

	ctx = WithRequestID(ctx, "req-9")
	ctx = WithModel(ctx, "gpt-4o")
	if GetRequestID(ctx) != "req-9" {
		t.Errorf("GetRequestID = %q", GetRequestID(ctx))
	}
	if GetModel(ctx) != "gpt-4o" {
		t.Errorf("GetModel = %q", GetModel(ctx))
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	if got := FromContext(context.Background(), base); got != base {
		t.Error("no context fields should return the same logger")
	}

	ctx := WithRequestID(context.Background(), "req-7")
	FromContext(ctx, base).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-7") {
		t.Errorf("output = %s", buf.String())
	}

	if FromContext(ctx, nil) == nil {
		t.Error("nil logger should fall back to slog.Default()")
	}
}
