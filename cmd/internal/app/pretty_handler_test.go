package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "post", "path", "/auth/login", "status", 401, "result", "client_error")

	out := buf.String()
	for _, want := range []string{"msg=http.request", "method=POST", "path=/auth/login", "status=401", "result=client_error", "[INFO]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colorless handler must not emit ANSI codes: %q", out)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn level")
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := newPrettyHandler(&buf, nil, false)
	log := slog.New(base).With("service", "gatehouse").WithGroup("db")

	log.Info("pool.ready", "conns", 4)

	out := buf.String()
	if !strings.Contains(out, "service=gatehouse") {
		t.Fatalf("missing carried attr: %q", out)
	}
	if !strings.Contains(out, "db.conns=4") {
		t.Fatalf("missing grouped attr: %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	if got := quoteIfNeeded("plain"); got != "plain" {
		t.Fatalf("quoteIfNeeded(plain)=%q", got)
	}
	if got := quoteIfNeeded("two words"); got != `"two words"` {
		t.Fatalf("quoteIfNeeded(two words)=%q", got)
	}
	if got := quoteIfNeeded(""); got != `""` {
		t.Fatalf("quoteIfNeeded(empty)=%q", got)
	}
}

func TestLevelTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "[DEBUG]"},
		{slog.LevelInfo, "[INFO]"},
		{slog.LevelWarn, "[WARN]"},
		{slog.LevelError, "[ERROR]"},
	}
	for _, tc := range cases {
		if got := levelTag(tc.level, false); got != tc.want {
			t.Fatalf("levelTag(%v)=%q want=%q", tc.level, got, tc.want)
		}
	}
}
