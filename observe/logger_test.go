package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_WithRouteFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithRoute(RouteMeta{
		Method:  "GET",
		Path:    "/docs/7",
		TraceID: "req-1",
		Guard:   "auth",
	})

	logger.Info(context.Background(), "hello", Field{Key: "status", Value: 200})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	want := map[string]any{
		"msg":         "hello",
		"level":       "info",
		"http.method": "GET",
		"http.path":   "/docs/7",
		"trace_id":    "req-1",
		"guard":       "auth",
		"status":      float64(200),
	}
	for k, v := range want {
		if lines[0][k] != v {
			t.Errorf("%s = %v, want %v", k, lines[0][k], v)
		}
	}
	ts, _ := lines[0]["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339Nano: %v", ts, err)
	}
}

func TestLogger_WithRouteDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	_ = base.WithRoute(RouteMeta{Method: "POST"})

	base.Info(context.Background(), "plain")

	lines := decodeLines(t, &buf)
	if _, ok := lines[0]["http.method"]; ok {
		t.Error("route fields leaked into the parent logger")
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "creds",
		Field{Key: "Authorization", Value: "Bearer abc"},
		Field{Key: "cookie", Value: "sid=1"},
		Field{Key: "Set-Cookie", Value: "sid=2"},
		Field{Key: "password", Value: "hunter2"},
		Field{Key: "body", Value: map[string]any{"email": "a@b.c"}},
		Field{Key: "path", Value: "/login"},
	)

	line := decodeLines(t, &buf)[0]
	for _, k := range []string{"Authorization", "cookie", "Set-Cookie", "password", "body"} {
		if line[k] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", k, line[k])
		}
	}
	if line["path"] != "/login" {
		t.Errorf("path = %v, want /login", line["path"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("secret value written to log")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()
			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			lines := decodeLines(t, &buf)
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(lines), len(tt.want))
			}
			for i, l := range lines {
				if l["level"] != tt.want[i] {
					t.Errorf("line %d level = %v, want %s", i, l["level"], tt.want[i])
				}
			}
		})
	}
}

func TestLogger_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base.WithRoute(RouteMeta{Method: "GET"}).Info(context.Background(), "x")
		}()
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 20 {
		t.Errorf("got %d lines, want 20", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
}
