package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/philipexavier/proxy-rasa/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler("json", &buf, nil)).Info("dispatch.success", "transport", "model_parse")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output not JSON: %q", buf.String())
	}
	if rec["msg"] != "dispatch.success" || rec["transport"] != "model_parse" {
		t.Fatalf("record: %#v", rec)
	}

	buf.Reset()
	slog.New(NewHandler("text", &buf, nil)).Info("dispatch.success", "transport", "model_parse")
	if !strings.Contains(buf.String(), "msg=dispatch.success transport=model_parse") {
		t.Fatalf("text handler output: %q", buf.String())
	}
}

func TestSetupWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.Defaults()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "proxy.log")
	cfg.LogLevel = "warn"

	logger, closer, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(data), `"msg":"shown"`) {
		t.Errorf("warn record missing: %q", data)
	}
}

func TestSetupDebugForcesLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.Debug = true
	logger, _, err := Setup(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug mode should enable debug records")
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Api-Key", "k")
	h.Set("Cookie", "a=b")
	h.Add("Accept", "application/json")
	h.Add("Accept", "text/plain")

	got := RedactHeaders(h)
	for _, name := range []string{"Authorization", "X-Api-Key", "Cookie"} {
		if got[name] != redacted {
			t.Errorf("%s: got %q", name, got[name])
		}
	}
	if got["Accept"] != "application/json, text/plain" {
		t.Errorf("Accept: got %q", got["Accept"])
	}
}

func TestRedactText(t *testing.T) {
	cases := []struct {
		in      string
		secret  string
		present string
	}{
		{"Authorization: Bearer abc.def-123", "abc.def-123", "Bearer [REDACTED]"},
		{"key sk-ABCDEFGHIJKLMNOP used", "ABCDEFGHIJKLMNOP", "sk-[REDACTED]"},
		{`{"client_secret":"hunter2"}`, "hunter2", `"client_secret":"[REDACTED]"`},
		{"api_key=xyz&x=1", "xyz", "api_key=[REDACTED]&x=1"},
	}
	for _, tc := range cases {
		got := RedactText(tc.in)
		if strings.Contains(got, tc.secret) {
			t.Errorf("RedactText(%q) leaked secret: %q", tc.in, got)
		}
		if !strings.Contains(got, tc.present) {
			t.Errorf("RedactText(%q) = %q, want it to contain %q", tc.in, got, tc.present)
		}
	}
}
