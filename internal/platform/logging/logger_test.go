package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"
)

func TestLogger_WritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(LevelInfo, &buf).Named("ledger")

	logger.Warn("persist picks failed", "league", "NFL", "error", errors.New("disk full"))

	var line map[string]any
	if err := sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("unmarshal log line: %v (raw=%q)", err, buf.String())
	}
	if line["level"] != "WARN" {
		t.Fatalf("unexpected level: %v", line["level"])
	}
	if line["component"] != "ledger" {
		t.Fatalf("unexpected component: %v", line["component"])
	}
	if line["league"] != "NFL" {
		t.Fatalf("unexpected league field: %v", line["league"])
	}
	if line["error"] != "disk full" {
		t.Fatalf("unexpected error field: %v", line["error"])
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(LevelWarn, &buf)

	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}

	logger.Error("kept", "odd")
	if !strings.Contains(buf.String(), `"odd":null`) {
		t.Fatalf("expected dangling key to be logged as null, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%s want %s", raw, got, want)
		}
	}
}
