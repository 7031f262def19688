package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewLoggerWithWriter(LoggingConfig{Level: level, Format: "json"}, buf)
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info").
		NewComponentLogger("watcher").
		WithSource("cerberus.toml").
		WithSnapshotID("snap-1").
		WithError(errors.New("boom"))

	logger.Warn("reload 3 failed")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]string{
		"level":       "warn",
		"component":   "watcher",
		"source":      "cerberus.toml",
		"snapshot_id": "snap-1",
		"error":       "boom",
		"message":     "reload 3 failed",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %q", k, line[k], v)
		}
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "warn")

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("messages below the level were written: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("error message missing: %s", buf.String())
	}
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info").WithField("request", "r1")

	ctx := logger.WithContext(context.Background())
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to a default logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("nonsense") != parseLogLevel("info") {
		t.Error("unknown levels should default to info")
	}
	if parseLogLevel("trace") >= parseLogLevel("debug") {
		t.Error("trace should be below debug")
	}
}
