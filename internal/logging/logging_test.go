package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		log, err := newWithOutput(config.LoggingConfig{Level: tt.level}, &bytes.Buffer{})
		if (err != nil) != tt.wantErr {
			t.Errorf("level %q: err = %v, wantErr %v", tt.level, err, tt.wantErr)
			continue
		}
		if err == nil && log.GetLevel() != tt.want {
			t.Errorf("level %q: got %v, want %v", tt.level, log.GetLevel(), tt.want)
		}
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := newWithOutput(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithOutput(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newWithOutput: %v", err)
	}
	log.WithField("symbol", "BTCUSDT").Info("price fetched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["symbol"] != "BTCUSDT" || entry["msg"] != "price fetched" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "cryptoverlay.log")

	log, err := newWithOutput(config.LoggingConfig{Level: "info", Format: "text", File: path}, &buf)
	if err != nil {
		t.Fatalf("newWithOutput: %v", err)
	}
	log.Info("hello file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing entry: %q", data)
	}
	if !strings.Contains(buf.String(), "hello file") {
		t.Errorf("stdout missing entry: %q", buf.String())
	}
}

func TestNewSkipsUnopenableFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	// The parent "directory" is a regular file, so MkdirAll fails.
	log, err := newWithOutput(config.LoggingConfig{File: filepath.Join(blocker, "app.log")}, &buf)
	if err != nil {
		t.Fatalf("unopenable file should not be fatal: %v", err)
	}
	if !strings.Contains(buf.String(), "log file disabled") {
		t.Errorf("expected warning, got %q", buf.String())
	}
	log.Info("still logging")
	if !strings.Contains(buf.String(), "still logging") {
		t.Errorf("stdout logging broken: %q", buf.String())
	}
}
