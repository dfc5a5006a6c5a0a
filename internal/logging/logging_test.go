package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"owondump/internal/config"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    logrus.Level
	}{
		{level: "", want: logrus.InfoLevel},
		{level: "warn", want: logrus.WarnLevel},
		{level: "warn", verbose: true, want: logrus.DebugLevel},
		{level: "error", want: logrus.ErrorLevel},
	}
	for _, tc := range tests {
		log, err := newLogger(config.LoggingConfig{Level: tc.level}, tc.verbose, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("newLogger(%q): %v", tc.level, err)
		}
		if log.GetLevel() != tc.want {
			t.Errorf("level %q verbose %v: got %v, want %v", tc.level, tc.verbose, log.GetLevel(), tc.want)
		}
	}
	if _, err := New(config.LoggingConfig{Level: "loud"}, false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "owondump.log")
	var console bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1}, false, &console)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	log.WithField("bytes", 84).Info("payload received")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	for name, got := range map[string]string{"file": string(data), "console": console.String()} {
		if !strings.Contains(got, "payload received") || !strings.Contains(got, "bytes=84") {
			t.Errorf("%s output missing entry: %q", name, got)
		}
	}
}
