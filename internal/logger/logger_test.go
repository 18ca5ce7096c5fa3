package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"pettracker/internal/config"
)

func newFileLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{LogDirectory: dir, LogMaxSizeMB: 1, LogMaxBackups: 2, LogMaxAgeDays: 1}

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	return l, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestLogger_WritesEachLevelToItsFile(t *testing.T) {
	l, dir := newFileLogger(t)

	l.Info("camera %s started", "kitchen")
	l.Warning("queue %d%% full", 90)
	l.Error("decoder failed: %v", "boom")
	l.Debug("not written to files")
	l.Sync()

	info := readFile(t, filepath.Join(dir, InfoFile))
	warning := readFile(t, filepath.Join(dir, WarningFile))
	errorLog := readFile(t, filepath.Join(dir, ErrorFile))

	if !strings.Contains(info, "camera kitchen started") {
		t.Errorf("info.log missing entry: %q", info)
	}
	if strings.Contains(info, "queue") || strings.Contains(info, "decoder failed") {
		t.Errorf("info.log contains other levels: %q", info)
	}
	if !strings.Contains(warning, "queue 90% full") {
		t.Errorf("warning.log missing entry: %q", warning)
	}
	if !strings.Contains(errorLog, "decoder failed: boom") {
		t.Errorf("error.log missing entry: %q", errorLog)
	}
	for _, content := range []string{info, warning, errorLog} {
		if strings.Contains(content, "not written to files") {
			t.Errorf("debug entry leaked into a level file: %q", content)
		}
	}
}

func TestLogger_NamedAndWith(t *testing.T) {
	l, dir := newFileLogger(t)

	l.Named("stream").With("camera", "porch").Info("reader started")
	l.Sync()

	info := readFile(t, filepath.Join(dir, InfoFile))
	if !strings.Contains(info, `"logger":"stream"`) {
		t.Errorf("expected logger name in entry: %q", info)
	}
	if !strings.Contains(info, `"camera":"porch"`) {
		t.Errorf("expected camera field in entry: %q", info)
	}
}

func TestLogger_LogFileAndRotate(t *testing.T) {
	l, dir := newFileLogger(t)
	l.Warning("before rotation")

	path, err := l.LogFile("warning")
	if err != nil {
		t.Fatalf("LogFile returned error: %v", err)
	}
	if path != filepath.Join(dir, WarningFile) {
		t.Errorf("LogFile = %q", path)
	}

	if err := l.RotateLogs("warning"); err != nil {
		t.Fatalf("RotateLogs returned error: %v", err)
	}
	l.Sync()

	if content := readFile(t, path); strings.Contains(content, "before rotation") {
		t.Errorf("rotated file still contains old entries: %q", content)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read log dir: %v", err)
	}
	backups := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "warning-") {
			backups++
		}
	}
	if backups != 1 {
		t.Errorf("expected one warning backup, found %d", backups)
	}
}

func TestLogger_UnknownLevel(t *testing.T) {
	l, _ := newFileLogger(t)
	if _, err := l.LogFile("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := l.RotateLogs("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogger_WrappedHasNoFiles(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	l.Info("hello %s", "test")

	if _, err := l.LogFile("info"); err == nil {
		t.Error("expected error for logger without directory")
	}
	if err := l.RotateLogs("info"); err == nil {
		t.Error("expected error for logger without files")
	}
}
