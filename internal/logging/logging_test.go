package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_WritesFileAndConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	rl, err := Open(dir, BackupLogName("FULL", "20261016_010203"), &console, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rl.WithField("kind", "FULL").Info("starting backup")
	rl.Debug("hidden at info level")
	if err := rl.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if want := filepath.Join(dir, "backup_log_FULL_20261016_010203.log"); rl.Path != want {
		t.Errorf("expected path %s, got %s", want, rl.Path)
	}

	data, err := os.ReadFile(rl.Path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	for _, out := range []string{string(data), console.String()} {
		if !strings.Contains(out, "starting backup") || !strings.Contains(out, "kind=FULL") {
			t.Errorf("log output missing entry: %q", out)
		}
		if strings.Contains(out, "hidden at info level") {
			t.Errorf("debug entry should be filtered: %q", out)
		}
	}
}

func TestOpen_Verbose(t *testing.T) {
	rl, err := Open(t.TempDir(), RestoreLogName("20261016_010203"), nil, true)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rl.Close()
	rl.Debug("engine stdout")

	data, _ := os.ReadFile(rl.Path)
	if !strings.Contains(string(data), "engine stdout") {
		t.Errorf("verbose logger should keep debug entries, got %q", data)
	}
	if filepath.Base(rl.Path) != "restore_log_20261016_010203.log" {
		t.Errorf("unexpected restore log name %s", rl.Path)
	}
}
