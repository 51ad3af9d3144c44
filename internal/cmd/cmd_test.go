package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"oraback/internal/storage"
)

func TestFindEnvArg(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"oraback", "backup", "FULL", "--env", "/etc/oraback.env"}, "/etc/oraback.env"},
		{[]string{"oraback", "--env=prod.env", "list"}, "prod.env"},
		{[]string{"oraback", "backup", "FULL", "--env"}, ""},
		{[]string{"oraback", "conn"}, ""},
	}
	for _, tt := range tests {
		if got := findEnvArg(tt.argv); got != tt.want {
			t.Errorf("findEnvArg(%v) = %q, want %q", tt.argv, got, tt.want)
		}
	}
}

func TestKindArg(t *testing.T) {
	if err := kindArg(backupCmd, []string{"incremental"}); err != nil {
		t.Errorf("expected lower-case kind to be accepted: %v", err)
	}
	for _, args := range [][]string{nil, {"FULL", "INCREMENTAL"}, {"ARCHIVE"}} {
		if err := kindArg(backupCmd, args); err == nil {
			t.Errorf("expected %v to be rejected", args)
		}
	}
}

func TestWriteObjects(t *testing.T) {
	objs := []storage.ObjectInfo{{
		Key:          "oracle_backup/full/db_backup_FULL_01",
		Size:         1024,
		LastModified: time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	if err := writeObjects(&buf, objs, "table"); err != nil {
		t.Fatalf("table output failed: %v", err)
	}
	if !strings.Contains(buf.String(), "KEY") || !strings.Contains(buf.String(), "2026-10-16T01:00:00Z") {
		t.Errorf("unexpected table output:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeObjects(&buf, objs, "json"); err != nil {
		t.Fatalf("json output failed: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded[0]["key"] != objs[0].Key {
		t.Errorf("unexpected json output %q (err %v)", buf.String(), err)
	}

	buf.Reset()
	if err := writeObjects(&buf, objs, "yaml"); err != nil {
		t.Fatalf("yaml output failed: %v", err)
	}
	var fromYAML []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil || fromYAML[0]["size"] != 1024 {
		t.Errorf("unexpected yaml output %q (err %v)", buf.String(), err)
	}

	buf.Reset()
	writeObjects(&buf, nil, "table")
	if !strings.Contains(buf.String(), "No objects found") {
		t.Errorf("expected empty notice, got %q", buf.String())
	}
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBackupDryRun(t *testing.T) {
	base := t.TempDir()
	t.Setenv("LOG_DIR", filepath.Join(base, "logs"))
	t.Setenv("TEMP_BACKUP_DIR", filepath.Join(base, "tmp"))
	t.Setenv("RMAN_TARGET_CONNECT_STRING", "/")
	t.Setenv("S3_BUCKET_NAME", "db-backups")

	out, err := executeRoot(t, "backup", "full", "--dry-run")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(out, "BACKUP DATABASE FORMAT '"+filepath.Join(base, "tmp")) {
		t.Errorf("expected the FULL backup script, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(base, "logs")); !os.IsNotExist(err) {
		t.Errorf("dry run must not create the log directory")
	}
}

func TestBackupRejectsInvalidKind(t *testing.T) {
	if _, err := executeRoot(t, "backup", "DIFFERENTIAL"); err == nil {
		t.Errorf("expected an invalid kind to fail")
	}
	if _, err := executeRoot(t, "restore"); err == nil {
		t.Errorf("expected a missing kind to fail")
	}
}

func TestRestoreDryRun(t *testing.T) {
	base := t.TempDir()
	run := filepath.Join(base, "restore", "20261015_010000_run")
	os.MkdirAll(run, 0o755)
	os.WriteFile(filepath.Join(run, "db_backup_FULL_0c2d"), []byte("x"), 0o644)
	t.Setenv("LOG_DIR", filepath.Join(base, "logs"))
	t.Setenv("RESTORE_SOURCE_DIR", filepath.Join(base, "restore"))
	t.Setenv("RMAN_TARGET_CONNECT_STRING", "/")

	out, err := executeRoot(t, "restore", "INCREMENTAL", "--dry-run")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	for _, want := range []string{run, "restoring from FULL only", "RESTORE DATABASE;"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRestoreDryRunWithoutFull(t *testing.T) {
	base := t.TempDir()
	t.Setenv("LOG_DIR", filepath.Join(base, "logs"))
	t.Setenv("RESTORE_SOURCE_DIR", filepath.Join(base, "empty"))
	t.Setenv("RMAN_TARGET_CONNECT_STRING", "/")

	if _, err := executeRoot(t, "restore", "FULL", "--dry-run"); err == nil {
		t.Errorf("expected restore without a FULL backup to fail")
	}
}

func TestListPrefixFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oraback.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backup_prefix: prod/oracle/\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("S3_BACKUP_PREFIX", "")
	old := cfgFile
	cfgFile = path
	defer func() { cfgFile = old }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if got := listPrefix("", cfg); got != "prod/oracle/" {
		t.Errorf("expected the configured prefix, got %q", got)
	}
	if got := listPrefix("oracle_logs/", cfg); got != "oracle_logs/" {
		t.Errorf("an explicit --prefix should win, got %q", got)
	}
	if def := listCmd.Flags().Lookup("prefix").DefValue; def != "" {
		t.Errorf("--prefix should default to empty, got %q", def)
	}
}
