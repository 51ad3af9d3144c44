package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// makeRuns creates one run directory per entry; the value is the backup
// file placed in it, or "" for an empty directory.
func makeRuns(t *testing.T, runs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for dir, file := range runs {
		path := filepath.Join(root, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
		if file != "" {
			os.WriteFile(filepath.Join(path, file), []byte("x"), 0o644)
		}
	}
	return root
}

func TestSelectGenerations(t *testing.T) {
	root := makeRuns(t, map[string]string{
		"20261016_010000_run": "db_backup_INCREMENTAL_0a1b",
		"20261015_010000_run": "db_backup_FULL_0c2d",
		"20261014_010000_run": "db_backup_FULL_0e3f",
	})
	r3 := filepath.Join(root, "20261016_010000_run")
	r2 := filepath.Join(root, "20261015_010000_run")

	tests := []struct {
		name     string
		kind     Kind
		wantFull string
		wantIncr string
		want     Kind
	}{
		{"full request", KindFull, r2, "", KindFull},
		{"incremental request", KindIncremental, r2, r3, KindIncremental},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectGenerations(root, tt.kind)
			if err != nil {
				t.Fatalf("SelectGenerations failed: %v", err)
			}
			if sel.Full.Path != tt.wantFull || sel.Full.Kind != KindFull {
				t.Errorf("expected FULL %s, got %+v", tt.wantFull, sel.Full)
			}
			gotIncr := ""
			if sel.Incremental != nil {
				gotIncr = sel.Incremental.Path
			}
			if gotIncr != tt.wantIncr {
				t.Errorf("expected INCREMENTAL %q, got %q", tt.wantIncr, gotIncr)
			}
			if sel.EffectiveKind != tt.want || sel.Downgraded {
				t.Errorf("unexpected effective kind %s (downgraded=%v)", sel.EffectiveKind, sel.Downgraded)
			}
		})
	}
}

func TestSelectGenerations_IncrementalScanIsIndependent(t *testing.T) {
	// The newest incremental may be older than the newest FULL.
	root := makeRuns(t, map[string]string{
		"20261016_010000_run": "db_backup_FULL_aa",
		"20261015_010000_run": "db_backup_INCREMENTAL_bb",
	})
	sel, err := SelectGenerations(root, KindIncremental)
	if err != nil {
		t.Fatalf("SelectGenerations failed: %v", err)
	}
	if sel.Incremental == nil || filepath.Base(sel.Incremental.Path) != "20261015_010000_run" {
		t.Errorf("unexpected incremental %+v", sel.Incremental)
	}
}

func TestSelectGenerations_Downgrade(t *testing.T) {
	root := makeRuns(t, map[string]string{
		"20261015_010000_run": "db_backup_FULL_0c2d",
		"20261016_010000_run": "",
	})
	sel, err := SelectGenerations(root, KindIncremental)
	if err != nil {
		t.Fatalf("SelectGenerations failed: %v", err)
	}
	if !sel.Downgraded || sel.EffectiveKind != KindFull || sel.Incremental != nil {
		t.Errorf("expected a downgrade to FULL, got %+v", sel)
	}
}

func TestSelectGenerations_NoFull(t *testing.T) {
	root := makeRuns(t, map[string]string{
		"20261016_010000_run": "db_backup_INCREMENTAL_0a1b",
		"20261015_010000_run": "archivelog_0c2d",
	})
	// A FULL-looking file directly under the root is not a run directory.
	os.WriteFile(filepath.Join(root, "db_backup_FULL_stray"), []byte("x"), 0o644)

	for _, kind := range []Kind{KindFull, KindIncremental} {
		if _, err := SelectGenerations(root, kind); !errors.Is(err, ErrNoFullGeneration) {
			t.Errorf("%s: expected ErrNoFullGeneration, got %v", kind, err)
		}
	}
	if _, err := SelectGenerations(filepath.Join(root, "missing"), KindFull); !errors.Is(err, ErrNoFullGeneration) {
		t.Errorf("missing root: expected ErrNoFullGeneration, got %v", err)
	}
}

func TestSelectGenerations_CaseInsensitiveMarker(t *testing.T) {
	root := makeRuns(t, map[string]string{
		"20261015_010000_run": "DB_Backup_Full_0c2d.bkp",
	})
	sel, err := SelectGenerations(root, KindFull)
	if err != nil {
		t.Fatalf("SelectGenerations failed: %v", err)
	}
	if filepath.Base(sel.Full.Path) != "20261015_010000_run" {
		t.Errorf("unexpected selection %+v", sel.Full)
	}
}
