package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"oraback/internal/rman"
)

var testTime = time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC)

// fakeEngine writes files into the script's output directory and returns a
// canned result. after, when set, runs once the files are written.
type fakeEngine struct {
	files   []string
	result  rman.Result
	scripts []rman.Script
	after   func(outputDir string)
}

func (f *fakeEngine) Run(ctx context.Context, script rman.Script) rman.Result {
	f.scripts = append(f.scripts, script)
	if script.OutputDir != "" {
		if err := os.MkdirAll(script.OutputDir, 0o755); err != nil {
			return rman.Result{ErrorDetail: err.Error()}
		}
		for _, name := range f.files {
			os.WriteFile(filepath.Join(script.OutputDir, name), []byte("piece "+name), 0o644)
		}
		if f.after != nil {
			f.after(script.OutputDir)
		}
	}
	return f.result
}

// fakeUploader records uploads and fails keys containing any of failOn.
type fakeUploader struct {
	mu       sync.Mutex
	failOn   []string
	uploaded map[string]string
	attempts []string
}

func newFakeUploader(failOn ...string) *fakeUploader {
	return &fakeUploader{failOn: failOn, uploaded: map[string]string{}}
}

func (f *fakeUploader) Upload(ctx context.Context, localPath, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, key)
	for _, s := range f.failOn {
		if strings.Contains(key, s) {
			return errors.New("simulated upload failure")
		}
	}
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.uploaded[key] = localPath
	return nil
}

func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func writeLog(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("log "+name), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", name, err)
	}
	return path
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func hasEntry(hook *test.Hook, level logrus.Level, substr string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
