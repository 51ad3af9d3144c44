package rman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Failure classes carried as prefixes of Result.ErrorDetail. Callers branch
// on Result.Succeeded only; the class is there for whoever reads the log.
const (
	ScriptWriteError     = "ScriptWriteError"
	EngineNotFound       = "EngineNotFound"
	EngineExecutionError = "EngineExecutionError"
	UnexpectedError      = "UnexpectedError"
)

// Result is the outcome of a single engine invocation.
type Result struct {
	Succeeded   bool
	Stdout      string
	Stderr      string
	ErrorDetail string
}

// Engine runs a composed script. Implementations never return errors:
// every failure is reported through Result.
type Engine interface {
	Run(ctx context.Context, script Script) Result
}

// Options holds what every engine needs to build its command line.
type Options struct {
	// Binary is the engine executable, "rman" unless overridden.
	Binary string
	// ConnectString is passed as TARGET.
	ConnectString string
	// ScriptDir is where CMDFILE scripts are written. It must be visible
	// to the engine at the same path.
	ScriptDir string
	// OracleSID, when set, is exported as ORACLE_SID.
	OracleSID string
}

func (o Options) binary() string {
	if o.Binary == "" {
		return "rman"
	}
	return o.Binary
}

func (o Options) commandArgs(scriptPath string) []string {
	return []string{"TARGET", o.ConnectString, "NOCATALOG", "CMDFILE=" + scriptPath}
}

func (o Options) env() []string {
	if o.OracleSID == "" {
		return nil
	}
	return []string{"ORACLE_SID=" + o.OracleSID}
}

// prepare writes the script to a scoped temp file and makes sure the
// output directory exists. The returned cleanup must always be called.
func prepare(opts Options, script Script, log logrus.FieldLogger) (string, func(), error) {
	noop := func() {}

	if err := os.MkdirAll(opts.ScriptDir, 0o755); err != nil {
		return "", noop, fmt.Errorf("failed to create script directory: %w", err)
	}

	f, err := os.CreateTemp(opts.ScriptDir, "rman_"+strings.ToLower(string(script.Op))+"_*.rcv")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create script file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithField("file", path).Warnf("Failed to remove temporary RMAN script: %v", err)
			return
		}
		log.WithField("file", path).Debug("Temporary RMAN script removed")
	}

	if _, err := io.WriteString(f, script.Content()); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to close script file: %w", err)
	}
	log.WithField("file", path).Info("RMAN script written")

	if script.OutputDir != "" {
		if err := os.MkdirAll(script.OutputDir, 0o755); err != nil {
			cleanup()
			return "", noop, fmt.Errorf("failed to create output directory: %w", err)
		}
		log.WithField("dir", script.OutputDir).Info("RMAN output directory ensured")
	}

	return path, cleanup, nil
}

func failure(class, format string, args ...any) Result {
	return Result{ErrorDetail: class + ": " + fmt.Sprintf(format, args...)}
}

// LocalEngine executes the engine binary as a child process.
type LocalEngine struct {
	opts Options
	log  logrus.FieldLogger
}

// NewLocalEngine returns an engine running opts.Binary on this host.
func NewLocalEngine(opts Options, log logrus.FieldLogger) *LocalEngine {
	if log == nil {
		log = discardLogger()
	}
	return &LocalEngine{opts: opts, log: log}
}

// Run writes the script, runs the engine to completion and removes the
// script on every path. The context is not used to interrupt the engine
// once started.
func (e *LocalEngine) Run(ctx context.Context, script Script) Result {
	path, cleanup, err := prepare(e.opts, script, e.log)
	defer cleanup()
	if err != nil {
		return failure(ScriptWriteError, "%v", err)
	}

	cmd := exec.Command(e.opts.binary(), e.opts.commandArgs(path)...)
	cmd.Env = append(os.Environ(), e.opts.env()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		res.Succeeded = true
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ErrorDetail = fmt.Sprintf("%s: %s exited with status %d: %s",
			EngineExecutionError, e.opts.binary(), exitErr.ExitCode(), strings.TrimSpace(res.Stderr))
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		res.ErrorDetail = fmt.Sprintf("%s: command %q not found, check that it is in PATH: %v",
			EngineNotFound, e.opts.binary(), err)
	default:
		res.ErrorDetail = fmt.Sprintf("%s: failed to run %s: %v", UnexpectedError, e.opts.binary(), err)
	}
	return res
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
