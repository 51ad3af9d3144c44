package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"oraback/internal/config"
	"oraback/internal/logging"
	"oraback/internal/rman"
	"oraback/internal/storage"
)

// Uploader stores one local file under key. Re-uploading a key overwrites it.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// State is a step of the backup or restore state machine.
type State string

const (
	StateStart              State = "START"
	StateScriptGenerated    State = "SCRIPT_GENERATED"
	StateEngineRan          State = "ENGINE_RAN"
	StateArtifactsCollected State = "ARTIFACTS_COLLECTED"
	StateUploading          State = "UPLOADING"
	StateUploadedAll        State = "UPLOADED_ALL"
	StateUploadPartial      State = "UPLOAD_PARTIAL"
	StateLogsHandled        State = "LOGS_HANDLED"
	StateDone               State = "DONE"

	StateSelected State = "SELECTED"
	StateAborted  State = "ABORTED"
)

// Request describes one backup run. It is not modified once built.
type Request struct {
	Kind      Kind
	Timestamp time.Time
	// OutputDir is the run directory the engine writes pieces into.
	OutputDir string
	// LogPath is this run's own log file.
	LogPath string
}

// NewRequest lays out a run under tempDir: {tempDir}/{timestamp}_run.
func NewRequest(kind Kind, ts time.Time, tempDir, logPath string) Request {
	return Request{
		Kind:      kind,
		Timestamp: ts,
		OutputDir: filepath.Join(tempDir, ts.Format(logging.TimestampLayout)+"_run"),
		LogPath:   logPath,
	}
}

// Outcome records what a backup run did.
type Outcome struct {
	Request Request
	States  []State
	Engine  rman.Result
	// NoArtifacts is set when the engine succeeded without producing files.
	NoArtifacts    bool
	Artifacts      []Artifact
	UploadFailures map[string]error
	RunDirRemoved  bool
	LogUploadErr   error
	Retention      RetentionReport
	RetentionErr   error
}

// Succeeded is true when the engine ran and every artifact, if any, was
// uploaded.
func (o *Outcome) Succeeded() bool {
	return o.Engine.Succeeded && !o.Reached(StateUploadPartial)
}

// Reached reports whether the run passed through s.
func (o *Outcome) Reached(s State) bool { return reached(o.States, s) }

func reached(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func (o *Outcome) enter(s State) { o.States = append(o.States, s) }

// Orchestrator runs backups.
type Orchestrator struct {
	cfg       config.Config
	engine    rman.Engine
	uploader  Uploader
	log       logrus.FieldLogger
	now       func() time.Time
	removeAll func(string) error
}

func NewOrchestrator(cfg config.Config, engine rman.Engine, uploader Uploader, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		engine:    engine,
		uploader:  uploader,
		log:       log,
		now:       time.Now,
		removeAll: os.RemoveAll,
	}
}

// Script composes the engine script for req without running anything.
func (o *Orchestrator) Script(req Request) (rman.Script, error) {
	return rman.ComposeBackup(req.Kind.operation(), req.OutputDir, req.Timestamp)
}

// Run takes req through the backup state machine. It never fails outright:
// every problem is logged and recorded in the Outcome. Local pieces are only
// removed once all of them are stored remotely.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Outcome {
	out := &Outcome{Request: req, UploadFailures: map[string]error{}}
	log := o.log.WithFields(logrus.Fields{"kind": req.Kind, "run_dir": req.OutputDir})
	out.enter(StateStart)
	log.Info("Starting backup")

	if o.runEngine(ctx, req, out, log) {
		o.shipArtifacts(ctx, req, out, log)
	}

	o.handleLogs(ctx, req, out, log)
	out.enter(StateDone)

	if out.Succeeded() {
		log.Info("Backup finished successfully")
	} else {
		log.WithField("failed_uploads", len(out.UploadFailures)).Error("Backup finished with errors")
	}
	return out
}

func (o *Orchestrator) runEngine(ctx context.Context, req Request, out *Outcome, log logrus.FieldLogger) bool {
	script, err := o.Script(req)
	if err != nil {
		out.Engine = rman.Result{ErrorDetail: err.Error()}
		log.WithError(err).Error("Failed to compose backup script")
		return false
	}
	out.enter(StateScriptGenerated)
	log.WithField("tag", script.Tag).Debug("Composed backup script")

	out.Engine = o.engine.Run(ctx, script)
	out.enter(StateEngineRan)
	logEngineResult(log, out.Engine)
	return out.Engine.Succeeded
}

func (o *Orchestrator) shipArtifacts(ctx context.Context, req Request, out *Outcome, log logrus.FieldLogger) {
	artifacts, err := CollectArtifacts(req.OutputDir, req.Kind, o.cfg.Storage.BackupPrefix)
	if errors.Is(err, ErrNoArtifacts) {
		out.NoArtifacts = true
		log.Warn("Engine reported success but produced no backup files; nothing to upload")
		return
	}
	if err != nil {
		// The pieces cannot be listed, so none of them can be confirmed
		// uploaded and the run directory stays.
		out.UploadFailures[req.OutputDir] = err
		out.enter(StateUploadPartial)
		log.WithError(err).Error("Failed to collect backup files")
		return
	}
	out.Artifacts = artifacts
	out.enter(StateArtifactsCollected)
	log.WithField("count", len(artifacts)).Info("Collected backup files")

	out.enter(StateUploading)
	o.uploadAll(ctx, artifacts, out, log)

	if len(out.UploadFailures) > 0 {
		out.enter(StateUploadPartial)
		log.WithField("failed", len(out.UploadFailures)).
			Error("Some backup files failed to upload; keeping local copies for manual recovery")
		return
	}
	out.enter(StateUploadedAll)
	log.Info("All backup files uploaded")

	if err := o.removeAll(req.OutputDir); err != nil {
		log.WithError(err).Error("Failed to remove local backup directory")
		return
	}
	out.RunDirRemoved = true
	log.Info("Removed local backup directory")
}

func (o *Orchestrator) uploadAll(ctx context.Context, artifacts []Artifact, out *Outcome, log logrus.FieldLogger) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(o.cfg.Upload.Concurrency, 1))

	for _, a := range artifacts {
		g.Go(func() error {
			entry := log.WithFields(logrus.Fields{"file": filepath.Base(a.LocalPath), "key": a.RemoteKey})
			if err := o.uploader.Upload(ctx, a.LocalPath, a.RemoteKey); err != nil {
				entry.WithError(err).Error("Upload failed")
				mu.Lock()
				out.UploadFailures[a.RemoteKey] = err
				mu.Unlock()
				return nil
			}
			entry.Info("Uploaded")
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) handleLogs(ctx context.Context, req Request, out *Outcome, log logrus.FieldLogger) {
	if req.LogPath != "" {
		key := storage.LogKey(o.cfg.Storage.LogPrefix, filepath.Base(req.LogPath))
		log.WithField("key", key).Info("Uploading run log")
		if err := o.uploader.Upload(ctx, req.LogPath, key); err != nil {
			out.LogUploadErr = err
			log.WithError(err).Error("Failed to upload run log")
		}
	}

	rm := NewRetentionManager(o.cfg.LogDir, log)
	out.Retention, out.RetentionErr = rm.Apply(o.now(), req.LogPath)
	if out.RetentionErr != nil {
		log.WithError(out.RetentionErr).Error("Log retention failed")
	}
	out.enter(StateLogsHandled)
}

func logEngineResult(log logrus.FieldLogger, res rman.Result) {
	if stdout := strings.TrimSpace(res.Stdout); stdout != "" {
		log.WithField("stream", "stdout").Debug(stdout)
	}
	stderr := strings.TrimSpace(res.Stderr)
	if !res.Succeeded {
		log.WithField("stderr", stderr).Error(res.ErrorDetail)
		return
	}
	if stderr != "" {
		log.WithField("stream", "stderr").Warn(stderr)
	}
	log.Info("Engine finished successfully")
}
