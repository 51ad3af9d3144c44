package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"oraback/internal/config"
	"oraback/internal/rman"
)

// RestoreOutcome records what a restore run did.
type RestoreOutcome struct {
	Requested Kind
	Selection Selection
	States    []State
	Engine    rman.Result
}

// Succeeded is true when the engine ran the restore script cleanly.
func (o *RestoreOutcome) Succeeded() bool {
	return o.Engine.Succeeded
}

// Reached reports whether the run passed through s.
func (o *RestoreOutcome) Reached(s State) bool { return reached(o.States, s) }

func (o *RestoreOutcome) enter(s State) { o.States = append(o.States, s) }

// Restorer runs restores from the run directories under RestoreSourceDir.
type Restorer struct {
	cfg    config.Config
	engine rman.Engine
	log    logrus.FieldLogger
}

func NewRestorer(cfg config.Config, engine rman.Engine, log logrus.FieldLogger) *Restorer {
	return &Restorer{cfg: cfg, engine: engine, log: log}
}

// Plan selects the generations for kind and composes the restore script
// without running it.
func (r *Restorer) Plan(kind Kind) (Selection, rman.Script, error) {
	sel, err := SelectGenerations(r.cfg.RestoreSourceDir, kind)
	if err != nil {
		return Selection{}, rman.Script{}, err
	}
	incr := ""
	if sel.Incremental != nil {
		incr = sel.Incremental.Path
	}
	script, err := rman.ComposeRestore(sel.Full.Path, incr)
	if err != nil {
		return sel, rman.Script{}, err
	}
	return sel, script, nil
}

// Run restores the newest FULL generation and, for INCREMENTAL, the newest
// incremental on top of it. The only error returned is a failed selection;
// an engine failure is recorded in the outcome.
func (r *Restorer) Run(ctx context.Context, kind Kind) (*RestoreOutcome, error) {
	out := &RestoreOutcome{Requested: kind}
	out.enter(StateStart)
	log := r.log.WithFields(logrus.Fields{"kind": kind, "source": r.cfg.RestoreSourceDir})
	log.Info("Starting restore")

	sel, script, err := r.Plan(kind)
	if err != nil {
		out.enter(StateAborted)
		if errors.Is(err, ErrNoFullGeneration) {
			log.WithError(err).Error("No FULL backup available; aborting restore")
		} else {
			log.WithError(err).Error("Failed to prepare restore")
		}
		return out, fmt.Errorf("restore aborted: %w", err)
	}
	out.Selection = sel
	out.enter(StateSelected)
	logSelection(log, sel)
	out.enter(StateScriptGenerated)

	out.Engine = r.engine.Run(ctx, script)
	out.enter(StateEngineRan)
	logEngineResult(log, out.Engine)

	out.enter(StateDone)
	if out.Succeeded() {
		log.WithField("effective_kind", sel.EffectiveKind).Info("Restore finished successfully")
	} else {
		log.Error("Restore failed")
	}
	return out, nil
}

func logSelection(log logrus.FieldLogger, sel Selection) {
	log.WithField("path", sel.Full.Path).Info("Selected FULL backup")
	if sel.Incremental != nil {
		log.WithField("path", sel.Incremental.Path).Info("Selected INCREMENTAL backup")
	}
	if sel.Downgraded {
		log.Warn("No INCREMENTAL backup found; restoring from FULL only")
	}
}
