package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"oraback/internal/backup"
	"oraback/internal/logging"
	"oraback/internal/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup FULL|INCREMENTAL",
	Short: "Run an RMAN backup and upload it to object storage",
	Long: `Run a FULL or level 1 INCREMENTAL RMAN backup into a fresh run directory under
TEMP_BACKUP_DIR, upload every piece to the configured bucket and remove the
run directory only when all uploads succeeded. The run log is uploaded and
old logs are pruned on every run.

Examples:
  # Nightly full backup
  oraback backup FULL

  # Show the RMAN script without running it
  oraback backup INCREMENTAL --dry-run`,
	Args: kindArg,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().Bool("dry-run", false, "print the RMAN script and exit")
}

func runBackup(cmd *cobra.Command, args []string) error {
	kind, err := backup.ParseKind(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateBackup(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ts := time.Now()
	stamp := ts.Format(logging.TimestampLayout)

	if mustGetBoolFlag(cmd, "dry-run") {
		req := backup.NewRequest(kind, ts, cfg.TempBackupDir, "")
		script, err := backup.NewOrchestrator(cfg, nil, nil, nil).Script(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run directory: %s\n\n%s\n", req.OutputDir, script.Content())
		return nil
	}

	runLog, err := logging.Open(cfg.LogDir, logging.BackupLogName(kind.String(), stamp), cmd.OutOrStdout(), verbose())
	if err != nil {
		return err
	}
	defer runLog.Close()

	ctx := cmd.Context()
	store, err := storage.New(ctx, cfg.StoreConfig())
	if err != nil {
		runLog.WithError(err).Error("Failed to create storage client")
		return err
	}
	warnCapacity(ctx, store, runLog)

	engine, err := newEngine(cfg, cfg.TempBackupDir, runLog)
	if err != nil {
		runLog.WithError(err).Error("Failed to create engine")
		return err
	}

	req := backup.NewRequest(kind, ts, cfg.TempBackupDir, runLog.Path)
	out := backup.NewOrchestrator(cfg, engine, store, runLog).Run(ctx, req)

	// A failed or partial backup is reported in the log and the uploaded run
	// log; the exit status stays zero.
	if !out.Succeeded() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Backup %s did not complete cleanly, see %s\n", kind, runLog.Path)
	}
	return nil
}
