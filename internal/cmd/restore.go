package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"oraback/internal/backup"
	"oraback/internal/logging"
)

var errRestoreDeclined = errors.New("restore cancelled by operator")

var restoreCmd = &cobra.Command{
	Use:   "restore FULL|INCREMENTAL",
	Short: "Restore the database from the newest backup generation",
	Long: `Scan RESTORE_SOURCE_DIR for run directories, pick the newest FULL backup and,
for INCREMENTAL, the newest incremental on top of it, then run an RMAN
restore and recover. The database is shut down during the restore.

If INCREMENTAL is requested but no incremental backup exists, the restore
falls back to FULL only. Without any FULL backup nothing is run.

Examples:
  # Preview the selection and RMAN script
  oraback restore INCREMENTAL --dry-run

  # Unattended restore
  oraback restore FULL --yes`,
	Args: kindArg,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().Bool("dry-run", false, "print the selected backups and RMAN script and exit")
	restoreCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

func runRestore(cmd *cobra.Command, args []string) error {
	kind, err := backup.ParseKind(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRestore(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if mustGetBoolFlag(cmd, "dry-run") {
		sel, script, err := backup.NewRestorer(cfg, nil, nil).Plan(kind)
		if err != nil {
			return err
		}
		printSelection(cmd, sel)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", script.Content())
		return nil
	}

	if !mustGetBoolFlag(cmd, "yes") {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Restore %s will shut down the database at %s. Continue?", kind, cfg.Engine.ConnectString),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !confirmed {
			return errRestoreDeclined
		}
	}

	stamp := time.Now().Format(logging.TimestampLayout)
	runLog, err := logging.Open(cfg.LogDir, logging.RestoreLogName(stamp), cmd.OutOrStdout(), verbose())
	if err != nil {
		return err
	}
	defer runLog.Close()

	engine, err := newEngine(cfg, cfg.RestoreSourceDir, runLog)
	if err != nil {
		runLog.WithError(err).Error("Failed to create engine")
		return err
	}

	out, err := backup.NewRestorer(cfg, engine, runLog).Run(cmd.Context(), kind)
	if err != nil {
		return err
	}
	if !out.Succeeded() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Restore did not complete cleanly, see %s\n", runLog.Path)
	}
	return nil
}

func printSelection(cmd *cobra.Command, sel backup.Selection) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "FULL:        %s\n", sel.Full.Path)
	if sel.Incremental != nil {
		fmt.Fprintf(w, "INCREMENTAL: %s\n", sel.Incremental.Path)
	}
	if sel.Downgraded {
		fmt.Fprintln(w, "No INCREMENTAL backup found; restoring from FULL only")
	}
	fmt.Fprintf(w, "Effective:   %s\n", sel.EffectiveKind)
}
