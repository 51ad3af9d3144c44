package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oraback/internal/backup"
	"oraback/internal/config"
	"oraback/internal/rman"
	"oraback/internal/storage"
)

// findEnvArg scans argv for --env so the file can be loaded before flag
// parsing.
func findEnvArg(argv []string) string {
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if strings.HasPrefix(a, "--env=") {
			return strings.TrimPrefix(a, "--env=")
		}
		if a == "--env" && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

// mustGetStringFlag gets a string flag value from a cobra command
func mustGetStringFlag(cmd *cobra.Command, name string) string {
	val, _ := cmd.Flags().GetString(name)
	return val
}

// mustGetBoolFlag gets a boolean flag value from a cobra command
func mustGetBoolFlag(cmd *cobra.Command, name string) bool {
	val, _ := cmd.Flags().GetBool(name)
	return val
}

// mustGetIntFlag gets an int flag value from a cobra command
func mustGetIntFlag(cmd *cobra.Command, name string) int {
	val, _ := cmd.Flags().GetInt(name)
	return val
}

// kindArg accepts exactly one FULL or INCREMENTAL argument.
func kindArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return fmt.Errorf("backup kind is required: %w", err)
	}
	_, err := backup.ParseKind(args[0])
	return err
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func verbose() bool {
	return viper.GetBool("verbose")
}

// newEngine runs RMAN locally, or with docker exec when a container is
// configured.
func newEngine(cfg config.Config, scriptDir string, log logrus.FieldLogger) (rman.Engine, error) {
	opts := cfg.EngineOptions(scriptDir)
	if cfg.Engine.Container != "" {
		return rman.NewDockerEngine(opts, cfg.Engine.Container, log)
	}
	return rman.NewLocalEngine(opts, log), nil
}

// warnCapacity logs a warning when a MinIO store is close to full. It never
// stops the backup.
func warnCapacity(ctx context.Context, store storage.Store, log logrus.FieldLogger) {
	m, ok := store.(*storage.MinioStore)
	if !ok {
		return
	}
	usage, err := m.CheckCapacity(ctx)
	if err != nil {
		log.WithError(err).WithField("usage_percent", fmt.Sprintf("%.1f", usage)).Warn("Storage capacity check")
		return
	}
	if usage > 0 {
		log.WithField("usage_percent", fmt.Sprintf("%.1f", usage)).Debug("Storage capacity OK")
	}
}
