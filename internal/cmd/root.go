package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "oraback",
		Short: "Oracle RMAN backup and restore orchestrator",
		Long: `oraback runs RMAN backups and restores. Backups are shipped to an S3 or MinIO
bucket and local copies are only removed once every piece is stored remotely.
Run logs are kept in LOG_DIR and pruned to the latest FULL log plus today's
INCREMENTAL logs.`,
		Version: "1.0.0",
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Load .env before flags are registered so defaults derived from the
	// environment see it. An explicit --env wins over ./.env.
	if envPath := findEnvArg(os.Args); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading env file %s: %v\n", envPath, err)
		}
	} else if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("env", "", "path to .env file to load (overrides ./.env)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output, including engine stdout at debug level")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(connCmd)
}

// initConfig reads ENV variables; the YAML file is decoded by config.Load.
func initConfig() {
	viper.AutomaticEnv()
	if cfgFile != "" && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
	}
}
