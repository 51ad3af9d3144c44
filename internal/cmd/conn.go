package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"oraback/internal/storage"
)

var connCmd = &cobra.Command{
	Use:   "conn",
	Short: "Test the object storage connection",
	Long: `Connect to the configured bucket and perform a write/read/delete round trip.
For MinIO the current storage usage is reported as well.`,
	Args: cobra.NoArgs,
	RunE: runConn,
}

func runConn(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	w := cmd.OutOrStdout()
	sc := cfg.StoreConfig()
	fmt.Fprintf(w, "Testing %s connection...\n", sc.Provider)
	if sc.Endpoint != "" {
		fmt.Fprintf(w, "Endpoint: %s\n", sc.Endpoint)
	}
	fmt.Fprintf(w, "Bucket: %s\n", sc.Bucket)
	fmt.Fprintf(w, "Use SSL: %v\n\n", sc.UseSSL)

	store, err := storage.New(cmd.Context(), sc)
	if err != nil {
		return err
	}
	if err := store.Test(cmd.Context()); err != nil {
		return fmt.Errorf("%s connection test failed: %w", sc.Provider, err)
	}
	fmt.Fprintln(w, "✓ Connection test successful!")

	m, ok := store.(*storage.MinioStore)
	if !ok {
		return nil
	}
	usage, err := m.Usage(cmd.Context())
	if err != nil {
		fmt.Fprintf(w, "⚠ Could not read storage usage: %v\n", err)
		return nil
	}
	fmt.Fprintf(w, "Storage usage: %.1f%% (warning threshold %.1f%%)\n", usage, sc.CapacityThreshold)
	return nil
}
