package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"oraback/internal/config"
	"oraback/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup pieces and logs in object storage",
	Long: `List objects in the configured bucket under a prefix, newest first.

Examples:
  # Latest full backup pieces
  oraback list --prefix oracle_backup/full/

  # Uploaded run logs as JSON
  oraback list --prefix oracle_logs/ --output json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().String("prefix", "", "object key prefix (default: the configured backup prefix)")
	listCmd.Flags().Int("limit", 100, "maximum number of objects to list")
	listCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(mustGetStringFlag(cmd, "output"))
	switch format {
	case "table", "json", "yaml", "yml":
	default:
		return fmt.Errorf("invalid --output %q (must be table, json or yaml)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := storage.New(cmd.Context(), cfg.StoreConfig())
	if err != nil {
		return err
	}

	limit := mustGetIntFlag(cmd, "limit")
	if limit <= 0 {
		limit = 100
	}
	objs, err := store.List(cmd.Context(), listPrefix(mustGetStringFlag(cmd, "prefix"), cfg), limit)
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}
	return writeObjects(cmd.OutOrStdout(), objs, format)
}

// listPrefix prefers an explicit --prefix over the configured backup prefix.
func listPrefix(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Storage.BackupPrefix
}

func writeObjects(w io.Writer, objs []storage.ObjectInfo, format string) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(objs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal objects to JSON: %w", err)
		}
		fmt.Fprintln(w, string(b))
		return nil
	case "yaml", "yml":
		b, err := yaml.Marshal(objs)
		if err != nil {
			return fmt.Errorf("failed to marshal objects to YAML: %w", err)
		}
		fmt.Fprint(w, string(b))
		return nil
	}

	if len(objs) == 0 {
		fmt.Fprintln(w, "No objects found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tLAST MODIFIED")
	for _, o := range objs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
	}
	return tw.Flush()
}
