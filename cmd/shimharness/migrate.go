package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sipeed/shimharness/pkg/config"
	"github.com/sipeed/shimharness/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy journaled runs into another storage backend",
	Long: `Copy every run from the configured storage into the destination given
by --to-type and --to-path or --to-url. Existing runs with the same id are
replaced.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("to-type", "", "Destination storage type (file, sqlite, postgres)")
	migrateCmd.Flags().String("to-path", "", "Destination directory (file) or database file (sqlite)")
	migrateCmd.Flags().String("to-url", "", "Destination connection string (postgres)")
	migrateCmd.Flags().Bool("to-ssl", false, "Require SSL for a postgres destination")
	_ = migrateCmd.MarkFlagRequired("to-type")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dest := config.StorageConfig{}
	dest.Type, _ = cmd.Flags().GetString("to-type")
	dest.FilePath, _ = cmd.Flags().GetString("to-path")
	dest.DatabaseURL, _ = cmd.Flags().GetString("to-url")
	dest.SSLEnabled, _ = cmd.Flags().GetBool("to-ssl")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔄 Run journal migration")
	fmt.Fprintln(out, "========================")
	fmt.Fprintf(out, "📁 Source: %s\n", cfg.Storage.Type)
	fmt.Fprintf(out, "📁 Destination: %s\n", dest.Type)
	fmt.Fprintln(out)

	if cfg.Storage.Type == "" {
		return fmt.Errorf("no source storage configured")
	}
	if dest.Type == "" {
		return fmt.Errorf("--to-type is empty")
	}

	fmt.Fprintf(out, "🔌 Connecting to source (%s)...\n", cfg.Storage.Type)
	source, err := openStorage(cmd, cfg.Storage)
	if err != nil {
		return err
	}
	defer source.Close()

	fmt.Fprintf(out, "🔌 Connecting to destination (%s)...\n", dest.Type)
	target, err := openStorage(cmd, dest)
	if err != nil {
		return err
	}
	defer target.Close()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "📦 Migrating runs...")
	n, err := migrateRuns(cmd.Context(), out, source, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Migrated %d runs\n", n)
	return nil
}

func migrateRuns(ctx context.Context, out io.Writer, source, dest storage.Storage) (int, error) {
	infos, err := source.Runs().List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	fmt.Fprintf(out, "   Found %d runs\n", len(infos))
	for i, info := range infos {
		fmt.Fprintf(out, "   [%d/%d] %s %s\n", i+1, len(infos), info.ID, info.Scenario)

		run, err := source.Runs().Get(ctx, info.ID)
		if err != nil {
			return i, fmt.Errorf("failed to get run %s: %w", info.ID, err)
		}
		if err := dest.Runs().Save(ctx, run); err != nil {
			return i, fmt.Errorf("failed to save run %s: %w", info.ID, err)
		}
	}
	return len(infos), nil
}
