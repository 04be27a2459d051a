package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/shimharness/pkg/config"
	"github.com/sipeed/shimharness/pkg/logger"
	"github.com/sipeed/shimharness/pkg/storage"
)

// errScenariosFailed makes the process exit 1 without printing usage.
var errScenariosFailed = errors.New("one or more scenarios did not pass")

var rootCmd = &cobra.Command{
	Use:   "shimharness",
	Short: "Integration harness for the Discord shim",
	Long: `shimharness drives the Discord shim over its framed protobuf protocol
and watches the target channel to verify what the shim posted.

Running 'shimharness' without a subcommand is equivalent to 'shimharness run'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		if level == "" {
			return nil
		}
		parsed, err := logger.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(parsed)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(storeTokenCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	addRunFlags(rootCmd)
}

// loadConfig reads --config and applies the configured log level unless
// --log-level was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flag := cmd.Flags().Lookup("log-level"); flag == nil || !flag.Changed {
		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	return cfg, nil
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	sc := storage.DefaultConfig(cfg.Type)
	sc.FilePath = cfg.FilePath
	sc.DatabaseURL = cfg.DatabaseURL
	sc.SSLEnabled = cfg.SSLEnabled
	return sc
}

// openStorage returns nil when journaling is not configured.
func openStorage(cmd *cobra.Command, cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "" {
		return nil, nil
	}
	store, err := storage.NewStorage(storageConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := store.Connect(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to %s storage: %w", cfg.Type, err)
	}
	return store, nil
}

func exitCode(err error) int {
	if errors.Is(err, errScenariosFailed) {
		return 1
	}
	return 2
}
