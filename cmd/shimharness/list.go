package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [run-id]",
	Short: "List journaled scenario runs",
	Long: `List runs recorded in the configured storage. With a run id, print
that run including every captured message as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().String("suite", "", "Only list runs of this suite")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStorage(cmd, cfg.Storage)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("no storage configured (set storage.type or SHIMHARNESS_STORAGE_TYPE)")
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if len(args) == 1 {
		run, err := store.Runs().Get(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	suite, err := cmd.Flags().GetString("suite")
	if err != nil {
		return err
	}
	infos, err := store.Runs().List(ctx, suite)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(out, "%s  %s  %-22s %-7s %d/%d  %s\n",
			info.Started.Local().Format(time.DateTime),
			info.ID,
			info.Scenario,
			info.Outcome,
			info.Observed,
			info.Expected,
			info.Duration.Round(time.Millisecond),
		)
	}
	return nil
}
