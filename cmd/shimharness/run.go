package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/shimharness/pkg/config"
	"github.com/sipeed/shimharness/pkg/harness"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario suite against the shim",
	Long: `Run every scenario, or only those named with --scenario, one after
another. Each scenario gets its own shim connection and Discord session.`,
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("scenario", "s", nil, "Scenario to run (repeatable, default: all)")
	cmd.Flags().Bool("list-scenarios", false, "Print scenario names and exit")
}

func runRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if list, _ := cmd.Flags().GetBool("list-scenarios"); list {
		for _, sc := range harness.Suite() {
			fmt.Fprintf(out, "%-22s expects %d\n", sc.Name, sc.Expect)
		}
		return nil
	}

	names, err := cmd.Flags().GetStringSlice("scenario")
	if err != nil {
		return err
	}
	scenarios, err := harness.Select(harness.Suite(), names)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateScraper(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStorage(cmd, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	printHeader(out, cfg)

	runner := harness.NewRunner(harness.OptionsFromConfig(cfg), store)
	results, err := runner.Run(ctx, scenarios)
	printResults(out, runner.SuiteID(), results)
	if err != nil {
		return err
	}

	for _, res := range results {
		if !res.Passed() {
			return errScenariosFailed
		}
	}
	return nil
}

func printHeader(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "🧪 Discord shim harness")
	fmt.Fprintln(out, "======================")
	fmt.Fprintf(out, "🔌 Shim: %s:%d\n", cfg.Shim.Host, cfg.Shim.Port)
	fmt.Fprintf(out, "💬 Channel: %s\n", cfg.Discord.ChannelID)
	fmt.Fprintf(out, "🔑 Token: %s\n", config.MaskSecret(cfg.Discord.Token))
	fmt.Fprintln(out)
}

func printResults(out io.Writer, suiteID string, results []harness.Result) {
	passed := 0
	for _, res := range results {
		mark := "❌"
		if res.Passed() {
			mark = "✅"
			passed++
		}
		elapsed := res.Finished.Sub(res.Started).Round(time.Millisecond)
		fmt.Fprintf(out, "%s %-22s %-7s %s\n", mark, res.Scenario, res.Outcome, elapsed)
		if res.Err != nil {
			fmt.Fprintf(out, "   %v\n", res.Err)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Suite %s: %d/%d passed\n", suiteID, passed, len(results))
}
