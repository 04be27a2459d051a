package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/shimharness/pkg/harness"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the shim relays a posted embed back",
	Long: `Bind the shim to HEALTH_CHECK_CHANNEL_ID, post an embed titled with a
fresh uuid and wait for the shim to relay that uuid back as a command.`,
	RunE: runHealthcheck,
}

func init() {
	healthcheckCmd.Flags().Int("attempts", 5, "Requests to read before giving up")
	healthcheckCmd.Flags().Duration("read-timeout", 30*time.Second, "Timeout for each request read")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	channel, err := cfg.HealthCheckChannelIDUint()
	if err != nil {
		return err
	}
	attempts, err := cmd.Flags().GetInt("attempts")
	if err != nil {
		return err
	}
	readTimeout, err := cmd.Flags().GetDuration("read-timeout")
	if err != nil {
		return err
	}

	err = harness.Healthcheck(cmd.Context(), harness.HealthcheckOptions{
		Host:        cfg.Shim.Host,
		Port:        cfg.Shim.Port,
		DialTimeout: cfg.Shim.DialTimeout,
		ChannelID:   channel,
		Attempts:    attempts,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ shim healthy")
	return nil
}
