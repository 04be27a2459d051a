package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipeed/shimharness/pkg/config"
)

var storeTokenCmd = &cobra.Command{
	Use:   "store-token",
	Short: "Save the Discord bot token in the OS keyring",
	Long: `Read a bot token from stdin and store it in the OS keyring, where it is
used whenever BOT_TOKEN is not set. With --delete, remove it instead.`,
	Args: cobra.NoArgs,
	RunE: runStoreToken,
}

func init() {
	storeTokenCmd.Flags().Bool("delete", false, "Remove the stored token")
}

func runStoreToken(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if del, _ := cmd.Flags().GetBool("delete"); del {
		if err := config.DeleteToken(); err != nil {
			return err
		}
		fmt.Fprintln(out, "🗑️  Token removed from keyring")
		return nil
	}

	fmt.Fprint(out, "Bot token: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return errors.New("empty token")
	}

	if err := config.SaveToken(token); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n✅ Stored %s in keyring\n", config.MaskSecret(token))
	return nil
}
