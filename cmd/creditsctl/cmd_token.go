package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clinsight/internal/config"
	"clinsight/internal/service"
)

var tokenFlags struct {
	ttl   time.Duration
	email string
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for local development",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.DurationVar(&tokenFlags.ttl, "ttl", 0, "token lifetime (defaults to jwt.dev_token_expiry)")
	f.StringVar(&tokenFlags.email, "email", "", "optional email claim")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, expiresAt, err := service.NewTokenService(cfg.JWT).IssueToken(args[0], tokenFlags.email, tokenFlags.ttl)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "# expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
