package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"clinsight/internal/domain"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Show a user's credit balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

var grantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Add credits to a user (negative amounts remove credits)",
	Args:  cobra.ExactArgs(2),
	RunE:  runGrant,
}

var setAdminFlags struct {
	admin bool
}

var setAdminCmd = &cobra.Command{
	Use:   "set-admin <user-id>",
	Short: "Set or clear a user's admin flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetAdmin,
}

func init() {
	setAdminCmd.Flags().BoolVar(&setAdminFlags.admin, "admin", true, "admin flag value (use --admin=false to revoke)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openCredits()
	if err != nil {
		return err
	}
	defer closeFn()

	acct, err := svc.GetBalance(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printAccount(cmd.OutOrStdout(), acct)
	return nil
}

func runGrant(cmd *cobra.Command, args []string) error {
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	svc, closeFn, err := openCredits()
	if err != nil {
		return err
	}
	defer closeFn()

	acct, err := svc.Grant(cmd.Context(), args[0], amount)
	if err != nil {
		return err
	}
	printAccount(cmd.OutOrStdout(), acct)
	return nil
}

func runSetAdmin(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openCredits()
	if err != nil {
		return err
	}
	defer closeFn()

	acct, err := svc.SetAdmin(cmd.Context(), args[0], setAdminFlags.admin)
	if err != nil {
		return err
	}
	printAccount(cmd.OutOrStdout(), acct)
	return nil
}

func printAccount(out io.Writer, acct *domain.UserCredits) {
	fmt.Fprintf(out, "User:    %s\n", acct.UserID)
	fmt.Fprintf(out, "Balance: %d\n", acct.Balance)
	fmt.Fprintf(out, "Used:    %d\n", acct.Used)
	fmt.Fprintf(out, "Admin:   %v\n", acct.IsAdmin)
}
