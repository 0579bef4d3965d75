// Command creditsctl administers the credits ledger and mints development
// bearer tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clinsight/internal/config"
	"clinsight/internal/logger"
	"clinsight/internal/repository/postgres"
	"clinsight/internal/service"
)

var rootCmd = &cobra.Command{
	Use:           "creditsctl",
	Short:         "Administer clinsight credit accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(setAdminCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openCredits connects to the configured Postgres ledger. The returned
// close func releases the connection pool.
func openCredits() (service.CreditsService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log, cfg.Server.Environment)
	if cfg.Store.Driver != "postgres" {
		return nil, nil, fmt.Errorf("creditsctl needs the postgres store, got %q", cfg.Store.Driver)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	svc := service.NewCreditsService(postgres.NewLedgerRepo(db), cfg.Credits.StartingGrant)
	return svc, func() { _ = db.Close() }, nil
}
