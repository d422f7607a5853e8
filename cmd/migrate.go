package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply pending PostgreSQL schema migrations and list the applied ones.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := pool.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema up to date, %d migrations applied:\n", len(applied))
	for _, v := range applied {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
