package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database/postgres"
	"github.com/safefind/safefind/internal/embedding"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  `Commands for managing the PostgreSQL embedding cache.`,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached embeddings from other model versions",
	Long: `Delete every cached embedding that was not produced by the model the
model server currently reports. Use --version to keep a specific version instead.`,
	RunE: runCachePurge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePurgeCmd)

	cachePurgeCmd.Flags().String("version", "", "Model version to keep (default: ask the model server)")
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	ctx := context.Background()

	keep := mustGetString(cmd, "version")
	if keep == "" {
		info, err := embedding.NewClient(cfg.Embedding.URL).Info(ctx)
		if err != nil {
			return fmt.Errorf("asking model server for its version: %w", err)
		}
		keep = info.Version()
	}

	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	n, err := postgres.NewEmbeddingCache(pool).Purge(ctx, keep)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached embeddings (kept model %s)\n", n, keep)
	return nil
}
