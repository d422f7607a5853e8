package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database/postgres"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/imaging"
	"github.com/safefind/safefind/internal/scanner"
	"github.com/safefind/safefind/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the SafeFind API server.
The server stores posts in PostgreSQL, post images in the configured
bucket, and answers search and compare requests using the face model server.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// applyServeFlags lets command line flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	var cache embedding.Cache
	if cfg.Embedding.Cache {
		cache = postgres.NewEmbeddingCache(pool)
		fmt.Printf("Embedding cache enabled (PostgreSQL)\n")
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	logger := slog.Default()
	matcher := newMatcher(cfg, cache)
	deps := web.Deps{
		Posts:      postgres.NewPostRepository(pool),
		Blobs:      blobs,
		Normalizer: imaging.NewNormalizer(cfg.Normalizer),
		Matcher:    matcher,
		Scanner:    scanner.New(matcher, blobs, cfg.Scan, scanner.WithLogger(logger)),
	}
	server := web.NewServer(cfg, deps, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting SafeFind API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
