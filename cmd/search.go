package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/database/postgres"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/scanner"
)

var searchCmd = &cobra.Command{
	Use:   "search <query-image>",
	Short: "Search stored posts for the person in a photo",
	Long: `Compare the face in a photo against the photo of every active post of one
type and print the posts closer than the match threshold, nearest first.

By default a photo is searched against missing-person posts and only the
best match is shown.

Examples:
  # Who is this child that was found?
  safefind search found.jpg

  # Show every match, not just the best one
  safefind search found.jpg --all

  # Search found-person posts with a photo from a missing-person report
  safefind search missing.jpg --type found --all --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("type", string(database.PostTypeMissing), "Post type to search (missing, found)")
	searchCmd.Flags().Bool("all", false, "Show every match instead of only the best one")
	searchCmd.Flags().Int("limit", 0, "Limit number of results with --all (0 = no limit)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	postType, err := database.ParsePostType(mustGetString(cmd, "type"))
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	query, err := readImageFile(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	posts, err := postgres.NewPostRepository(pool).ListPostsByType(ctx, postType)
	if err != nil {
		return fmt.Errorf("listing %s posts: %w", postType, err)
	}
	if len(posts) == 0 {
		if jsonOutput {
			return outputJSON([]scanner.Candidate{})
		}
		fmt.Printf("No active %s posts to search.\n", postType)
		return nil
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	var cache embedding.Cache
	if cfg.Embedding.Cache {
		cache = postgres.NewEmbeddingCache(pool)
	}

	opts := []scanner.Option{}
	if !jsonOutput {
		fmt.Printf("Searching %d %s posts\n\n", len(posts), postType)
		bar := progressbar.NewOptions(len(posts),
			progressbar.OptionSetDescription("Comparing"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("posts"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		opts = append(opts, scanner.WithProgress(func(done, total int) {
			bar.Set(done)
		}))
	}

	sc := scanner.New(newMatcher(cfg, cache), blobs, cfg.Scan, opts...)
	candidates, err := sc.Scan(ctx, query, posts)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	limit := mustGetInt(cmd, "limit")
	if !mustGetBool(cmd, "all") {
		limit = 1
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if jsonOutput {
		return outputJSON(candidates)
	}

	fmt.Println()
	if len(candidates) == 0 {
		fmt.Printf("No match below distance %.2f.\n", cfg.Match.Threshold)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDISTANCE\tPOST\tNAME\tIMAGE")
	for i, c := range candidates {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n", i+1, c.Distance, c.PostID, c.Post.Name(), c.Post.ImageURL)
	}
	return w.Flush()
}
