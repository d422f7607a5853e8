package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/embedding"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Compare the faces in two photos",
	Long: `Compare the most prominent face in two photos and print their cosine
distance together with the match verdict.

Examples:
  # Are these the same person?
  safefind compare missing.jpg found.jpg

  # Use a stricter threshold
  safefind compare missing.jpg found.jpg --threshold 0.3

  # Output as JSON
  safefind compare missing.jpg found.jpg --json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Float64("threshold", 0, "Maximum cosine distance for a match (0 = configured threshold)")
	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		cfg.Match.Threshold = t
	}

	a, err := readImageFile(args[0])
	if err != nil {
		return err
	}
	b, err := readImageFile(args[1])
	if err != nil {
		return err
	}

	// identical inputs are embedded once
	matcher := newMatcher(cfg, embedding.NewMemoryCache())
	d, err := matcher.Compare(context.Background(), a, b)
	if err != nil {
		return fmt.Errorf("comparing images: %w", err)
	}

	result := matcher.Verdict(d)
	if mustGetBool(cmd, "json") {
		return outputJSON(result)
	}

	verdict := "different people"
	if result.Match {
		verdict = "same person"
	}
	fmt.Printf("Distance:  %.4f\n", result.Distance)
	fmt.Printf("Threshold: %.2f\n", result.Threshold)
	fmt.Printf("Verdict:   %s\n", verdict)
	return nil
}
