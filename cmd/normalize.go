package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/imaging"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <input> <output>",
	Short: "Validate a photo and write it in the stored post format",
	Long: `Run the upload checks on a photo (format, minimum size, sharpness) and
write the centered square JPEG that would be stored for a post.`,
	Args: cobra.ExactArgs(2),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	raw, err := readImageFile(args[0])
	if err != nil {
		return err
	}

	out, _, err := imaging.NewNormalizer(cfg.Normalizer).Normalize(raw)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", args[0], err)
	}

	if err := os.WriteFile(args[1], out, 0o644); err != nil { //nolint:gosec // output image is not secret
		return fmt.Errorf("writing %s: %w", args[1], err)
	}

	fmt.Printf("Wrote %s (%d bytes)\n", args[1], len(out))
	return nil
}
