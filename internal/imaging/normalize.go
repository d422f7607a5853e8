package imaging

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/safefind/safefind/internal/config"
)

// Normalizer turns uploads into canonical square JPEGs.
type Normalizer struct {
	minSide       int
	blurThreshold float64
	longSide      int
	quality       int
}

// NewNormalizer creates a normalizer from the calibration settings.
func NewNormalizer(cfg config.NormalizerConfig) *Normalizer {
	return &Normalizer{
		minSide:       cfg.MinSide,
		blurThreshold: cfg.BlurThreshold,
		longSide:      cfg.LongSide,
		quality:       cfg.JPEGQuality,
	}
}

// Normalize validates raw and returns it re-encoded as a centered square JPEG
// no larger than the configured long side. The returned format is always JPEG.
//
// Rejections, in order: ErrUnsupportedFormat, ErrCorruptImage, ErrTooLarge,
// ErrTooSmall, ErrTooBlurry.
func (n *Normalizer) Normalize(raw []byte) ([]byte, Format, error) {
	img, _, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}

	bounds := img.Bounds()
	if min(bounds.Dx(), bounds.Dy()) < n.minSide {
		return nil, "", fmt.Errorf("%w: %dx%d, shorter side must be at least %d px",
			ErrTooSmall, bounds.Dx(), bounds.Dy(), n.minSide)
	}

	if v := LaplacianVariance(img); v < n.blurThreshold {
		return nil, "", fmt.Errorf("%w: sharpness %.1f below %.1f", ErrTooBlurry, v, n.blurThreshold)
	}

	square := CenterSquare(bounds)
	side := min(square.Dx(), n.longSide)
	out := Resample(img, square, side, side)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), FormatJPEG, nil
}
