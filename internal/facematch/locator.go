package facematch

import (
	"context"
	"fmt"
	"image"

	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/constants"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/imaging"
)

// Locator picks the most prominent face in an image and crops it.
type Locator struct {
	detector Detector
	cropSize int
	margin   float64
}

// NewLocator creates a locator using the crop size and margin from cfg.
func NewLocator(detector Detector, cfg config.MatchConfig) *Locator {
	cropSize := cfg.CropSize
	if cropSize <= 0 {
		cropSize = constants.DefaultCropSize
	}
	return &Locator{
		detector: detector,
		cropSize: cropSize,
		margin:   cfg.FaceMargin,
	}
}

// Locate returns a crop of the largest face in img, or nil when there is none.
// Detector failures are reported as embedding.ErrEmbeddingFailure.
func (l *Locator) Locate(ctx context.Context, img image.Image) (*imaging.FaceCrop, error) {
	detections, err := l.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: face detection: %w", embedding.ErrEmbeddingFailure, err)
	}

	bounds := img.Bounds()
	boxes := make([]image.Rectangle, len(detections))
	for i, d := range detections {
		boxes[i] = d.Box
	}

	idx := LargestBox(boxes, bounds)
	if idx < 0 {
		return nil, nil
	}

	box := ExpandBox(boxes[idx], l.margin, bounds)
	return imaging.CropFace(img, box, l.cropSize), nil
}
