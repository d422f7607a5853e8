package facematch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/safefind/safefind/internal/embedding"
)

// Detection is one face found by a Detector, in source image coordinates.
type Detection struct {
	Box   image.Rectangle
	Score float64
}

// Detector finds faces in an image. Detections are returned in detector order.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// RemoteDetector runs face detection on the model server.
type RemoteDetector struct {
	client *embedding.Client
}

// NewRemoteDetector creates a detector backed by the model server client.
func NewRemoteDetector(client *embedding.Client) *RemoteDetector {
	return &RemoteDetector{client: client}
}

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image for detection: %w", err)
	}

	resp, err := d.client.DetectFaces(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	detections := make([]Detection, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		box, ok := BoxFromCorners(face.BBox)
		if !ok {
			continue
		}
		detections = append(detections, Detection{Box: box.Add(origin), Score: face.DetScore})
	}
	return detections, nil
}
