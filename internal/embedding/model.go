package embedding

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/safefind/safefind/internal/imaging"
)

// Model maps a face crop to a raw (not yet normalized) embedding.
type Model interface {
	Infer(ctx context.Context, crop *imaging.FaceCrop) ([]float32, error)
	// Version identifies the weights; embeddings with different versions are not comparable.
	Version() string
}

// Loader prepares a Model. It is called at most once successfully per Extractor.
type Loader func(ctx context.Context) (Model, error)

// remoteModel runs inference on the model server.
type remoteModel struct {
	client  *Client
	version string
	dim     int
}

// RemoteLoader returns a Loader that asks the model server which model it
// serves and binds to it.
func RemoteLoader(client *Client) Loader {
	return func(ctx context.Context) (Model, error) {
		info, err := client.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("model server unavailable: %w", err)
		}
		return &remoteModel{client: client, version: info.Version(), dim: info.Dim}, nil
	}
}

func (m *remoteModel) Version() string {
	return m.version
}

func (m *remoteModel) Infer(ctx context.Context, crop *imaging.FaceCrop) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, crop.Pixels); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	vec, err := m.client.EmbedCrop(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if m.dim > 0 && len(vec) != m.dim {
		return nil, fmt.Errorf("expected %d-D embedding, got %d", m.dim, len(vec))
	}
	return vec, nil
}
