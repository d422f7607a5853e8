// Package embedding turns face crops into comparable, L2-normalized vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/safefind/safefind/internal/imaging"
)

// ErrEmbeddingFailure is returned when the model cannot be loaded or inference fails.
var ErrEmbeddingFailure = errors.New("embedding failure")

// Extractor loads its model lazily on first use and shares it between callers.
// A failed load is not remembered, so the next call tries again.
type Extractor struct {
	load Loader

	mu    sync.Mutex
	model Model
}

// NewExtractor creates an extractor that loads its model with load.
func NewExtractor(load Loader) *Extractor {
	return &Extractor{load: load}
}

func (e *Extractor) getModel(ctx context.Context) (Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}

	m, err := e.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading model: %w", ErrEmbeddingFailure, err)
	}
	e.model = m
	return m, nil
}

// Version returns the version tag of the loaded model, loading it if needed.
func (e *Extractor) Version(ctx context.Context) (string, error) {
	m, err := e.getModel(ctx)
	if err != nil {
		return "", err
	}
	return m.Version(), nil
}

// Embed computes the unit-length embedding of a face crop.
func (e *Extractor) Embed(ctx context.Context, crop *imaging.FaceCrop) (Embedding, error) {
	m, err := e.getModel(ctx)
	if err != nil {
		return Embedding{}, err
	}

	raw, err := m.Infer(ctx, crop)
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}

	vec, ok := L2Normalize(raw)
	if !ok {
		return Embedding{}, fmt.Errorf("%w: model returned a degenerate vector", ErrEmbeddingFailure)
	}

	return Embedding{Vector: vec, Version: m.Version()}, nil
}
