// Package facematch compares photos of people by the faces they contain.
package facematch

import (
	"context"
	"image"
	"log/slog"

	"github.com/safefind/safefind/internal/constants"
	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/imaging"
)

// Result is the outcome of comparing two faces.
type Result struct {
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
	Match     bool    `json:"match"`
}

// Matcher turns images into embeddings and embeddings into verdicts.
// It is safe for concurrent use.
type Matcher struct {
	locator   *Locator
	extractor *embedding.Extractor
	threshold float64
	cache     embedding.Cache
	gate      chan struct{}
	logger    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCache stores embeddings keyed by image content and model version.
func WithCache(cache embedding.Cache) Option {
	return func(m *Matcher) { m.cache = cache }
}

// WithInferenceParallelism limits how many images are detected and embedded at once.
// A value of 1 serializes inference.
func WithInferenceParallelism(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.gate = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the logger used for cache problems.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// NewMatcher creates a matcher. Distances strictly below threshold are matches.
// A non-positive threshold selects DefaultDistanceThreshold.
func NewMatcher(locator *Locator, extractor *embedding.Extractor, threshold float64, opts ...Option) *Matcher {
	if threshold <= 0 {
		threshold = constants.DefaultDistanceThreshold
	}
	m := &Matcher{
		locator:   locator,
		extractor: extractor,
		threshold: threshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the match threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// IsMatch reports whether distance d means the same person.
func (m *Matcher) IsMatch(d float64) bool {
	return d < m.threshold
}

// Verdict wraps a distance with the threshold decision.
func (m *Matcher) Verdict(d float64) Result {
	return Result{Distance: d, Threshold: m.threshold, Match: m.IsMatch(d)}
}

// Embed decodes raw, finds its most prominent face and returns the face embedding.
// Returns ErrNoFaceDetected when the image holds no face.
func (m *Matcher) Embed(ctx context.Context, raw []byte) (embedding.Embedding, error) {
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return embedding.Embedding{}, err
	}

	var key, version string
	if m.cache != nil {
		if version, err = m.extractor.Version(ctx); err != nil {
			return embedding.Embedding{}, err
		}
		key = embedding.CacheKey(raw)
		vec, ok, err := m.cache.Get(ctx, key, version)
		if err != nil {
			m.logger.Warn("embedding cache lookup failed", "key", key, "error", err)
		} else if ok {
			return embedding.Embedding{Vector: vec, Version: version}, nil
		}
	}

	emb, err := m.infer(ctx, img)
	if err != nil {
		return embedding.Embedding{}, err
	}

	if m.cache != nil && emb.Version == version {
		if err := m.cache.Put(ctx, key, version, emb.Vector); err != nil {
			m.logger.Warn("embedding cache store failed", "key", key, "error", err)
		}
	}
	return emb, nil
}

func (m *Matcher) infer(ctx context.Context, img image.Image) (embedding.Embedding, error) {
	if m.gate != nil {
		select {
		case m.gate <- struct{}{}:
			defer func() { <-m.gate }()
		case <-ctx.Done():
			return embedding.Embedding{}, ctx.Err()
		}
	}

	crop, err := m.locator.Locate(ctx, img)
	if err != nil {
		return embedding.Embedding{}, err
	}
	if crop == nil {
		return embedding.Embedding{}, ErrNoFaceDetected
	}
	return m.extractor.Embed(ctx, crop)
}

// Compare returns the cosine distance between the faces in a and b.
// A missing face is reported as a *NoFaceError naming the side.
func (m *Matcher) Compare(ctx context.Context, a, b []byte) (float64, error) {
	ea, err := m.Embed(ctx, a)
	if err != nil {
		return 0, withSide(err, SideA)
	}
	eb, err := m.Embed(ctx, b)
	if err != nil {
		return 0, withSide(err, SideB)
	}
	return embedding.Distance(ea, eb)
}
